// Package models provides the motion (process) and measurement
// (observation) models plugged into the cubature Kalman filter.
//
// Every model is a pure function over gonum vectors: inputs are never
// modified and a fresh vector is returned. Variants are selected by tag
// through NewMotion and NewMeasurement so that configuration files can name
// them.
//
// State layout shared by all motion models:
//
//	index 0  x position  [m]
//	index 1  y position  [m]
//	index 2  yaw         [rad]
//	index 3  speed       [m/s]
//	index 4  yaw rate    [rad/s]   (ctrv5, ctra6)
//	index 5  acceleration [m/s²]   (ctra6)
package models
