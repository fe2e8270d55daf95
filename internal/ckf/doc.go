// Package ckf implements a Cubature Kalman Filter.
//
// Responsibilities: cubature point generation (third-degree
// spherical-radial rule), the nonlinear predict step, the nonlinear and
// linear update steps, and a Filter that owns the running (x, P) and
// drives one predict+update cycle per measurement.
// Key types: Filter, Config, CubaturePoints, Snapshot.
//
// Motion and measurement models are supplied by the caller through the
// MotionModel and MeasurementModel interfaces. Concrete variants live in
// internal/models.
//
// No I/O is allowed in this package. A Filter is not safe for concurrent
// use; track independent objects with independent filters.
package ckf
