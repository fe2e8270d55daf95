package models

import (
	"errors"
	"fmt"
	"sort"
)

// Motion model tags.
const (
	MotionCHCV4 = "chcv4" // [x, y, yaw, speed], constant heading and velocity
	MotionCTRV5 = "ctrv5" // [x, y, yaw, speed, yaw rate]
	MotionCTRA6 = "ctra6" // [x, y, yaw, speed, yaw rate, acceleration]
)

// Measurement model tags.
const (
	MeasurementPosition             = "position"               // [x, y]
	MeasurementPositionYawRate      = "position_yawrate"       // [x, y, yaw rate]
	MeasurementPositionSpeedYawRate = "position_speed_yawrate" // [x, y, speed, yaw rate]
	MeasurementRangeBearing         = "range_bearing"          // [range, bearing] from the origin
)

// ErrUnknownModel is returned for an unrecognised model tag.
var ErrUnknownModel = errors.New("unknown model")

// ErrIncompatibleModel is returned when a measurement model cannot observe
// the state of the chosen motion model.
var ErrIncompatibleModel = errors.New("incompatible model")

var motions = map[string]Motion{
	MotionCHCV4: CHCV{},
	MotionCTRV5: CTRV{},
	MotionCTRA6: CTRA{},
}

var selectorIndices = map[string][]int{
	MeasurementPosition:             {IdxX, IdxY},
	MeasurementPositionYawRate:      {IdxX, IdxY, IdxYawRate},
	MeasurementPositionSpeedYawRate: {IdxX, IdxY, IdxSpeed, IdxYawRate},
}

// NewMotion returns the motion model registered under tag.
func NewMotion(tag string) (Motion, error) {
	m, ok := motions[tag]
	if !ok {
		return nil, fmt.Errorf("%w: motion %q (known: %v)", ErrUnknownModel, tag, MotionTags())
	}
	return m, nil
}

// NewMeasurement returns the measurement model registered under tag for a
// stateDim-element state.
func NewMeasurement(tag string, stateDim int) (Measurement, error) {
	if tag == MeasurementRangeBearing {
		if stateDim < 2 {
			return nil, fmt.Errorf("%w: %s needs at least 2 states, got %d", ErrIncompatibleModel, tag, stateDim)
		}
		return RangeBearing{States: stateDim}, nil
	}
	indices, ok := selectorIndices[tag]
	if !ok {
		return nil, fmt.Errorf("%w: measurement %q (known: %v)", ErrUnknownModel, tag, MeasurementTags())
	}
	for _, idx := range indices {
		if idx >= stateDim {
			return nil, fmt.Errorf("%w: %s observes state %d but the state has %d elements", ErrIncompatibleModel, tag, idx, stateDim)
		}
	}
	return NewSelector(tag, stateDim, indices...)
}

// MotionTags lists the registered motion model tags in sorted order.
func MotionTags() []string {
	tags := make([]string, 0, len(motions))
	for t := range motions {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// MeasurementTags lists the registered measurement model tags in sorted order.
func MeasurementTags() []string {
	tags := []string{MeasurementRangeBearing}
	for t := range selectorIndices {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
