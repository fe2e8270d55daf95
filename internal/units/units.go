// Package units converts filter state values from SI units for display.
// The filter itself works in metres, seconds and radians throughout.
package units

import (
	"fmt"
	"math"
	"strings"
)

// Display unit systems
const (
	SI       = "si"       // m, m/s, rad, rad/s
	Metric   = "metric"   // m, km/h, deg, deg/s
	Imperial = "imperial" // ft, mph, deg, deg/s
)

// ValidSystems contains all valid unit systems
var ValidSystems = []string{SI, Metric, Imperial}

// IsValid checks if the given unit system is known
func IsValid(system string) bool {
	for _, s := range ValidSystems {
		if system == s {
			return true
		}
	}
	return false
}

// GetValidSystemsString returns a comma-separated string of valid systems for error messages
func GetValidSystemsString() string {
	return strings.Join(ValidSystems, ", ")
}

// Speed converts m/s into the speed unit of system.
func Speed(mps float64, system string) float64 {
	switch system {
	case Metric:
		return mps * 3.6
	case Imperial:
		return mps * 2.2369362920544
	default:
		return mps
	}
}

// Length converts metres into the length unit of system.
func Length(m float64, system string) float64 {
	if system == Imperial {
		return m / 0.3048
	}
	return m
}

// Acceleration converts m/s² into the acceleration unit of system.
func Acceleration(mps2 float64, system string) float64 {
	if system == Imperial {
		return mps2 / 0.3048
	}
	return mps2
}

// Angle converts radians into the angle unit of system. Angular rates use
// the same conversion.
func Angle(rad float64, system string) float64 {
	if system == Metric || system == Imperial {
		return rad * 180 / math.Pi
	}
	return rad
}

// Label returns the unit suffix for a quantity ("speed", "accel", "angle",
// "rate", "length") in system.
func Label(quantity, system string) string {
	si := map[string]string{"speed": "m/s", "accel": "m/s²", "angle": "rad", "rate": "rad/s", "length": "m"}
	switch {
	case system == Metric && quantity == "speed":
		return "km/h"
	case system == Imperial && quantity == "speed":
		return "mph"
	case system == Imperial && quantity == "accel":
		return "ft/s²"
	case system == Imperial && quantity == "length":
		return "ft"
	case (system == Metric || system == Imperial) && quantity == "angle":
		return "deg"
	case (system == Metric || system == Imperial) && quantity == "rate":
		return "deg/s"
	}
	if l, ok := si[quantity]; ok {
		return l
	}
	return fmt.Sprintf("?%s", quantity)
}
