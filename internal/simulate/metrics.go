package simulate

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PositionError returns the Euclidean distance between the estimated and
// true (x, y) positions held in the first two state elements.
func PositionError(estimate, truth []float64) float64 {
	return math.Hypot(estimate[0]-truth[0], estimate[1]-truth[1])
}

// RMSE returns the root-mean-square of errs, or 0 for an empty slice.
func RMSE(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(errs, errs) / float64(len(errs)))
}
