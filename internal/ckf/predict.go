package ckf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Predict propagates (x, p) through the motion model f over dt and returns
// the predicted mean and covariance.
//
// The covariance accumulator is seeded with the process noise q before the
// weighted outer products of the propagated points are added. A prediction
// with a non-finite mean or a covariance that is not positive semi-definite
// returns ErrInvalidCovariance.
func Predict(x mat.Vector, p mat.Matrix, f MotionModel, q mat.Symmetric, dt float64) (*mat.VecDense, *mat.SymDense, error) {
	n := f.StateDim()
	if x.Len() != n {
		return nil, nil, fmt.Errorf("%w: state has %d elements, motion model expects %d", ErrDimensionMismatch, x.Len(), n)
	}
	if q.SymmetricDim() != n {
		return nil, nil, fmt.Errorf("%w: process noise is %dx%[2]d, motion model expects %d", ErrDimensionMismatch, q.SymmetricDim(), n)
	}

	cp, err := GeneratePoints(x, p)
	if err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}

	propagated := cp.Transform(func(v mat.Vector) *mat.VecDense {
		return f.Propagate(v, dt)
	})
	if r, _ := propagated.Dims(); r != n {
		return nil, nil, fmt.Errorf("%w: motion model returned %d elements, expected %d", ErrDimensionMismatch, r, n)
	}

	xPred := WeightedMean(propagated, cp.Weights)
	pPred := WeightedCovariance(q, propagated, xPred, cp.Weights)
	if err := checkEstimate(xPred, pPred); err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}
	return xPred, pPred, nil
}

func checkEstimate(x mat.Vector, p mat.Matrix) error {
	for i := 0; i < x.Len(); i++ {
		if v := x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite state element %d", ErrInvalidCovariance, i)
		}
	}
	_, err := SqrtSym(p)
	return err
}
