package ckf

import "gonum.org/v1/gonum/mat"

// MotionModel is the process function f. Propagate must not modify x and
// must return a new vector of length StateDim.
type MotionModel interface {
	StateDim() int
	Propagate(x mat.Vector, dt float64) *mat.VecDense
}

// MeasurementModel is the observation function h. Observe must not modify
// x and must return a new vector of length MeasurementDim.
type MeasurementModel interface {
	StateDim() int
	MeasurementDim() int
	Observe(x mat.Vector) *mat.VecDense
}

// LinearMeasurement is a MeasurementModel that is a fixed matrix H
// (MeasurementDim × StateDim). It enables the closed-form update.
type LinearMeasurement interface {
	MeasurementModel
	Matrix() *mat.Dense
}

// ResidualModel is implemented by measurement models whose innovation is
// not a plain difference, e.g. bearings that must wrap to (−π, π].
type ResidualModel interface {
	Residual(z, predicted mat.Vector) *mat.VecDense
}

// MeanModel is implemented by measurement models whose points cannot be
// averaged arithmetically, e.g. bearings near ±π.
type MeanModel interface {
	WeightedMean(cols *mat.Dense, w []float64) *mat.VecDense
}

// measurementMean returns the weighted mean of the observed points.
func measurementMean(h MeasurementModel, cols *mat.Dense, w []float64) *mat.VecDense {
	if mm, ok := h.(MeanModel); ok {
		return mm.WeightedMean(cols, w)
	}
	return WeightedMean(cols, w)
}

// deviations returns the residual of every column of cols from mean, as
// columns of a new matrix.
func deviations(h MeasurementModel, cols *mat.Dense, mean mat.Vector) *mat.Dense {
	r, c := cols.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < c; i++ {
		out.SetCol(i, mat.Col(nil, 0, residual(h, cols.ColView(i), mean)))
	}
	return out
}

// residual returns z − predicted, or the model's own residual.
func residual(h MeasurementModel, z, predicted mat.Vector) *mat.VecDense {
	if rm, ok := h.(ResidualModel); ok {
		return rm.Residual(z, predicted)
	}
	v := mat.NewVecDense(z.Len(), nil)
	v.SubVec(z, predicted)
	return v
}
