package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Measurement is an observation model z = h(x).
type Measurement interface {
	Name() string
	StateDim() int
	MeasurementDim() int
	Observe(x mat.Vector) *mat.VecDense
}

// Selector observes a subset of state components directly, z = H·x, where
// every row of H picks one state index. It is the linear measurement used by
// the position-only and position-plus-odometry variants.
type Selector struct {
	name     string
	stateDim int
	indices  []int
	h        *mat.Dense
}

// NewSelector returns a Selector picking indices out of a stateDim-element
// state.
func NewSelector(name string, stateDim int, indices ...int) (*Selector, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("selector %q: no state indices", name)
	}
	if stateDim <= 0 {
		return nil, fmt.Errorf("selector %q: state dimension %d", name, stateDim)
	}
	h := mat.NewDense(len(indices), stateDim, nil)
	for row, idx := range indices {
		if idx < 0 || idx >= stateDim {
			return nil, fmt.Errorf("selector %q: state index %d out of range for %d states", name, idx, stateDim)
		}
		h.Set(row, idx, 1)
	}
	return &Selector{
		name:     name,
		stateDim: stateDim,
		indices:  append([]int(nil), indices...),
		h:        h,
	}, nil
}

func (s *Selector) Name() string        { return s.name }
func (s *Selector) StateDim() int       { return s.stateDim }
func (s *Selector) MeasurementDim() int { return len(s.indices) }

// Indices returns the observed state indices in measurement order.
func (s *Selector) Indices() []int { return append([]int(nil), s.indices...) }

func (s *Selector) Observe(x mat.Vector) *mat.VecDense {
	z := mat.NewVecDense(len(s.indices), nil)
	for row, idx := range s.indices {
		z.SetVec(row, x.AtVec(idx))
	}
	return z
}

// Matrix returns a copy of the observation matrix H.
func (s *Selector) Matrix() *mat.Dense {
	return mat.DenseCopyOf(s.h)
}

// RangeBearing observes range and bearing of the target position from a
// fixed sensor at (SensorX, SensorY):
//
//	z = [ √((x−sx)² + (y−sy)²), atan2(y−sy, x−sx) ]
//
// It is nonlinear, so the filter always uses the cubature update for it.
type RangeBearing struct {
	States  int
	SensorX float64
	SensorY float64
}

func (rb RangeBearing) Name() string        { return MeasurementRangeBearing }
func (rb RangeBearing) StateDim() int       { return rb.States }
func (rb RangeBearing) MeasurementDim() int { return 2 }

func (rb RangeBearing) Observe(x mat.Vector) *mat.VecDense {
	dx := x.AtVec(IdxX) - rb.SensorX
	dy := x.AtVec(IdxY) - rb.SensorY
	return mat.NewVecDense(2, []float64{math.Hypot(dx, dy), math.Atan2(dy, dx)})
}

// Residual returns z − predicted with the bearing difference wrapped to
// (−π, π].
func (rb RangeBearing) Residual(z, predicted mat.Vector) *mat.VecDense {
	return mat.NewVecDense(2, []float64{
		z.AtVec(0) - predicted.AtVec(0),
		WrapAngle(z.AtVec(1) - predicted.AtVec(1)),
	})
}

// WeightedMean averages range arithmetically and bearing on the unit circle,
// so points straddling ±π do not average to zero.
func (rb RangeBearing) WeightedMean(cols *mat.Dense, w []float64) *mat.VecDense {
	var rng, sin, cos float64
	for i, wi := range w {
		rng += wi * cols.At(0, i)
		b := cols.At(1, i)
		sin += wi * math.Sin(b)
		cos += wi * math.Cos(b)
	}
	return mat.NewVecDense(2, []float64{rng, math.Atan2(sin, cos)})
}

// WrapAngle maps a to the interval (−π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
