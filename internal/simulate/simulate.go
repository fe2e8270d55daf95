// Package simulate generates ground-truth trajectories and the measurements
// a sensor would report along them. It drives the filter in tests and in
// the ckf command when no recorded data is supplied.
package simulate

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Propagator advances a true state by dt.
type Propagator interface {
	StateDim() int
	Propagate(x mat.Vector, dt float64) *mat.VecDense
}

// Observer maps a true state to a noiseless measurement.
type Observer interface {
	StateDim() int
	MeasurementDim() int
	Observe(x mat.Vector) *mat.VecDense
}

// Scenario describes one simulated run.
type Scenario struct {
	Motion      Propagator
	Measurement Observer
	Initial     []float64 // true state at step 0
	DT          float64   // seconds per step
	Steps       int

	// Noise is the measurement noise covariance; nil or all-zero gives
	// noiseless measurements.
	Noise *mat.SymDense
	Seed  uint64
}

// Sample is one simulated step: the true state after propagation and the
// measurement taken of it.
type Sample struct {
	Step     int
	Time     float64
	Truth    []float64
	Clean    []float64 // h(truth)
	Measured []float64 // h(truth) + noise
}

// ErrInvalidScenario is returned for a scenario that cannot be simulated.
var ErrInvalidScenario = errors.New("invalid scenario")

// Run forward-simulates the scenario. The initial state is propagated once
// before the first measurement, matching a filter that predicts before each
// update. Results are deterministic for a given Seed.
func Run(sc Scenario) ([]Sample, error) {
	if sc.Motion == nil || sc.Measurement == nil {
		return nil, fmt.Errorf("%w: motion and measurement models are required", ErrInvalidScenario)
	}
	n := sc.Motion.StateDim()
	if len(sc.Initial) != n {
		return nil, fmt.Errorf("%w: initial state has %d elements, motion model expects %d", ErrInvalidScenario, len(sc.Initial), n)
	}
	if sc.Measurement.StateDim() != n {
		return nil, fmt.Errorf("%w: measurement model expects %d states, motion model has %d", ErrInvalidScenario, sc.Measurement.StateDim(), n)
	}
	if sc.Steps < 0 || sc.DT <= 0 {
		return nil, fmt.Errorf("%w: steps=%d dt=%g", ErrInvalidScenario, sc.Steps, sc.DT)
	}

	noise, err := newNoise(sc.Noise, sc.Measurement.MeasurementDim(), sc.Seed)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, sc.Steps)
	x := mat.NewVecDense(n, append([]float64(nil), sc.Initial...))
	for i := 0; i < sc.Steps; i++ {
		x = sc.Motion.Propagate(x, sc.DT)
		clean := mat.Col(nil, 0, sc.Measurement.Observe(x))
		measured := append([]float64(nil), clean...)
		if noise != nil {
			for j, e := range noise.Rand(nil) {
				measured[j] += e
			}
		}
		samples = append(samples, Sample{
			Step:     i + 1,
			Time:     float64(i+1) * sc.DT,
			Truth:    mat.Col(nil, 0, x),
			Clean:    clean,
			Measured: measured,
		})
	}
	return samples, nil
}

func newNoise(cov *mat.SymDense, dim int, seed uint64) (*distmv.Normal, error) {
	if cov == nil || isZero(cov) {
		return nil, nil
	}
	if cov.SymmetricDim() != dim {
		return nil, fmt.Errorf("%w: noise is %dx%[2]d, measurement has %d elements", ErrInvalidScenario, cov.SymmetricDim(), dim)
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	dist, ok := distmv.NewNormal(make([]float64, dim), cov, src)
	if !ok {
		return nil, fmt.Errorf("%w: noise covariance is not positive definite", ErrInvalidScenario)
	}
	return dist, nil
}

func isZero(s *mat.SymDense) bool {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if s.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}
