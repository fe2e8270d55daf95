package ckf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Phase is the position of a Filter within its predict/update cycle.
type Phase string

const (
	AwaitingMeasurement Phase = "awaiting_measurement" // Posterior committed, ready to predict
	Predicted           Phase = "predicted"            // Prior committed, ready for a measurement
)

// Config holds everything a Filter needs. Q, R and the models are fixed for
// the lifetime of the filter.
type Config struct {
	Motion      MotionModel
	Measurement MeasurementModel

	Q *mat.SymDense // Process noise covariance (n×n)
	R *mat.SymDense // Measurement noise covariance (o×o)

	// DT is the default time step (seconds) used when Predict or Step is
	// called with dt <= 0.
	DT float64

	InitialState      *mat.VecDense // Prior mean x₀
	InitialCovariance *mat.SymDense // Prior covariance P₀

	// UseLinearUpdate selects the closed-form update when Measurement
	// implements LinearMeasurement.
	UseLinearUpdate bool
}

// Validate checks that all dimensions agree and that the prior covariance
// admits a matrix square root.
func (c Config) Validate() error {
	if c.Motion == nil || c.Measurement == nil {
		return fmt.Errorf("%w: motion and measurement models are required", ErrDimensionMismatch)
	}
	n := c.Motion.StateDim()
	o := c.Measurement.MeasurementDim()
	if n <= 0 || o <= 0 {
		return fmt.Errorf("%w: state dim %d, measurement dim %d", ErrDimensionMismatch, n, o)
	}
	if c.Measurement.StateDim() != n {
		return fmt.Errorf("%w: measurement model expects %d states, motion model has %d", ErrDimensionMismatch, c.Measurement.StateDim(), n)
	}
	if c.Q == nil || c.Q.SymmetricDim() != n {
		return fmt.Errorf("%w: process noise must be %dx%[2]d", ErrDimensionMismatch, n)
	}
	if c.R == nil || c.R.SymmetricDim() != o {
		return fmt.Errorf("%w: measurement noise must be %dx%[2]d", ErrDimensionMismatch, o)
	}
	if c.InitialState == nil || c.InitialState.Len() != n {
		return fmt.Errorf("%w: prior mean must have %d elements", ErrDimensionMismatch, n)
	}
	if c.InitialCovariance == nil || c.InitialCovariance.SymmetricDim() != n {
		return fmt.Errorf("%w: prior covariance must be %dx%[2]d", ErrDimensionMismatch, n)
	}
	if !(c.DT > 0) || math.IsInf(c.DT, 0) {
		return fmt.Errorf("dt must be positive and finite, got %g", c.DT)
	}
	if lm, ok := c.Measurement.(LinearMeasurement); ok {
		if r, cols := lm.Matrix().Dims(); r != o || cols != n {
			return fmt.Errorf("%w: observation matrix is %dx%d, expected %dx%d", ErrDimensionMismatch, r, cols, o, n)
		}
	}
	if _, err := SqrtSym(c.InitialCovariance); err != nil {
		return fmt.Errorf("prior covariance: %w", err)
	}
	if _, err := SqrtSym(c.Q); err != nil {
		return fmt.Errorf("process noise: %w", err)
	}
	if _, err := SqrtSym(c.R); err != nil {
		return fmt.Errorf("measurement noise: %w", err)
	}
	return nil
}

// Estimate is a mean and covariance pair produced by a predict or update.
type Estimate struct {
	X *mat.VecDense
	P *mat.SymDense
}

// Snapshot is a plain-slice copy of the filter state for consumers that
// log, store or plot estimates.
type Snapshot struct {
	Cycle      int       `json:"cycle"`
	Phase      Phase     `json:"phase"`
	State      []float64 `json:"state"`
	Covariance []float64 `json:"covariance"` // row-major n×n
}

// CovarianceTrace returns the trace of the row-major covariance, or an
// error when it is not n×n for an n-element state.
func (s Snapshot) CovarianceTrace() (float64, error) {
	n := len(s.State)
	if n == 0 || len(s.Covariance) != n*n {
		return 0, fmt.Errorf("%w: covariance has %d entries for %d states", ErrDimensionMismatch, len(s.Covariance), n)
	}
	return Trace(mat.NewDense(n, n, s.Covariance)), nil
}

// Filter is a Cubature Kalman Filter holding the running (x, P).
// It is strictly sequential: each cycle depends only on the previous
// posterior and the current measurement.
type Filter struct {
	cfg   Config
	x     *mat.VecDense
	p     *mat.SymDense
	phase Phase
	cycle int
}

// New validates cfg and returns a filter initialized to the prior.
func New(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{
		cfg:   cfg,
		x:     mat.VecDenseCopyOf(cfg.InitialState),
		p:     mat.NewSymDense(cfg.InitialCovariance.SymmetricDim(), nil),
		phase: AwaitingMeasurement,
	}
	f.p.CopySym(cfg.InitialCovariance)
	return f, nil
}

// Predict advances the state by dt seconds (Config.DT when dt <= 0) and
// commits the prior. A non-finite or indefinite prediction returns
// ErrInvalidCovariance and leaves the state and phase unchanged.
func (f *Filter) Predict(dt float64) (*Estimate, error) {
	x, p, err := Predict(f.x, f.p, f.cfg.Motion, f.cfg.Q, f.stepDT(dt))
	if err != nil {
		return nil, err
	}
	f.x, f.p = x, p
	f.phase = Predicted
	return f.estimate(), nil
}

// Update corrects the current state with measurement z and commits the
// posterior. Called without a preceding Predict it corrects the current
// posterior directly. On error the state is unchanged.
//
// A near-singular innovation covariance does not produce an error; see
// Update (package function) for details.
func (f *Filter) Update(z mat.Vector) (*Estimate, error) {
	x, p, err := f.correct(f.x, f.p, z)
	if err != nil {
		return nil, err
	}
	f.x, f.p = x, p
	f.phase = AwaitingMeasurement
	f.cycle++
	return f.estimate(), nil
}

// Step runs one full predict+update cycle. Nothing is committed unless both
// halves succeed.
func (f *Filter) Step(z mat.Vector, dt float64) (*Estimate, error) {
	xPred, pPred, err := Predict(f.x, f.p, f.cfg.Motion, f.cfg.Q, f.stepDT(dt))
	if err != nil {
		return nil, err
	}
	x, p, err := f.correct(xPred, pPred, z)
	if err != nil {
		return nil, err
	}
	f.x, f.p = x, p
	f.phase = AwaitingMeasurement
	f.cycle++
	return f.estimate(), nil
}

// State returns a copy of the current mean.
func (f *Filter) State() *mat.VecDense {
	return mat.VecDenseCopyOf(f.x)
}

// Covariance returns a copy of the current covariance.
func (f *Filter) Covariance() *mat.SymDense {
	p := mat.NewSymDense(f.p.SymmetricDim(), nil)
	p.CopySym(f.p)
	return p
}

// Phase reports where the filter is in its cycle.
func (f *Filter) Phase() Phase { return f.phase }

// Cycle returns the number of committed updates.
func (f *Filter) Cycle() int { return f.cycle }

// Snapshot returns a plain-slice copy of the current state.
func (f *Filter) Snapshot() Snapshot {
	n := f.x.Len()
	cov := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cov = append(cov, f.p.At(i, j))
		}
	}
	return Snapshot{
		Cycle:      f.cycle,
		Phase:      f.phase,
		State:      mat.Col(nil, 0, f.x),
		Covariance: cov,
	}
}

func (f *Filter) correct(x *mat.VecDense, p *mat.SymDense, z mat.Vector) (*mat.VecDense, *mat.SymDense, error) {
	if f.cfg.UseLinearUpdate {
		if lm, ok := f.cfg.Measurement.(LinearMeasurement); ok {
			return UpdateLinear(x, p, z, lm, f.cfg.R)
		}
	}
	return Update(x, p, z, f.cfg.Measurement, f.cfg.R)
}

func (f *Filter) stepDT(dt float64) float64 {
	if dt <= 0 {
		return f.cfg.DT
	}
	return dt
}

func (f *Filter) estimate() *Estimate {
	return &Estimate{X: f.State(), P: f.Covariance()}
}
