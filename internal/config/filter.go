package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cubature/internal/ckf"
	"github.com/banshee-data/cubature/internal/models"
)

// DefaultConfigPath is the path to the canonical filter defaults file.
const DefaultConfigPath = "config/ckf.defaults.json"

// FilterConfig is the on-disk configuration of a filter run. Every field is
// optional; the Get* methods supply defaults for fields left out of the JSON.
//
// Noise and prior covariances are given either as a diagonal (n values) or
// as a full row-major matrix (n² values).
type FilterConfig struct {
	// Model selection
	MotionModel      *string `json:"motion_model,omitempty"`      // chcv4, ctrv5, ctra6
	MeasurementModel *string `json:"measurement_model,omitempty"` // position, position_yawrate, ...
	LinearUpdate     *bool   `json:"linear_update,omitempty"`     // closed-form update for linear h

	// Timing
	DT *float64 `json:"dt,omitempty"` // seconds per cycle

	// Noise
	ProcessNoise     []float64 `json:"process_noise,omitempty"`
	MeasurementNoise []float64 `json:"measurement_noise,omitempty"`

	// Prior
	PriorMean       []float64 `json:"prior_mean,omitempty"`
	PriorCovariance []float64 `json:"prior_covariance,omitempty"`

	// Simulation (ckf command only)
	Steps           *int      `json:"steps,omitempty"`
	Seed            *uint64   `json:"seed,omitempty"`
	TruthState      []float64 `json:"truth_state,omitempty"`
	SimulationNoise []float64 `json:"simulation_noise,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyFilterConfig returns a FilterConfig with all fields unset.
func EmptyFilterConfig() *FilterConfig {
	return &FilterConfig{}
}

// LoadFilterConfig loads a FilterConfig from a JSON file and validates it.
// The file must have a .json extension and be at most 1MB.
func LoadFilterConfig(path string) (*FilterConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFilterConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *FilterConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadFilterConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks value ranges, model tags and that every vector and matrix
// matches the dimensions of the selected models.
func (c *FilterConfig) Validate() error {
	if c.DT != nil && (*c.DT <= 0 || math.IsNaN(*c.DT) || math.IsInf(*c.DT, 0)) {
		return fmt.Errorf("dt must be a positive number, got %v", *c.DT)
	}
	if c.Steps != nil && *c.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", *c.Steps)
	}

	motion, err := models.NewMotion(c.GetMotionModel())
	if err != nil {
		return err
	}
	n := motion.StateDim()
	meas, err := models.NewMeasurement(c.GetMeasurementModel(), n)
	if errors.Is(err, models.ErrIncompatibleModel) {
		return fmt.Errorf("%w: %w", ckf.ErrDimensionMismatch, err)
	} else if err != nil {
		return err
	}
	o := meas.MeasurementDim()

	checks := []struct {
		name   string
		values []float64
		dim    int
	}{
		{"process_noise", c.ProcessNoise, n},
		{"measurement_noise", c.MeasurementNoise, o},
		{"prior_covariance", c.PriorCovariance, n},
		{"simulation_noise", c.SimulationNoise, o},
	}
	for _, chk := range checks {
		if chk.values == nil {
			continue
		}
		if _, err := symFromList(chk.values, chk.dim); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	for _, v := range []struct {
		name   string
		values []float64
	}{{"prior_mean", c.PriorMean}, {"truth_state", c.TruthState}} {
		if v.values != nil && len(v.values) != n {
			return fmt.Errorf("%w: %s has %d elements, %s expects %d", ckf.ErrDimensionMismatch, v.name, len(v.values), motion.Name(), n)
		}
	}
	return nil
}

// GetMotionModel returns the motion_model tag or the default.
func (c *FilterConfig) GetMotionModel() string {
	if c.MotionModel == nil || *c.MotionModel == "" {
		return models.MotionCTRV5
	}
	return *c.MotionModel
}

// GetMeasurementModel returns the measurement_model tag or the default.
func (c *FilterConfig) GetMeasurementModel() string {
	if c.MeasurementModel == nil || *c.MeasurementModel == "" {
		return models.MeasurementPosition
	}
	return *c.MeasurementModel
}

// GetLinearUpdate returns the linear_update value or the default.
func (c *FilterConfig) GetLinearUpdate() bool {
	if c.LinearUpdate == nil {
		return false
	}
	return *c.LinearUpdate
}

// GetDT returns the dt value (seconds) or the default.
func (c *FilterConfig) GetDT() float64 {
	if c.DT == nil {
		return 0.1
	}
	return *c.DT
}

// GetSteps returns the steps value or the default.
func (c *FilterConfig) GetSteps() int {
	if c.Steps == nil {
		return 200
	}
	return *c.Steps
}

// GetSeed returns the seed value or the default.
func (c *FilterConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetProcessNoise returns Q for an n-state model. Default: 1e-4·I.
func (c *FilterConfig) GetProcessNoise(n int) (*mat.SymDense, error) {
	return symOrDiag(c.ProcessNoise, n, 1e-4)
}

// GetMeasurementNoise returns R for an o-element measurement.
// Default: (0.01)²·I.
func (c *FilterConfig) GetMeasurementNoise(o int) (*mat.SymDense, error) {
	return symOrDiag(c.MeasurementNoise, o, 1e-4)
}

// GetPriorCovariance returns P₀ for an n-state model. Default: I.
func (c *FilterConfig) GetPriorCovariance(n int) (*mat.SymDense, error) {
	return symOrDiag(c.PriorCovariance, n, 1)
}

// GetSimulationNoise returns the simulator's measurement noise covariance.
// Default: the filter's measurement noise.
func (c *FilterConfig) GetSimulationNoise(o int) (*mat.SymDense, error) {
	if c.SimulationNoise == nil {
		return c.GetMeasurementNoise(o)
	}
	return symFromList(c.SimulationNoise, o)
}

// GetPriorMean returns x₀ for an n-state model. Default: zeros.
func (c *FilterConfig) GetPriorMean(n int) (*mat.VecDense, error) {
	if c.PriorMean == nil {
		return mat.NewVecDense(n, nil), nil
	}
	if len(c.PriorMean) != n {
		return nil, fmt.Errorf("%w: prior_mean has %d elements, want %d", ckf.ErrDimensionMismatch, len(c.PriorMean), n)
	}
	return mat.NewVecDense(n, append([]float64(nil), c.PriorMean...)), nil
}

// GetTruthState returns the simulator's initial true state. Default: the
// prior mean.
func (c *FilterConfig) GetTruthState(n int) ([]float64, error) {
	if c.TruthState == nil {
		x0, err := c.GetPriorMean(n)
		if err != nil {
			return nil, err
		}
		return mat.Col(nil, 0, x0), nil
	}
	if len(c.TruthState) != n {
		return nil, fmt.Errorf("%w: truth_state has %d elements, want %d", ckf.ErrDimensionMismatch, len(c.TruthState), n)
	}
	return append([]float64(nil), c.TruthState...), nil
}

// Build resolves the model tags and matrices into a ckf.Config.
func (c *FilterConfig) Build() (ckf.Config, error) {
	if err := c.Validate(); err != nil {
		return ckf.Config{}, err
	}
	motion, err := models.NewMotion(c.GetMotionModel())
	if err != nil {
		return ckf.Config{}, err
	}
	n := motion.StateDim()
	meas, err := models.NewMeasurement(c.GetMeasurementModel(), n)
	if err != nil {
		return ckf.Config{}, err
	}
	o := meas.MeasurementDim()

	q, err := c.GetProcessNoise(n)
	if err != nil {
		return ckf.Config{}, fmt.Errorf("process_noise: %w", err)
	}
	r, err := c.GetMeasurementNoise(o)
	if err != nil {
		return ckf.Config{}, fmt.Errorf("measurement_noise: %w", err)
	}
	p0, err := c.GetPriorCovariance(n)
	if err != nil {
		return ckf.Config{}, fmt.Errorf("prior_covariance: %w", err)
	}
	x0, err := c.GetPriorMean(n)
	if err != nil {
		return ckf.Config{}, err
	}

	cfg := ckf.Config{
		Motion:            motion,
		Measurement:       meas,
		Q:                 q,
		R:                 r,
		DT:                c.GetDT(),
		InitialState:      x0,
		InitialCovariance: p0,
		UseLinearUpdate:   c.GetLinearUpdate(),
	}
	if err := cfg.Validate(); err != nil {
		return ckf.Config{}, err
	}
	return cfg, nil
}

func symOrDiag(values []float64, n int, def float64) (*mat.SymDense, error) {
	if values == nil {
		s := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			s.SetSym(i, i, def)
		}
		return s, nil
	}
	return symFromList(values, n)
}

// symFromList interprets values as a diagonal (n values) or a full
// row-major symmetric matrix (n² values).
func symFromList(values []float64, n int) (*mat.SymDense, error) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("element %d is not finite", i)
		}
	}
	switch len(values) {
	case n:
		s := mat.NewSymDense(n, nil)
		for i, v := range values {
			if v < 0 {
				return nil, fmt.Errorf("%w: diagonal element %d is negative (%g)", ckf.ErrInvalidCovariance, i, v)
			}
			s.SetSym(i, i, v)
		}
		return s, nil
	case n * n:
		full := mat.NewDense(n, n, append([]float64(nil), values...))
		if !ckf.IsSymmetric(full, ckf.SymmetryTolerance) {
			return nil, fmt.Errorf("%w: matrix is not symmetric", ckf.ErrInvalidCovariance)
		}
		return ckf.Symmetrize(full), nil
	default:
		return nil, fmt.Errorf("%w: got %d values, want %d (diagonal) or %d (full)", ckf.ErrDimensionMismatch, len(values), n, n*n)
	}
}
