package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cubature/internal/ckf"
	"github.com/banshee-data/cubature/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func symValues(s *mat.SymDense) []float64 {
	n := s.SymmetricDim()
	out := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out = append(out, s.At(i, j))
		}
	}
	return out
}

func TestEmptyFilterConfigDefaults(t *testing.T) {
	cfg := EmptyFilterConfig()

	if got := cfg.GetMotionModel(); got != models.MotionCTRV5 {
		t.Errorf("GetMotionModel() = %q, want %q", got, models.MotionCTRV5)
	}
	if got := cfg.GetMeasurementModel(); got != models.MeasurementPosition {
		t.Errorf("GetMeasurementModel() = %q, want %q", got, models.MeasurementPosition)
	}
	if cfg.GetLinearUpdate() {
		t.Error("GetLinearUpdate() = true, want false")
	}
	if got := cfg.GetDT(); got != 0.1 {
		t.Errorf("GetDT() = %v, want 0.1", got)
	}
	if got := cfg.GetSteps(); got != 200 {
		t.Errorf("GetSteps() = %d, want 200", got)
	}
	if got := cfg.GetSeed(); got != 1 {
		t.Errorf("GetSeed() = %d, want 1", got)
	}

	q, err := cfg.GetProcessNoise(3)
	if err != nil {
		t.Fatalf("GetProcessNoise: %v", err)
	}
	want := []float64{1e-4, 0, 0, 0, 1e-4, 0, 0, 0, 1e-4}
	if diff := cmp.Diff(want, symValues(q)); diff != "" {
		t.Errorf("GetProcessNoise mismatch (-want +got):\n%s", diff)
	}

	x0, err := cfg.GetPriorMean(5)
	if err != nil {
		t.Fatalf("GetPriorMean: %v", err)
	}
	if diff := cmp.Diff(make([]float64, 5), mat.Col(nil, 0, x0)); diff != "" {
		t.Errorf("GetPriorMean mismatch (-want +got):\n%s", diff)
	}

	truth, err := cfg.GetTruthState(5)
	if err != nil {
		t.Fatalf("GetTruthState: %v", err)
	}
	if diff := cmp.Diff(make([]float64, 5), truth); diff != "" {
		t.Errorf("GetTruthState mismatch (-want +got):\n%s", diff)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate, got %v", err)
	}
}

func TestGettersUseSetValues(t *testing.T) {
	cfg := &FilterConfig{
		MotionModel:      ptrString(models.MotionCHCV4),
		MeasurementModel: ptrString(models.MeasurementRangeBearing),
		LinearUpdate:     ptrBool(true),
		DT:               ptrFloat64(0.01),
		Steps:            ptrInt(50),
		Seed:             ptrUint64(42),
		MeasurementNoise: []float64{0.000225, 0.0001},
		SimulationNoise:  []float64{1, 0.5, 0.5, 1},
		PriorMean:        []float64{0, 0, 1e-6, 1e-6},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.GetMotionModel() != models.MotionCHCV4 || cfg.GetMeasurementModel() != models.MeasurementRangeBearing {
		t.Errorf("model tags not taken from config: %q %q", cfg.GetMotionModel(), cfg.GetMeasurementModel())
	}
	if !cfg.GetLinearUpdate() || cfg.GetDT() != 0.01 || cfg.GetSteps() != 50 || cfg.GetSeed() != 42 {
		t.Errorf("scalar getters ignored set values: %v %v %v %v",
			cfg.GetLinearUpdate(), cfg.GetDT(), cfg.GetSteps(), cfg.GetSeed())
	}

	sim, err := cfg.GetSimulationNoise(2)
	if err != nil {
		t.Fatalf("GetSimulationNoise: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 0.5, 0.5, 1}, symValues(sim)); diff != "" {
		t.Errorf("full simulation noise mismatch (-want +got):\n%s", diff)
	}

	truth, err := cfg.GetTruthState(4)
	if err != nil {
		t.Fatalf("GetTruthState: %v", err)
	}
	if diff := cmp.Diff(cfg.PriorMean, truth); diff != "" {
		t.Errorf("truth should default to the prior mean (-want +got):\n%s", diff)
	}
}

func TestLoadFilterConfig(t *testing.T) {
	path := writeConfig(t, `{
  "motion_model": "ctrv5",
  "measurement_model": "position_speed_yawrate",
  "linear_update": true,
  "dt": 0.1,
  "process_noise": [1, 1, 0.0174533, 1, 0.0174533],
  "measurement_noise": [0.000225, 0.0001, 0.0001, 0.0001],
  "prior_mean": [0, 0, 0, 10, 1],
  "steps": 100,
  "seed": 7
}`)

	cfg, err := LoadFilterConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.MeasurementModel == nil || *cfg.MeasurementModel != models.MeasurementPositionSpeedYawRate {
		t.Errorf("Expected measurement model %q, got %v", models.MeasurementPositionSpeedYawRate, cfg.MeasurementModel)
	}
	if cfg.Seed == nil || *cfg.Seed != 7 {
		t.Errorf("Expected seed 7, got %v", cfg.Seed)
	}

	built, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Motion.StateDim() != 5 || built.Measurement.MeasurementDim() != 4 {
		t.Errorf("Build dims: state %d, measurement %d", built.Motion.StateDim(), built.Measurement.MeasurementDim())
	}
	if !built.UseLinearUpdate {
		t.Error("Build dropped linear_update")
	}
	wantQ := []float64{1, 1, 0.0174533, 1, 0.0174533}
	gotQ := make([]float64, 5)
	for i := range gotQ {
		gotQ[i] = built.Q.At(i, i)
	}
	if diff := cmp.Diff(wantQ, gotQ, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Q diagonal mismatch (-want +got):\n%s", diff)
	}
	if _, err := ckf.New(built); err != nil {
		t.Errorf("built config rejected by filter: %v", err)
	}
}

func TestLoadFilterConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{
			name: "missing file",
			path: func(*testing.T) string { return "/nonexistent/path/to/filter.json" },
		},
		{
			name: "wrong extension",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "filter.yaml")
				if err := os.WriteFile(p, []byte("{}"), 0644); err != nil {
					t.Fatal(err)
				}
				return p
			},
		},
		{
			name: "invalid JSON",
			path: func(t *testing.T) string { return writeConfig(t, `{"dt": "fast"`) },
		},
		{
			name: "unknown motion model",
			path: func(t *testing.T) string { return writeConfig(t, `{"motion_model": "bicycle"}`) },
			want: models.ErrUnknownModel,
		},
		{
			name: "yaw rate measurement on 4 states",
			path: func(t *testing.T) string {
				return writeConfig(t, `{"motion_model": "chcv4", "measurement_model": "position_yawrate"}`)
			},
			want: ckf.ErrDimensionMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFilterConfig(tt.path(t))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error %v does not wrap %v", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	anyErr := errors.New("any error")
	tests := []struct {
		name    string
		cfg     *FilterConfig
		wantErr error
	}{
		{"empty", &FilterConfig{}, nil},
		{"zero dt", &FilterConfig{DT: ptrFloat64(0)}, anyErr},
		{"negative steps", &FilterConfig{Steps: ptrInt(-1)}, anyErr},
		{"short process noise", &FilterConfig{ProcessNoise: []float64{1, 1}}, ckf.ErrDimensionMismatch},
		{"negative variance", &FilterConfig{MeasurementNoise: []float64{1, -1}}, ckf.ErrInvalidCovariance},
		{"asymmetric prior", &FilterConfig{
			MotionModel:     ptrString(models.MotionCHCV4),
			PriorCovariance: []float64{1, 2, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		}, ckf.ErrInvalidCovariance},
		{"prior mean length", &FilterConfig{PriorMean: []float64{0, 0, 0, 0}}, ckf.ErrDimensionMismatch},
		{"truth length", &FilterConfig{TruthState: []float64{0, 0, 0, 0, 0, 0}}, ckf.ErrDimensionMismatch},
		{"full matrix", &FilterConfig{MeasurementNoise: []float64{1, 0.2, 0.2, 1}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			switch {
			case tt.wantErr == nil:
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			case err == nil:
				t.Error("expected error, got nil")
			case tt.wantErr != anyErr && !errors.Is(err, tt.wantErr):
				t.Errorf("error %v does not wrap %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	built, err := cfg.Build()
	if err != nil {
		t.Fatalf("default config does not build: %v", err)
	}
	if built.Motion.StateDim() != len(cfg.PriorMean) {
		t.Errorf("default prior mean has %d elements for a %d-state model", len(cfg.PriorMean), built.Motion.StateDim())
	}
	if _, err := cfg.GetTruthState(built.Motion.StateDim()); err != nil {
		t.Errorf("default truth state: %v", err)
	}
}

func TestExampleConfigsBuild(t *testing.T) {
	paths, err := filepath.Glob("../../config/examples/*.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no example configs found")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cfg, err := LoadFilterConfig(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			built, err := cfg.Build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if _, err := ckf.New(built); err != nil {
				t.Errorf("filter rejected config: %v", err)
			}
		})
	}
}
