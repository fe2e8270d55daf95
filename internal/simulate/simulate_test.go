package simulate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cubature/internal/models"
)

func position(t *testing.T, n int) models.Measurement {
	t.Helper()
	m, err := models.NewMeasurement(models.MeasurementPosition, n)
	require.NoError(t, err)
	return m
}

func diag(v ...float64) *mat.SymDense {
	s := mat.NewSymDense(len(v), nil)
	for i, x := range v {
		s.SetSym(i, i, x)
	}
	return s
}

func TestRun_Noiseless(t *testing.T) {
	t.Parallel()

	samples, err := Run(Scenario{
		Motion:      models.CHCV{},
		Measurement: position(t, 4),
		Initial:     []float64{0, 0, 0, 2},
		DT:          0.5,
		Steps:       4,
	})
	require.NoError(t, err)
	require.Len(t, samples, 4)

	for i, s := range samples {
		step := float64(i + 1)
		assert.Equal(t, i+1, s.Step)
		assert.InDelta(t, 0.5*step, s.Time, 1e-12)
		assert.InDeltaSlice(t, []float64{step, 0, 0, 2}, s.Truth, 1e-12)
		assert.Equal(t, s.Clean, s.Measured)
		assert.InDeltaSlice(t, []float64{step, 0}, s.Clean, 1e-12)
	}
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	sc := Scenario{
		Motion:      models.CTRV{},
		Measurement: position(t, 5),
		Initial:     []float64{0, 0, 0, 2, 0.1},
		DT:          0.1,
		Steps:       20,
		Noise:       diag(0.04, 0.01),
		Seed:        9,
	}
	a, err := Run(sc)
	require.NoError(t, err)
	b, err := Run(sc)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(a, b))

	sc.Seed = 10
	c, err := Run(sc)
	require.NoError(t, err)
	assert.NotEmpty(t, cmp.Diff(a, c))
	// The truth does not depend on the noise seed.
	for i := range a {
		assert.Equal(t, a[i].Truth, c[i].Truth)
	}
}

func TestRun_NoiseStatistics(t *testing.T) {
	t.Parallel()

	samples, err := Run(Scenario{
		Motion:      models.CHCV{},
		Measurement: position(t, 4),
		Initial:     []float64{0, 0, 0, 0},
		DT:          1,
		Steps:       5000,
		Noise:       diag(0.04, 0.01),
		Seed:        1,
	})
	require.NoError(t, err)

	ex := make([]float64, len(samples))
	ey := make([]float64, len(samples))
	for i, s := range samples {
		ex[i] = s.Measured[0] - s.Clean[0]
		ey[i] = s.Measured[1] - s.Clean[1]
	}
	assert.InDelta(t, 0, stat.Mean(ex, nil), 0.02)
	assert.InDelta(t, 0.2, stat.StdDev(ex, nil), 0.02)
	assert.InDelta(t, 0.1, stat.StdDev(ey, nil), 0.01)
}

func TestRun_InvalidScenario(t *testing.T) {
	t.Parallel()

	base := func() Scenario {
		return Scenario{
			Motion:      models.CTRV{},
			Measurement: position(t, 5),
			Initial:     []float64{0, 0, 0, 1, 0},
			DT:          0.1,
			Steps:       3,
		}
	}
	tests := map[string]func(*Scenario){
		"no motion":         func(s *Scenario) { s.Motion = nil },
		"short initial":     func(s *Scenario) { s.Initial = []float64{0, 0} },
		"mismatched models": func(s *Scenario) { s.Measurement = position(t, 4) },
		"zero dt":           func(s *Scenario) { s.DT = 0 },
		"negative steps":    func(s *Scenario) { s.Steps = -1 },
		"wrong noise size":  func(s *Scenario) { s.Noise = diag(1, 1, 1) },
		"indefinite noise":  func(s *Scenario) { s.Noise = diag(1, -1) },
	}
	for name, mutate := range tests {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			sc := base()
			mutate(&sc)
			_, err := Run(sc)
			require.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 5, PositionError([]float64{3, 4, 9}, []float64{0, 0, 1}), 1e-12)
	assert.Equal(t, 0.0, RMSE(nil))
	assert.InDelta(t, math.Sqrt(12.5), RMSE([]float64{3, 4}), 1e-12)
}
