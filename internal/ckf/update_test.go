package ckf

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cubature/internal/models"
	"github.com/banshee-data/cubature/internal/monitoring"
)

func mustMeasurement(t *testing.T, tag string, n int) models.Measurement {
	t.Helper()
	m, err := models.NewMeasurement(tag, n)
	require.NoError(t, err)
	return m
}

func TestUpdate_LinearEquivalence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag string
		n   int
	}{
		{models.MeasurementPosition, 4},
		{models.MeasurementPosition, 5},
		{models.MeasurementPositionYawRate, 5},
		{models.MeasurementPositionSpeedYawRate, 5},
	}
	for i, tc := range cases {
		tc := tc
		t.Run(tc.tag, func(t *testing.T) {
			t.Parallel()
			h := mustMeasurement(t, tc.tag, tc.n).(LinearMeasurement)
			o := h.MeasurementDim()

			x := randomVec(tc.n, uint64(500+i))
			p := randomSPD(tc.n, uint64(600+i))
			z := randomVec(o, uint64(700+i))
			r := randomSPD(o, uint64(800+i))

			xn, pn, err := Update(x, p, z, h, r)
			require.NoError(t, err)
			xl, pl, err := UpdateLinear(x, p, z, h, r)
			require.NoError(t, err)

			assert.True(t, mat.EqualApprox(xl, xn, 1e-9), "x: linear %v nonlinear %v",
				mat.Formatted(xl.T()), mat.Formatted(xn.T()))
			requireMatrixNear(t, pl, pn, 1e-9)
		})
	}
}

func TestUpdate_TraceShrinks(t *testing.T) {
	t.Parallel()

	rb := models.RangeBearing{States: 5, SensorX: -20, SensorY: 5}
	pos := mustMeasurement(t, models.MeasurementPosition, 5)

	for seed := uint64(0); seed < 20; seed++ {
		x := randomVec(5, 900+seed)
		p := randomSPD(5, 1000+seed)

		z := rb.Observe(randomVec(5, 1100+seed))
		_, pn, err := Update(x, p, z, rb, diag(0.5, 0.01))
		require.NoError(t, err)
		assert.LessOrEqual(t, Trace(pn), Trace(p)+1e-12, "range/bearing seed %d", seed)

		zp := pos.Observe(randomVec(5, 1200+seed))
		_, pl, err := UpdateLinear(x, p, zp, pos.(LinearMeasurement), diag(0.1, 0.1))
		require.NoError(t, err)
		assert.LessOrEqual(t, Trace(pl), Trace(p)+1e-12, "position seed %d", seed)

		_, err = SqrtSym(pn)
		assert.NoError(t, err, "posterior must stay PSD")
	}
}

func TestUpdate_SingularInnovationIsAbsorbed(t *testing.T) {
	var lines []string
	restore := monitoring.Capture(&lines)
	defer restore()

	// No position uncertainty and no measurement noise: S is the zero
	// matrix and the update has nothing to correct.
	x := mat.NewVecDense(4, []float64{1, 2, 0.1, 3})
	p := diag(0, 0, 1, 1)
	z := mat.NewVecDense(2, []float64{5, 5})
	h := mustMeasurement(t, models.MeasurementPosition, 4)

	xn, pn, err := Update(x, p, z, h, mat.NewSymDense(2, nil))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(x, xn, 1e-12))
	requireMatrixNear(t, p, pn, 1e-12)

	require.NotEmpty(t, lines)
	assert.True(t, strings.Contains(lines[0], "ill-conditioned"), lines[0])

	xl, _, err := UpdateLinear(x, p, z, h.(LinearMeasurement), mat.NewSymDense(2, nil))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.False(t, math.IsNaN(xl.AtVec(i)))
	}
}

func TestUpdate_CollinearMeasurementGeometry(t *testing.T) {
	var discard []string
	defer monitoring.Capture(&discard)()

	// Two identical position measurements of x: rank-deficient S.
	sel, err := models.NewSelector("x_twice", 4, 0, 0)
	require.NoError(t, err)
	x := mat.NewVecDense(4, []float64{0, 0, 0, 1})
	p := diag(1, 1, 1, 1)
	z := mat.NewVecDense(2, []float64{1, 1})

	xn, pn, err := Update(x, p, z, sel, mat.NewSymDense(2, nil))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, xn.AtVec(0), 1e-9)
	assert.InDelta(t, 0.0, pn.At(0, 0), 1e-9)
	assert.InDelta(t, 1.0, pn.At(1, 1), 1e-9)
}

func TestUpdate_BearingResidualWraps(t *testing.T) {
	t.Parallel()
	rb := models.RangeBearing{States: 4}
	// Target just above the negative x axis; measurement just below it.
	x := mat.NewVecDense(4, []float64{-10, 0.05, 0, 0})
	p := diag(0.01, 0.01, 0.01, 0.01)
	z := mat.NewVecDense(2, []float64{10, -math.Pi + 0.001})

	xn, _, err := Update(x, p, z, rb, diag(0.01, 0.0001))
	require.NoError(t, err)
	// The correction must pull y towards the axis, not fling it across the plane.
	assert.InDelta(t, -10.0, xn.AtVec(0), 0.5)
	assert.Less(t, math.Abs(xn.AtVec(1)), 0.5)
}

func TestUpdate_DimensionErrors(t *testing.T) {
	t.Parallel()
	h := mustMeasurement(t, models.MeasurementPosition, 4)
	x := mat.NewVecDense(4, nil)
	p := diag(1, 1, 1, 1)

	_, _, err := Update(x, p, mat.NewVecDense(3, nil), h, diag(1, 1))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, _, err = Update(x, p, mat.NewVecDense(2, nil), h, diag(1, 1, 1))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, _, err = UpdateLinear(mat.NewVecDense(5, nil), diag(1, 1, 1, 1, 1), mat.NewVecDense(2, nil), h.(LinearMeasurement), diag(1, 1))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, _, err = Update(x, diag(1, -1, 1, 1), mat.NewVecDense(2, nil), h, diag(1, 1))
	assert.ErrorIs(t, err, ErrInvalidCovariance)
}
