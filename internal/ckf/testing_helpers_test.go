package ckf

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// identityMotion leaves the state unchanged.
type identityMotion struct{ n int }

func (m identityMotion) StateDim() int { return m.n }
func (m identityMotion) Propagate(x mat.Vector, _ float64) *mat.VecDense {
	return mat.VecDenseCopyOf(x)
}

// randomSPD returns A·Aᵀ + n·I for a seeded random A.
func randomSPD(n int, seed uint64) *mat.SymDense {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, rng.NormFloat64())
		}
	}
	p := mat.NewSymDense(n, nil)
	p.SymOuterK(1, a)
	for i := 0; i < n; i++ {
		p.SetSym(i, i, p.At(i, i)+float64(n))
	}
	return p
}

func randomVec(n int, seed uint64) *mat.VecDense {
	rng := rand.New(rand.NewPCG(seed, seed+7))
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, 10*rng.Float64()-5)
	}
	return v
}

func diag(values ...float64) *mat.SymDense {
	s := mat.NewSymDense(len(values), nil)
	for i, v := range values {
		s.SetSym(i, i, v)
	}
	return s
}

func requireMatrixNear(t *testing.T, want, got mat.Matrix, tol float64, msgAndArgs ...interface{}) {
	t.Helper()
	wr, wc := want.Dims()
	gr, gc := got.Dims()
	require.Equal(t, []int{wr, wc}, []int{gr, gc}, msgAndArgs...)
	require.Truef(t, mat.EqualApprox(want, got, tol), "want\n%v\ngot\n%v", mat.Formatted(want), mat.Formatted(got))
}
