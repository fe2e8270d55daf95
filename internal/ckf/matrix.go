package ckf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cubature/internal/monitoring"
)

// Numerical tolerances. Not user-tunable.
const (
	// SymmetryTolerance is the relative asymmetry accepted before a matrix
	// is rejected as a covariance.
	SymmetryTolerance = 1e-9
	// NegativeEigenTolerance is the relative magnitude of a negative
	// eigenvalue that is still treated as round-off and clamped to zero.
	NegativeEigenTolerance = 1e-9
	// PinvRcond matches the NumPy default cutoff for small singular values.
	PinvRcond = 1e-15
	// IllConditionedThreshold is the innovation covariance condition number
	// above which the update logs that the pseudo-inverse is doing real work.
	IllConditionedThreshold = 1e12
)

// IsSymmetric reports whether m is square and symmetric within tol
// relative to its largest entry.
func IsSymmetric(m mat.Matrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}
	scale := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			scale = math.Max(scale, math.Abs(m.At(i, j)))
		}
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol*scale {
				return false
			}
		}
	}
	return true
}

// Symmetrize returns (m + mᵀ)/2 as a SymDense. m must be square.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

// SqrtSym returns the principal square root S of the symmetric positive
// semi-definite matrix p, so that S·Sᵀ = S·S = p. It is computed from the
// eigendecomposition p = V·Λ·Vᵀ as S = V·√Λ·Vᵀ.
//
// Negative eigenvalues within NegativeEigenTolerance of the largest
// eigenvalue magnitude are round-off and are clamped to zero. The tolerance
// has no absolute floor, so tiny-scale covariances are judged by their own
// magnitude.
// A matrix that is not square, not symmetric, or has a materially negative
// eigenvalue yields ErrInvalidCovariance.
func SqrtSym(p mat.Matrix) (*mat.Dense, error) {
	r, c := p.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: matrix is %dx%d", ErrInvalidCovariance, r, c)
	}
	if !IsSymmetric(p, SymmetryTolerance) {
		return nil, fmt.Errorf("%w: matrix is not symmetric", ErrInvalidCovariance)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := p.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite entry at (%d,%d)", ErrInvalidCovariance, i, j)
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(Symmetrize(p), true); !ok {
		return nil, fmt.Errorf("%w: eigendecomposition failed", ErrInvalidCovariance)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	maxAbs := 0.0
	for _, v := range values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	for i, v := range values {
		if v < 0 {
			if v < -NegativeEigenTolerance*maxAbs {
				return nil, fmt.Errorf("%w: eigenvalue %g is negative", ErrInvalidCovariance, v)
			}
			v = 0
		}
		values[i] = math.Sqrt(v)
	}

	// S = V · diag(√λ) · Vᵀ
	var scaled mat.Dense
	scaled.Apply(func(_, j int, v float64) float64 { return v * values[j] }, &vectors)
	var s mat.Dense
	s.Mul(&scaled, vectors.T())
	return &s, nil
}

// Pinv returns the Moore-Penrose pseudo-inverse of m.
//
// Singular values below PinvRcond·σmax are treated as zero, so a singular or
// ill-conditioned m still yields a best-effort generalized inverse rather
// than an error. Callers relying on Pinv for an innovation covariance
// should watch for repeated covariance collapse.
func Pinv(m mat.Matrix) *mat.Dense {
	inv, _ := pinv(m)
	return inv
}

// pinv returns the pseudo-inverse and the 2-norm condition number of m
// (+Inf when m is rank deficient).
func pinv(m mat.Matrix) (*mat.Dense, float64) {
	r, c := m.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		monitoring.Logf("ckf: SVD of %dx%d matrix failed; returning zero pseudo-inverse", r, c)
		return mat.NewDense(c, r, nil), math.Inf(1)
	}
	sigma := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	if len(sigma) == 0 || sigma[0] == 0 {
		return mat.NewDense(c, r, nil), math.Inf(1)
	}
	cutoff := PinvRcond * sigma[0]
	cond := sigma[0] / sigma[len(sigma)-1]
	for i, s := range sigma {
		if s > cutoff {
			sigma[i] = 1 / s
		} else {
			sigma[i] = 0
			cond = math.Inf(1)
		}
	}

	// M⁺ = V · Σ⁺ · Uᵀ
	v.Apply(func(_, j int, x float64) float64 { return x * sigma[j] }, &v)
	var out mat.Dense
	out.Mul(&v, u.T())
	return &out, cond
}

// Trace returns the sum of the diagonal of the square matrix m.
func Trace(m mat.Matrix) float64 {
	return mat.Trace(m)
}
