package ckf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CubaturePoints is the third-degree spherical-radial cubature point set
// for an n-dimensional Gaussian: 2n equally weighted points stored one per
// column of Points.
type CubaturePoints struct {
	Points  *mat.Dense // n × 2n
	Weights []float64  // len 2n, each 1/(2n)
}

// Len returns the number of points (2n).
func (cp *CubaturePoints) Len() int {
	return len(cp.Weights)
}

// Point returns a copy of the i-th point.
func (cp *CubaturePoints) Point(i int) *mat.VecDense {
	n, _ := cp.Points.Dims()
	v := mat.NewVecDense(n, nil)
	v.CopyVec(cp.Points.ColView(i))
	return v
}

// GeneratePoints builds the cubature points for mean x and covariance p:
//
//	SP[k]   = x + √n · S[:,k]
//	SP[k+n] = x − √n · S[:,k]
//
// where S = SqrtSym(p). The weighted mean and covariance of the returned
// points equal x and p.
func GeneratePoints(x mat.Vector, p mat.Matrix) (*CubaturePoints, error) {
	n := x.Len()
	if r, c := p.Dims(); r != n || c != n {
		return nil, fmt.Errorf("%w: mean has %d elements, covariance is %dx%d", ErrDimensionMismatch, n, r, c)
	}
	s, err := SqrtSym(p)
	if err != nil {
		return nil, err
	}

	scale := math.Sqrt(float64(n))
	points := mat.NewDense(n, 2*n, nil)
	weights := make([]float64, 2*n)
	w := 1 / float64(2*n)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			d := scale * s.At(i, k)
			points.Set(i, k, x.AtVec(i)+d)
			points.Set(i, k+n, x.AtVec(i)-d)
		}
		weights[k] = w
		weights[k+n] = w
	}
	return &CubaturePoints{Points: points, Weights: weights}, nil
}

// Transform maps every point through fn and returns the images as the
// columns of a new matrix. fn must return vectors of a constant length.
func (cp *CubaturePoints) Transform(fn func(mat.Vector) *mat.VecDense) *mat.Dense {
	var out *mat.Dense
	for i := 0; i < cp.Len(); i++ {
		y := fn(cp.Points.ColView(i))
		if out == nil {
			out = mat.NewDense(y.Len(), cp.Len(), nil)
		}
		out.SetCol(i, mat.Col(nil, 0, y))
	}
	return out
}

// WeightedMean returns Σ w[i]·cols[:,i].
func WeightedMean(cols *mat.Dense, w []float64) *mat.VecDense {
	r, _ := cols.Dims()
	mean := mat.NewVecDense(r, nil)
	for i, wi := range w {
		mean.AddScaledVec(mean, wi, cols.ColView(i))
	}
	return mean
}

// WeightedCovariance returns seed + Σ w[i]·(cols[:,i]−mean)(cols[:,i]−mean)ᵀ.
// A nil seed starts the accumulation from zero. The seed is not modified.
func WeightedCovariance(seed mat.Symmetric, cols *mat.Dense, mean mat.Vector, w []float64) *mat.SymDense {
	r, _ := cols.Dims()
	acc := mat.NewSymDense(r, nil)
	if seed != nil {
		acc.CopySym(seed)
	}
	d := mat.NewVecDense(r, nil)
	for i, wi := range w {
		d.SubVec(cols.ColView(i), mean)
		acc.SymRankOne(acc, wi, d)
	}
	return acc
}

// WeightedCrossCovariance returns Σ w[i]·(a[:,i]−ma)(b[:,i]−mb)ᵀ.
func WeightedCrossCovariance(a *mat.Dense, ma mat.Vector, b *mat.Dense, mb mat.Vector, w []float64) *mat.Dense {
	ra, _ := a.Dims()
	rb, _ := b.Dims()
	acc := mat.NewDense(ra, rb, nil)
	da := mat.NewVecDense(ra, nil)
	db := mat.NewVecDense(rb, nil)
	for i, wi := range w {
		da.SubVec(a.ColView(i), ma)
		db.SubVec(b.ColView(i), mb)
		acc.RankOne(acc, wi, da, db)
	}
	return acc
}
