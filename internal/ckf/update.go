package ckf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cubature/internal/monitoring"
)

// Update fuses measurement z into the predicted (x, p) using the nonlinear
// cubature correction:
//
//	ŷ    = Σ W[i]·h(SP[i])
//	S    = R + Σ W[i]·(Y[i]−ŷ)(Y[i]−ŷ)ᵀ
//	P_xy = Σ W[i]·(SP[i]−x)(Y[i]−ŷ)ᵀ
//	x⁺   = x + P_xy·pinv(S)·(z−ŷ)
//	P⁺   = P − P_xy·pinv(S)·P_xyᵀ
//
// S is inverted with Pinv, so a singular or ill-conditioned innovation
// covariance degrades to a best-effort generalized inverse instead of
// failing. That case is logged, not returned as an error.
//
// Models implementing MeanModel or ResidualModel replace the arithmetic mean
// and the plain difference used for ŷ and every Y[i]−ŷ.
func Update(x mat.Vector, p mat.Matrix, z mat.Vector, h MeasurementModel, r mat.Symmetric) (*mat.VecDense, *mat.SymDense, error) {
	if err := checkMeasurementDims(x, z, h, r); err != nil {
		return nil, nil, err
	}

	cp, err := GeneratePoints(x, p)
	if err != nil {
		return nil, nil, fmt.Errorf("update: %w", err)
	}

	observed := cp.Transform(h.Observe)
	if rows, _ := observed.Dims(); rows != h.MeasurementDim() {
		return nil, nil, fmt.Errorf("%w: measurement model returned %d elements, expected %d", ErrDimensionMismatch, rows, h.MeasurementDim())
	}
	yHat := measurementMean(h, observed, cp.Weights)
	dev := deviations(h, observed, yHat)
	zero := mat.NewVecDense(h.MeasurementDim(), nil)
	s := WeightedCovariance(r, dev, zero, cp.Weights)
	pxy := WeightedCrossCovariance(cp.Points, x, dev, zero, cp.Weights)

	sInv := innovationInverse(s)

	// gain = P_xy · pinv(S)
	var gain mat.Dense
	gain.Mul(pxy, sInv)

	innov := residual(h, z, yHat)
	xUpd := mat.NewVecDense(x.Len(), nil)
	xUpd.MulVec(&gain, innov)
	xUpd.AddVec(xUpd, x)

	var shrink mat.Dense
	shrink.Mul(&gain, pxy.T())
	var pUpd mat.Dense
	pUpd.Sub(p, &shrink)

	return xUpd, Symmetrize(&pUpd), nil
}

// UpdateLinear is the closed-form Kalman update for a linear measurement
// model z = H·x + v:
//
//	S  = H·P·Hᵀ + R
//	K  = P·Hᵀ·pinv(S)
//	x⁺ = x + K·(z − H·x)
//	P⁺ = P − K·S·Kᵀ
//
// For a linear h it matches Update within round-off. As with Update, S is
// inverted with Pinv and never produces an error.
func UpdateLinear(x mat.Vector, p mat.Matrix, z mat.Vector, h LinearMeasurement, r mat.Symmetric) (*mat.VecDense, *mat.SymDense, error) {
	if err := checkMeasurementDims(x, z, h, r); err != nil {
		return nil, nil, err
	}
	if pr, pc := p.Dims(); pr != x.Len() || pc != x.Len() {
		return nil, nil, fmt.Errorf("%w: covariance is %dx%d, state has %d elements", ErrDimensionMismatch, pr, pc, x.Len())
	}
	H := h.Matrix()
	if hr, hc := H.Dims(); hr != h.MeasurementDim() || hc != x.Len() {
		return nil, nil, fmt.Errorf("%w: observation matrix is %dx%d, expected %dx%d", ErrDimensionMismatch, hr, hc, h.MeasurementDim(), x.Len())
	}

	var pht mat.Dense
	pht.Mul(p, H.T())
	var s mat.Dense
	s.Mul(H, &pht)
	s.Add(&s, r)

	sInv := innovationInverse(&s)
	var k mat.Dense
	k.Mul(&pht, sInv)

	predicted := mat.NewVecDense(h.MeasurementDim(), nil)
	predicted.MulVec(H, x)
	innov := residual(h, z, predicted)

	xUpd := mat.NewVecDense(x.Len(), nil)
	xUpd.MulVec(&k, innov)
	xUpd.AddVec(xUpd, x)

	var ks mat.Dense
	ks.Mul(&k, &s)
	var kskt mat.Dense
	kskt.Mul(&ks, k.T())
	var pUpd mat.Dense
	pUpd.Sub(p, &kskt)

	return xUpd, Symmetrize(&pUpd), nil
}

func innovationInverse(s mat.Matrix) *mat.Dense {
	inv, cond := pinv(s)
	if cond > IllConditionedThreshold {
		monitoring.Logf("ckf: innovation covariance ill-conditioned (cond=%.3g); using pseudo-inverse", cond)
	}
	return inv
}

func checkMeasurementDims(x, z mat.Vector, h MeasurementModel, r mat.Symmetric) error {
	if x.Len() != h.StateDim() {
		return fmt.Errorf("%w: state has %d elements, measurement model expects %d", ErrDimensionMismatch, x.Len(), h.StateDim())
	}
	m := h.MeasurementDim()
	if z.Len() != m {
		return fmt.Errorf("%w: measurement has %d elements, measurement model expects %d", ErrDimensionMismatch, z.Len(), m)
	}
	if r.SymmetricDim() != m {
		return fmt.Errorf("%w: measurement noise is %dx%[2]d, measurement model expects %d", ErrDimensionMismatch, r.SymmetricDim(), m)
	}
	return nil
}
