package ckf

import "errors"

var (
	// ErrInvalidCovariance is returned when a covariance matrix is not
	// symmetric positive semi-definite within tolerance. The filter state
	// is left unchanged when a cycle fails with this error.
	ErrInvalidCovariance = errors.New("covariance is not symmetric positive semi-definite")

	// ErrDimensionMismatch is returned when state, measurement or noise
	// dimensions disagree with the configured models.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
