package models

import "errors"

var (
	// ErrTimeIndexOutOfRange is returned when a time index (or a time rounded
	// to one) falls outside [0, NumberOfTimes).
	ErrTimeIndexOutOfRange = errors.New("time index out of range")
	// ErrDegenerateLattice is returned when the up factor is not strictly
	// greater than the down factor.
	ErrDegenerateLattice = errors.New("degenerate lattice: up factor must exceed down factor")
	// ErrArbitrage is returned when the risk-neutral up probability falls
	// outside [0, 1], i.e. d < 1+rho < u does not hold.
	ErrArbitrage = errors.New("calibration admits arbitrage")
	// ErrInvalidParameter is returned for unusable model inputs.
	ErrInvalidParameter = errors.New("invalid model parameter")
)
