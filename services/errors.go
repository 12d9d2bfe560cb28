package services

import "errors"

// Sentinel errors reported to controllers; everything else that comes out of
// this package is a wrapped storage failure.
var (
	// ErrInvalidPayload marks a pulse with a missing device id or negative counts.
	ErrInvalidPayload = errors.New("invalid pulse payload")
	// ErrUnknownDevice marks a pulse from a device no site is registered for.
	ErrUnknownDevice = errors.New("device not registered")
	// ErrInvalidCapacity marks a site whose max capacity is not positive.
	ErrInvalidCapacity = errors.New("site capacity must be positive")
)
