package domain

import "errors"

// ErrInvalidInput marks caller contract violations: mismatched series
// lengths, out-of-range coefficients, non-positive areas. These fail fast and
// are never silently coerced.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoCatchment reports that no catchment contains a given point. Callers
// translate it into a client-facing not-found response.
var ErrNoCatchment = errors.New("no catchment found for point")
