package service

import "errors"

// Core error taxonomy. The HTTP adapter maps each kind to a distinct status
// code; rate limiting is reported separately via *quota.RateLimitError.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrGone                = errors.New("no longer available")
	ErrConflict            = errors.New("short code already taken")
	ErrPasswordRequired    = errors.New("password required")
	ErrWrongPassword       = errors.New("wrong password")
	ErrForbidden           = errors.New("operation not permitted")
	ErrAllocationExhausted = errors.New("code allocation exhausted")
)
