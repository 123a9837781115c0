package model

import "errors"

// Sentinel kinds shared by the service and its transports.
var (
	ErrInvalidRequest = errors.New("invalid analysis request")
	ErrBackpressure   = errors.New("analysis queue full")
	ErrJobNotFound    = errors.New("analysis not found")
	ErrNotStarted     = errors.New("service not started")
)
