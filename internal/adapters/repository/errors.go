package repository

import "errors"

// Sentinel kinds for job store errors.
var (
	ErrNotFound   = errors.New("analysis not found")
	ErrInvalidJob = errors.New("invalid job")
)
