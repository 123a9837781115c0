package dynamics

import "errors"

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	// ErrInvalidInput reports a failed precondition on AnalyzeSystem arguments.
	ErrInvalidInput = errors.New("invalid input")

	// errInsufficientData marks a pair or lag window with fewer than minObservations points.
	errInsufficientData = errors.New("insufficient data")

	// errUndefinedCorrelation marks a correlation that is NaN or infinite (e.g. a constant series).
	errUndefinedCorrelation = errors.New("undefined correlation")

	// errNotSignificant marks a pair whose correlation misses the strength or significance gates.
	errNotSignificant = errors.New("correlation not significant")
)
