package dynamics

import "github.com/okian/loopwise/pkg/logger"

// Default engine configuration constants.
const (
	DefaultMinCorrelation           = 0.5
	DefaultMinConfidence            = 0.7
	DefaultSignificanceLevel        = 0.05
	DefaultMaxLag                   = 4
	DefaultMaxCycles                = 20
	DefaultMaxInformationFlowPoints = 10
	DefaultStrongLoopThreshold      = 0.0
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMinCorrelation sets the minimum |r| for a link. Values outside (0,1] are ignored.
func WithMinCorrelation(v float64) Option {
	return func(e *Engine) {
		if v > 0 && v <= 1 {
			e.minCorrelation = v
		}
	}
}

// WithMinConfidence sets the minimum 1-p for a link. Values outside (0,1] are ignored.
func WithMinConfidence(v float64) Option {
	return func(e *Engine) {
		if v > 0 && v <= 1 {
			e.minConfidence = v
		}
	}
}

// WithSignificanceLevel sets the p-value a link must stay strictly below.
func WithSignificanceLevel(alpha float64) Option {
	return func(e *Engine) {
		if alpha > 0 && alpha <= 1 {
			e.significance = alpha
		}
	}
}

// WithMaxLag sets the largest lag scanned when estimating delays. Zero disables the scan.
func WithMaxLag(lag int) Option {
	return func(e *Engine) {
		if lag >= 0 {
			e.maxLag = lag
		}
	}
}

// WithMaxCycles bounds the number of cycles the loop search records.
func WithMaxCycles(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCycles = n
		}
	}
}

// WithMaxInformationFlowPoints bounds the number of level-6 leverage points.
func WithMaxInformationFlowPoints(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxInfoFlow = n
		}
	}
}

// WithStrongLoopThreshold sets the strength at which a balancing loop gets a
// parameter-tuning candidate even when it is not the dominant loop. Zero, the
// default, limits that candidate to the dominant loop.
func WithStrongLoopThreshold(v float64) Option {
	return func(e *Engine) {
		if v >= 0 && v <= 100 {
			e.strongLoop = v
		}
	}
}

// WithCanonicalCycles toggles rotation-insensitive cycle de-duplication.
func WithCanonicalCycles(enabled bool) Option {
	return func(e *Engine) {
		e.canonicalCycles = enabled
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
