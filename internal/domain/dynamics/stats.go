package dynamics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// minObservations is the smallest overlap for which a correlation is computed.
	minObservations = 3

	// lagTolerance keeps floating noise from moving the best lag away from a tie.
	lagTolerance = 1e-9
)

// correlate returns the Pearson correlation of two equal-length samples.
func correlate(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: length mismatch %d != %d", errInsufficientData, len(x), len(y))
	}
	if len(x) < minObservations {
		return 0, fmt.Errorf("%w: %d observations", errInsufficientData, len(x))
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, errUndefinedCorrelation
	}
	return clamp(r, -1, 1), nil
}

// pValue is the two-sided p-value of H0: rho = 0 for a sample correlation r
// over n observations, using t = r*sqrt((n-2)/(1-r^2)) with n-2 degrees of freedom.
func pValue(r float64, n int) float64 {
	df := float64(n - 2)
	if df <= 0 {
		return 1
	}
	rr := r * r
	if rr >= 1 {
		return 0
	}
	t := math.Abs(r) * math.Sqrt(df/(1-rr))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clamp(2*dist.Survival(t), 0, 1)
}

// lagEstimate is the outcome of a lead/lag scan over two aligned series.
type lagEstimate struct {
	lag      int
	reversed bool // the second series leads the first
	r        float64
}

// estimateLag scans lags 0..min(maxLag, n/2) in both lead directions and
// returns the lag with the largest |r|. Ties keep the smaller lag and the
// forward direction. An error means the lag-0 correlation itself failed.
func estimateLag(x, y []float64, maxLag int) (lagEstimate, error) {
	r0, err := correlate(x, y)
	if err != nil {
		return lagEstimate{}, err
	}
	best := lagEstimate{lag: 0, r: r0}

	n := len(x)
	limit := maxLag
	if half := n / 2; half < limit {
		limit = half
	}
	for k := 1; k <= limit; k++ {
		if n-k < minObservations {
			break
		}
		if r, err := correlate(x[:n-k], y[k:]); err == nil && math.Abs(r) > math.Abs(best.r)+lagTolerance {
			best = lagEstimate{lag: k, r: r}
		}
		if r, err := correlate(y[:n-k], x[k:]); err == nil && math.Abs(r) > math.Abs(best.r)+lagTolerance {
			best = lagEstimate{lag: k, reversed: true, r: r}
		}
	}
	return best, nil
}
