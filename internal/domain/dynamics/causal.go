package dynamics

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/loopwise/pkg/logger"
)

// InferLinks produces one CausalLink for every unordered pair of metrics whose
// correlation is strong and significant. Pairs that lack data or fail a gate
// are skipped; the result is empty, never nil, when nothing qualifies.
func (e *Engine) InferLinks(ctx context.Context, series map[string][]float64, names []string) []CausalLink {
	metrics := presentMetrics(series, names)
	links := make([]CausalLink, 0)

	for i := 0; i < len(metrics); i++ {
		for j := i + 1; j < len(metrics); j++ {
			a, b := metrics[i], metrics[j]
			link, err := e.inferPair(a, b, series[a], series[b])
			if err != nil {
				e.logger.Debug(ctx, "skipping metric pair",
					logger.String("a", a),
					logger.String("b", b),
					logger.Error(err),
				)
				continue
			}
			links = append(links, link)
		}
	}
	return links
}

// inferPair tests one pair. The earlier-listed metric is the cause unless the
// lag scan finds the other one leading.
func (e *Engine) inferPair(a, b string, xs, ys []float64) (CausalLink, error) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < minObservations {
		return CausalLink{}, fmt.Errorf("%w: %d overlapping observations", errInsufficientData, n)
	}
	// align on the most recent n observations
	x := xs[len(xs)-n:]
	y := ys[len(ys)-n:]

	r, err := correlate(x, y)
	if err != nil {
		return CausalLink{}, err
	}
	p := pValue(r, n)
	if math.Abs(r) < e.minCorrelation {
		return CausalLink{}, fmt.Errorf("%w: |r|=%.3f below %.3f", errNotSignificant, math.Abs(r), e.minCorrelation)
	}
	if p >= e.significance || 1-p < e.minConfidence {
		return CausalLink{}, fmt.Errorf("%w: p=%.4f", errNotSignificant, p)
	}

	from, to := a, b
	lag, delay := -1, DelayUnknown
	if est, err := estimateLag(x, y, e.maxLag); err == nil {
		lag, delay = est.lag, DelayForLag(est.lag)
		if est.reversed && est.lag > 0 {
			from, to = b, a
		}
	}

	polarity := PolarityOf(r)
	return CausalLink{
		From:        from,
		To:          to,
		Polarity:    polarity,
		Strength:    clamp(math.Abs(r)*100, 0, 100),
		Delay:       delay,
		Correlation: r,
		PValue:      p,
		Lag:         lag,
		Description: describeLink(from, to, polarity, delay),
	}, nil
}

func describeLink(from, to string, p Polarity, d Delay) string {
	direction := "increases"
	if p == Negative {
		direction = "decreases"
	}
	switch d {
	case DelayNone:
		return fmt.Sprintf("Increases in %s coincide with %s in %s", from, direction, to)
	case DelayUnknown:
		return fmt.Sprintf("Increases in %s are associated with %s in %s", from, direction, to)
	default:
		return fmt.Sprintf("Increases in %s are followed by %s in %s after a %s delay", from, direction, to, d)
	}
}

// presentMetrics de-duplicates names, keeping first-seen order, and drops
// names that have no series.
func presentMetrics(series map[string][]float64, names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := series[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
