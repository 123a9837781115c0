package dynamics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/loopwise/pkg/logger"
)

// Time constant buckets derived from the mean delay of a loop's links.
const (
	TimeConstantImmediate = "immediate"
	TimeConstantShort     = "short-term"
	TimeConstantMedium    = "medium-term"
	TimeConstantLong      = "long-term"
	TimeConstantUnknown   = "unknown"
)

// maxInterventionPoints bounds the intervention hints attached to one loop.
const maxInterventionPoints = 3

// DetectLoops finds feedback loops among links and splits them by type. The
// strongest loop across both lists is marked dominant. No links yields two
// empty lists.
func (e *Engine) DetectLoops(ctx context.Context, links []CausalLink, names []string) (reinforcing, balancing []FeedbackLoop) {
	reinforcing, balancing = []FeedbackLoop{}, []FeedbackLoop{}
	if len(links) == 0 {
		return reinforcing, balancing
	}

	g := newGraph(links, names)
	cycles := g.findCycles(e.maxCycles, e.canonicalCycles)
	if len(cycles) >= e.maxCycles {
		e.logger.Debug(ctx, "cycle search stopped at limit", logger.Int("limit", e.maxCycles))
	}

	loops := make([]FeedbackLoop, 0, len(cycles))
	for _, c := range cycles {
		loops = append(loops, g.classify(c))
	}

	// first found wins ties
	dominant := -1
	for i := range loops {
		if dominant < 0 || loops[i].Strength > loops[dominant].Strength {
			dominant = i
		}
	}
	if dominant >= 0 {
		loops[dominant].Dominant = true
	}

	for _, l := range loops {
		if l.Type == Reinforcing {
			l.ID = fmt.Sprintf("%s%d", l.Type.Label(), len(reinforcing)+1)
			reinforcing = append(reinforcing, l)
		} else {
			l.ID = fmt.Sprintf("%s%d", l.Type.Label(), len(balancing)+1)
			balancing = append(balancing, l)
		}
	}
	return reinforcing, balancing
}

// classify turns a cycle of node indices into a FeedbackLoop. Polarity is the
// product of edge polarities and strength the geometric mean of edge strengths.
func (g *graph) classify(cycle []int) FeedbackLoop {
	k := len(cycle)
	polarity := Positive
	logSum := 0.0
	zero := false
	elements := make([]string, k)
	links := make([]CausalLink, 0, k)

	for i := 0; i < k; i++ {
		from, to := cycle[i], cycle[(i+1)%k]
		elements[i] = g.names[from]
		polarity *= g.polarity[from][to]
		if w := g.weight[from][to] / 100; w > 0 {
			logSum += math.Log(w)
		} else {
			zero = true
		}
		links = append(links, g.links[g.edge[from][to]])
	}

	strength := 0.0
	if !zero && k > 0 {
		strength = clamp(math.Exp(logSum/float64(k))*100, 0, 100)
	}

	loopType := LoopTypeOf(polarity)
	return FeedbackLoop{
		Name:               loopName(loopType, elements),
		Type:               loopType,
		Elements:           elements,
		Links:              links,
		Strength:           strength,
		TimeConstant:       timeConstant(links),
		InterventionPoints: interventionPoints(loopType, links),
	}
}

func loopName(t LoopType, elements []string) string {
	path := append(append([]string{}, elements...), elements[0])
	title := strings.ToUpper(t.String()[:1]) + t.String()[1:]
	return fmt.Sprintf("%s loop: %s", title, strings.Join(path, " → "))
}

// timeConstant buckets the mean delay of the links whose delay is known.
func timeConstant(links []CausalLink) string {
	sum, known := 0.0, 0
	for _, l := range links {
		if v, ok := l.Delay.ordinal(); ok {
			sum += v
			known++
		}
	}
	if known == 0 {
		return TimeConstantUnknown
	}
	switch avg := sum / float64(known); {
	case avg < 0.5:
		return TimeConstantImmediate
	case avg < 1.5:
		return TimeConstantShort
	case avg < 2.5:
		return TimeConstantMedium
	default:
		return TimeConstantLong
	}
}

// interventionPoints lists the strongest links of a loop as places to act.
func interventionPoints(t LoopType, links []CausalLink) []string {
	ordered := make([]CausalLink, len(links))
	copy(ordered, links)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Strength > ordered[j].Strength })
	if len(ordered) > maxInterventionPoints {
		ordered = ordered[:maxInterventionPoints]
	}

	out := make([]string, 0, len(ordered))
	for _, l := range ordered {
		if t == Reinforcing {
			out = append(out, fmt.Sprintf("Moderate how strongly %s drives %s (strength %.0f)", l.From, l.To, l.Strength))
		} else {
			out = append(out, fmt.Sprintf("Revisit the target that %s corrects %s toward (strength %.0f, %s delay)", l.From, l.To, l.Strength, l.Delay))
		}
	}
	return out
}
