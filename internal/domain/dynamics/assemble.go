package dynamics

import (
	"fmt"
	"math"
	"sort"
)

// Confidence weights and saturation points.
const (
	dataWeight      = 40.0
	linkWeight      = 30.0
	loopWeight      = 30.0
	dataSaturation  = 30.0
	linkSaturation  = 10.0
	loopSaturation  = 5.0
	runawayStrength = 60.0
)

// confidence combines data volume, link count and loop count into a 0-100 score.
func confidence(avgLen float64, links, loops int) float64 {
	data := math.Min(avgLen/dataSaturation, 1) * dataWeight
	structure := math.Min(float64(links)/linkSaturation, 1) * linkWeight
	feedback := math.Min(float64(loops)/loopSaturation, 1) * loopWeight
	return clamp(data+structure+feedback, 0, 100)
}

func averageLength(series map[string][]float64, metrics []string) float64 {
	if len(metrics) == 0 {
		return 0
	}
	total := 0
	for _, m := range metrics {
		total += len(series[m])
	}
	return float64(total) / float64(len(metrics))
}

// dominantLoop returns the loop flagged dominant, or nil.
func dominantLoop(loops []FeedbackLoop) *FeedbackLoop {
	for i := range loops {
		if loops[i].Dominant {
			return &loops[i]
		}
	}
	return nil
}

func archetype(reinforcing, balancing int, dominant *FeedbackLoop) Archetype {
	switch {
	case reinforcing > balancing && dominant != nil && dominant.Type == Reinforcing:
		return ArchetypeSuccessToSuccessful
	case reinforcing > balancing:
		return ArchetypeEscalation
	case balancing > 0 && dominant != nil && dominant.Type == Balancing:
		return ArchetypeLimitsToGrowth
	default:
		return ArchetypeUnknown
	}
}

func currentBehavior(reinforcing, balancing int, dominant *FeedbackLoop) string {
	if reinforcing+balancing == 0 {
		return "Insufficient feedback structure detected; metrics move without closing into loops"
	}
	ratio := float64(reinforcing) / float64(reinforcing+balancing)
	var b string
	switch {
	case ratio >= 0.75:
		b = "Growth-driven: reinforcing loops dominate and amplify change"
	case ratio > 0.5:
		b = "Expanding with friction: reinforcing loops outweigh the balancing ones"
	case ratio == 0.5:
		b = "Oscillating: reinforcing and balancing loops are evenly matched"
	case ratio > 0:
		b = "Constrained: balancing loops outweigh the reinforcing ones"
	default:
		b = "Goal-seeking: balancing loops hold the system near its current state"
	}
	if dominant != nil {
		b += fmt.Sprintf(" (dominant loop %s, strength %.0f)", dominant.ID, dominant.Strength)
	}
	return b
}

// keyVariables orders linked metrics by summed link strength, keeping input
// order on ties. Without links it falls back to the analysed metrics.
func keyVariables(links []CausalLink, metrics []string) []string {
	if len(links) == 0 {
		return append([]string{}, metrics...)
	}
	weight := make(map[string]float64, len(metrics))
	for _, l := range links {
		weight[l.From] += l.Strength
		weight[l.To] += l.Strength
	}
	out := make([]string, 0, len(weight))
	for _, m := range metrics {
		if _, ok := weight[m]; ok {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return weight[out[i]] > weight[out[j]] })
	return out
}

func structuralIssues(links []CausalLink, loops []FeedbackLoop, metrics []string) []string {
	issues := []string{}

	linked := make(map[string]bool, len(metrics))
	for _, l := range links {
		linked[l.From] = true
		linked[l.To] = true
	}
	for _, m := range metrics {
		if !linked[m] {
			issues = append(issues, fmt.Sprintf("%s shows no significant relationship with other metrics", m))
		}
	}

	for _, l := range loops {
		switch {
		case l.Type == Balancing && l.TimeConstant == TimeConstantLong:
			issues = append(issues, fmt.Sprintf("%s corrects slowly; long delays invite overshoot and oscillation", l.ID))
		case l.Type == Reinforcing && l.Strength >= runawayStrength:
			issues = append(issues, fmt.Sprintf("%s is a strong reinforcing loop that can run away in either direction", l.ID))
		}
	}

	if len(links) > 0 && len(loops) == 0 {
		issues = append(issues, "Influences run one way only; no feedback closes the loop")
	}
	return issues
}

func unintendedConsequences(reinforcing, balancing []FeedbackLoop) []string {
	out := []string{}
	for _, l := range reinforcing {
		out = append(out, fmt.Sprintf("Pushing any element of %s also accelerates its decline when the trend reverses", l.ID))
	}
	for _, l := range balancing {
		if l.TimeConstant == TimeConstantMedium || l.TimeConstant == TimeConstantLong {
			out = append(out, fmt.Sprintf("Interventions on %s may overshoot because its correction arrives with a %s lag", l.ID, l.TimeConstant))
		} else {
			out = append(out, fmt.Sprintf("Efforts to move %s will be resisted by %s", joinElements(l.Elements), l.ID))
		}
	}
	return out
}

func narrativeHooks(a *Analysis) []string {
	hooks := []string{}
	if len(a.CausalLinks) > 0 {
		strongest := a.CausalLinks[0]
		for _, l := range a.CausalLinks[1:] {
			if l.Strength > strongest.Strength {
				strongest = l
			}
		}
		hooks = append(hooks, fmt.Sprintf("Strongest link: %s", strongest.Description))
	}
	if d := dominantLoop(a.Loops()); d != nil {
		hooks = append(hooks, fmt.Sprintf("Dominant loop %s: %s", d.ID, d.Name))
	}
	if a.SystemArchetype != ArchetypeUnknown {
		hooks = append(hooks, fmt.Sprintf("The system resembles the %q archetype", string(a.SystemArchetype)))
	}
	if len(a.LeveragePoints) > 0 {
		top := a.LeveragePoints[0]
		hooks = append(hooks, fmt.Sprintf("Best leverage: %s (level %d, %s priority)", top.Name, top.Level, top.StrategicPriority))
	}
	return hooks
}
