package dynamics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/loopwise/pkg/logger"
)

// Leverage levels used by the ranker, from the 12-level intervention hierarchy.
const (
	LevelParameters      = 9
	LevelInformationFlow = 6
	LevelGoals           = 3
	LevelParadigm        = 2
)

// RankLeveragePoints maps loops onto levels 9, 6, 3 and 2 of the intervention
// hierarchy and returns the candidates ordered by impact over difficulty. The
// paradigm-level candidate is always present, so the result is never empty.
func (e *Engine) RankLeveragePoints(ctx context.Context, loops []FeedbackLoop, entityName, domainLabel string) []LeveragePoint {
	subject := subjectOf(entityName, domainLabel)
	points := make([]LeveragePoint, 0, len(loops)+3)
	seq := map[int]int{}
	add := func(lp LeveragePoint) {
		seq[lp.Level]++
		lp.ID = fmt.Sprintf("LP-%d-%d", lp.Level, seq[lp.Level])
		lp.ImpactPotential = clamp(lp.ImpactPotential, 0, 100)
		lp.ImplementationDifficulty = clamp(lp.ImplementationDifficulty, 0, 100)
		lp.StrategicPriority = priorityFor(lp.ImpactPotential)
		points = append(points, lp)
	}

	for _, l := range loops {
		strong := e.strongLoop > 0 && l.Strength >= e.strongLoop
		if l.Type != Balancing || !(l.Dominant || strong) {
			continue
		}
		add(LeveragePoint{
			Name:                     "Tune the parameters of " + l.ID,
			Level:                    LevelParameters,
			Description:              fmt.Sprintf("Adjust thresholds and buffers inside %s", l.Name),
			CurrentState:             fmt.Sprintf("%s holds %s in check at strength %.0f", l.ID, joinElements(l.Elements), l.Strength),
			ProposedIntervention:     fmt.Sprintf("Recalibrate the targets and response rates of %s to loosen the constraint on %s", l.ID, subject),
			ImpactPotential:          math.Min(25+0.15*l.Strength, 40),
			ImplementationDifficulty: 20,
			TimeToImpact:             "weeks",
		})
	}

	flows := 0
	for _, l := range loops {
		if flows >= e.maxInfoFlow {
			break
		}
		flows++
		add(LeveragePoint{
			Name:                     "Surface the feedback in " + l.ID,
			Level:                    LevelInformationFlow,
			Description:              fmt.Sprintf("Make the %s dynamics of %s visible to decision makers", l.Type, joinElements(l.Elements)),
			CurrentState:             fmt.Sprintf("%s runs with a %s time constant and strength %.0f", l.ID, l.TimeConstant, l.Strength),
			ProposedIntervention:     fmt.Sprintf("Instrument and report %s so %s can react before the loop compounds", joinElements(l.Elements), subject),
			ImpactPotential:          45 + 0.25*l.Strength,
			ImplementationDifficulty: 45,
			TimeToImpact:             "1-3 months",
		})
	}
	if len(loops) > e.maxInfoFlow {
		e.logger.Debug(ctx, "information flow candidates capped",
			logger.Int("loops", len(loops)),
			logger.Int("cap", e.maxInfoFlow),
		)
	}

	if len(loops) > 0 {
		add(LeveragePoint{
			Name:                     "Redefine the goals of " + subject,
			Level:                    LevelGoals,
			Description:              "Change what the system is optimised for so the loops serve a different purpose",
			CurrentState:             fmt.Sprintf("%d feedback loops currently shape the behaviour of %s", len(loops), subject),
			ProposedIntervention:     fmt.Sprintf("Replace the targets the dominant loops pursue with goals aligned to the long-term health of %s", subject),
			ImpactPotential:          85,
			ImplementationDifficulty: 75,
			TimeToImpact:             "6-12 months",
		})
	}

	add(LeveragePoint{
		Name:                     "Shift the paradigm of " + subject,
		Level:                    LevelParadigm,
		Description:              "Question the shared assumptions from which the system's structure arises",
		CurrentState:             fmt.Sprintf("The operating model of %s is taken as given", subject),
		ProposedIntervention:     fmt.Sprintf("Reframe how %s creates value and rebuild the structure around that view", subject),
		ImpactPotential:          95,
		ImplementationDifficulty: 90,
		TimeToImpact:             "1-3 years",
	})

	sort.SliceStable(points, func(i, j int) bool { return points[i].Ratio() > points[j].Ratio() })
	return points
}

func priorityFor(impact float64) Priority {
	switch {
	case impact >= 85:
		return PriorityCritical
	case impact >= 65:
		return PriorityHigh
	case impact >= 45:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func subjectOf(entityName, domainLabel string) string {
	switch {
	case entityName != "" && domainLabel != "":
		return fmt.Sprintf("%s (%s)", entityName, domainLabel)
	case entityName != "":
		return entityName
	case domainLabel != "":
		return "the " + domainLabel + " system"
	default:
		return "the system"
	}
}

func joinElements(elements []string) string {
	if len(elements) == 0 {
		return ""
	}
	out := elements[0]
	for _, el := range elements[1:] {
		out += " → " + el
	}
	return out
}
