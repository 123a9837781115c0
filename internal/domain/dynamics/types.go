package dynamics

import (
	"fmt"
	"math"
)

// Polarity is the sign of a causal influence.
type Polarity int

// Polarity values. The zero value is not a valid polarity.
const (
	Negative Polarity = -1
	Positive Polarity = 1
)

// PolarityOf returns Positive for r > 0 and Negative otherwise.
func PolarityOf(r float64) Polarity {
	if r > 0 {
		return Positive
	}
	return Negative
}

func (p Polarity) String() string {
	if p == Positive {
		return "+"
	}
	return "-"
}

// MarshalText encodes the polarity as "+" or "-".
func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes "+" or "-".
func (p *Polarity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "+":
		*p = Positive
	case "-":
		*p = Negative
	default:
		return fmt.Errorf("invalid polarity %q", b)
	}
	return nil
}

// Delay is a qualitative bucket for the lag between cause and effect.
type Delay string

// Delay buckets.
const (
	DelayNone    Delay = "none"
	DelayShort   Delay = "short"
	DelayMedium  Delay = "medium"
	DelayLong    Delay = "long"
	DelayUnknown Delay = "unknown"
)

// DelayForLag buckets a lag measured in observations.
func DelayForLag(lag int) Delay {
	switch {
	case lag < 0:
		return DelayUnknown
	case lag == 0:
		return DelayNone
	case lag == 1:
		return DelayShort
	case lag <= 3:
		return DelayMedium
	default:
		return DelayLong
	}
}

// ordinal maps known delays onto 0..3; ok is false for DelayUnknown.
func (d Delay) ordinal() (v float64, ok bool) {
	switch d {
	case DelayNone:
		return 0, true
	case DelayShort:
		return 1, true
	case DelayMedium:
		return 2, true
	case DelayLong:
		return 3, true
	default:
		return 0, false
	}
}

// LoopType tags a feedback loop as reinforcing or balancing.
type LoopType int

// Loop types.
const (
	Reinforcing LoopType = iota
	Balancing
)

func (t LoopType) String() string {
	switch t {
	case Reinforcing:
		return "reinforcing"
	case Balancing:
		return "balancing"
	default:
		return "unknown"
	}
}

// Label is the single-letter prefix used in loop ids (R1, B2).
func (t LoopType) Label() string {
	if t == Balancing {
		return "B"
	}
	return "R"
}

// MarshalText encodes the loop type by name.
func (t LoopType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a loop type name.
func (t *LoopType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "reinforcing":
		*t = Reinforcing
	case "balancing":
		*t = Balancing
	default:
		return fmt.Errorf("invalid loop type %q", b)
	}
	return nil
}

// LoopTypeOf classifies a loop by the product of its edge polarities.
func LoopTypeOf(p Polarity) LoopType {
	if p == Positive {
		return Reinforcing
	}
	return Balancing
}

// Priority is the strategic priority of a leverage point.
type Priority string

// Priorities.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Archetype is a coarse label for the interaction of the detected loops.
type Archetype string

// Archetypes.
const (
	ArchetypeSuccessToSuccessful Archetype = "success to the successful"
	ArchetypeEscalation          Archetype = "escalation"
	ArchetypeLimitsToGrowth      Archetype = "limits to growth"
	ArchetypeUnknown             Archetype = "unknown"
)

// CausalLink is a statistically inferred directed, signed influence between two metrics.
type CausalLink struct {
	From        string   `json:"from" yaml:"from"`
	To          string   `json:"to" yaml:"to"`
	Polarity    Polarity `json:"polarity" yaml:"polarity"`
	Strength    float64  `json:"strength" yaml:"strength"` // |r| * 100
	Delay       Delay    `json:"delay" yaml:"delay"`
	Correlation float64  `json:"correlation" yaml:"correlation"`
	PValue      float64  `json:"p_value" yaml:"p_value"`
	Lag         int      `json:"lag" yaml:"lag"` // -1 when the lag could not be estimated
	Description string   `json:"description" yaml:"description"`
}

// FeedbackLoop is a cycle of causal links.
type FeedbackLoop struct {
	ID                 string       `json:"loop_id" yaml:"loop_id"`
	Name               string       `json:"name" yaml:"name"`
	Type               LoopType     `json:"type" yaml:"type"`
	Elements           []string     `json:"elements" yaml:"elements"`
	Links              []CausalLink `json:"links" yaml:"links"`
	Strength           float64      `json:"strength" yaml:"strength"`
	Dominant           bool         `json:"dominant" yaml:"dominant"`
	TimeConstant       string       `json:"time_constant" yaml:"time_constant"`
	InterventionPoints []string     `json:"intervention_points" yaml:"intervention_points"`
}

// LeveragePoint is a scored intervention candidate on the 12-level hierarchy
// (1 = highest leverage, 12 = lowest).
type LeveragePoint struct {
	ID                       string   `json:"id" yaml:"id"`
	Name                     string   `json:"name" yaml:"name"`
	Level                    int      `json:"level" yaml:"level"`
	Description              string   `json:"description" yaml:"description"`
	CurrentState             string   `json:"current_state" yaml:"current_state"`
	ProposedIntervention     string   `json:"proposed_intervention" yaml:"proposed_intervention"`
	ImpactPotential          float64  `json:"impact_potential" yaml:"impact_potential"`
	ImplementationDifficulty float64  `json:"implementation_difficulty" yaml:"implementation_difficulty"`
	TimeToImpact             string   `json:"time_to_impact" yaml:"time_to_impact"`
	StrategicPriority        Priority `json:"strategic_priority" yaml:"strategic_priority"`
}

// Ratio is impact divided by difficulty, with difficulty floored at 1.
func (lp LeveragePoint) Ratio() float64 {
	return lp.ImpactPotential / math.Max(lp.ImplementationDifficulty, 1)
}

// Analysis is the aggregate result of one AnalyzeSystem call.
type Analysis struct {
	EntityName             string          `json:"entity_name" yaml:"entity_name"`
	DomainLabel            string          `json:"domain_label" yaml:"domain_label"`
	KeyVariables           []string        `json:"key_variables" yaml:"key_variables"`
	CausalLinks            []CausalLink    `json:"causal_links" yaml:"causal_links"`
	ReinforcingLoops       []FeedbackLoop  `json:"reinforcing_loops" yaml:"reinforcing_loops"`
	BalancingLoops         []FeedbackLoop  `json:"balancing_loops" yaml:"balancing_loops"`
	DominantLoopID         string          `json:"dominant_loop,omitempty" yaml:"dominant_loop,omitempty"`
	LeveragePoints         []LeveragePoint `json:"leverage_points" yaml:"leverage_points"`
	SystemArchetype        Archetype       `json:"system_archetype" yaml:"system_archetype"`
	CurrentBehavior        string          `json:"current_behavior" yaml:"current_behavior"`
	StructuralIssues       []string        `json:"structural_issues" yaml:"structural_issues"`
	UnintendedConsequences []string        `json:"unintended_consequences" yaml:"unintended_consequences"`
	NarrativeHooks         []string        `json:"narrative_hooks" yaml:"narrative_hooks"`
	MetricsAnalyzed        int             `json:"metrics_analyzed" yaml:"metrics_analyzed"`
	AverageSeriesLength    float64         `json:"average_series_length" yaml:"average_series_length"`
	ConfidenceScore        float64         `json:"confidence_score" yaml:"confidence_score"`
}

// Loops returns reinforcing then balancing loops as one slice.
func (a *Analysis) Loops() []FeedbackLoop {
	out := make([]FeedbackLoop, 0, len(a.ReinforcingLoops)+len(a.BalancingLoops))
	out = append(out, a.ReinforcingLoops...)
	return append(out, a.BalancingLoops...)
}

// clamp bounds v into [lo, hi]; NaN becomes lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
