package dynamics

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestArchetype(t *testing.T) {
	Convey("Given loop counts and a dominant loop", t, func() {
		r := &FeedbackLoop{ID: "R1", Type: Reinforcing}
		b := &FeedbackLoop{ID: "B1", Type: Balancing}

		So(archetype(2, 1, r), ShouldEqual, ArchetypeSuccessToSuccessful)
		So(archetype(2, 1, b), ShouldEqual, ArchetypeEscalation)
		So(archetype(1, 0, nil), ShouldEqual, ArchetypeEscalation)
		So(archetype(1, 1, b), ShouldEqual, ArchetypeLimitsToGrowth)
		So(archetype(0, 2, b), ShouldEqual, ArchetypeLimitsToGrowth)
		So(archetype(1, 1, r), ShouldEqual, ArchetypeUnknown)
		So(archetype(0, 0, nil), ShouldEqual, ArchetypeUnknown)
	})
}

func TestConfidence(t *testing.T) {
	Convey("Given the confidence sub-scores", t, func() {
		Convey("When nothing was found", func() {
			So(confidence(0, 0, 0), ShouldEqual, 0)
			So(confidence(1000, 0, 0), ShouldEqual, 40)
		})

		Convey("When every sub-score saturates", func() {
			So(confidence(30, 10, 5), ShouldEqual, 100)
			So(confidence(300, 100, 50), ShouldEqual, 100)
		})

		Convey("When more data or structure is added", func() {
			prev := confidence(0, 0, 0)
			for i := 1; i <= 40; i++ {
				next := confidence(float64(i), i/4, i/8)
				So(next, ShouldBeGreaterThanOrEqualTo, prev)
				prev = next
			}
		})
	})
}

func TestCurrentBehavior(t *testing.T) {
	Convey("Given loop mixes", t, func() {
		So(currentBehavior(0, 0, nil), ShouldStartWith, "Insufficient")
		So(currentBehavior(3, 1, nil), ShouldStartWith, "Growth-driven")
		So(currentBehavior(2, 1, nil), ShouldStartWith, "Expanding")
		So(currentBehavior(1, 1, nil), ShouldStartWith, "Oscillating")
		So(currentBehavior(1, 2, nil), ShouldStartWith, "Constrained")
		So(currentBehavior(0, 2, &FeedbackLoop{ID: "B1", Strength: 72}), ShouldEqual,
			"Goal-seeking: balancing loops hold the system near its current state (dominant loop B1, strength 72)")
	})
}

func TestKeyVariables(t *testing.T) {
	Convey("Given links of different strength", t, func() {
		links := []CausalLink{
			{From: "a", To: "b", Strength: 60},
			{From: "c", To: "b", Strength: 90},
		}

		Convey("Then linked metrics are ordered by total strength", func() {
			So(keyVariables(links, []string{"a", "b", "c", "d"}), ShouldResemble, []string{"b", "c", "a"})
		})

		Convey("Then analysed metrics are used when nothing links", func() {
			So(keyVariables(nil, []string{"a", "d"}), ShouldResemble, []string{"a", "d"})
		})
	})
}

func TestStructuralIssues(t *testing.T) {
	Convey("Given links without loops and an isolated metric", t, func() {
		issues := structuralIssues(
			[]CausalLink{{From: "a", To: "b", Strength: 80}},
			nil,
			[]string{"a", "b", "z"},
		)
		So(issues, ShouldHaveLength, 2)
		So(issues[0], ShouldContainSubstring, "z")
	})

	Convey("Given a slow balancing loop and a strong reinforcing loop", t, func() {
		issues := structuralIssues(nil, []FeedbackLoop{
			{ID: "B1", Type: Balancing, TimeConstant: TimeConstantLong},
			{ID: "R1", Type: Reinforcing, Strength: 90},
		}, nil)
		So(issues, ShouldHaveLength, 2)
		So(issues[0], ShouldContainSubstring, "B1")
		So(issues[1], ShouldContainSubstring, "R1")
	})
}
