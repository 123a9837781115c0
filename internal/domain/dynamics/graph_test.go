package dynamics

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGraph(t *testing.T) {
	Convey("Given links between named metrics", t, func() {
		links := []CausalLink{
			{From: "b", To: "c", Polarity: Positive, Strength: 80},
			{From: "c", To: "b", Polarity: Negative, Strength: 60},
			{From: "x", To: "x", Polarity: Positive, Strength: 99},
		}
		g := newGraph(links, []string{"a", "b", "c"})

		Convey("Then names come first and link endpoints are appended", func() {
			So(g.names, ShouldResemble, []string{"a", "b", "c", "x"})
			So(g.index["x"], ShouldEqual, 3)
		})

		Convey("Then the matrices hold link positions, strengths and polarities", func() {
			So(g.edge[1][2], ShouldEqual, 0)
			So(g.edge[2][1], ShouldEqual, 1)
			So(g.edge[0][1], ShouldEqual, -1)
			So(g.weight[1][2], ShouldEqual, 80)
			So(g.polarity[2][1], ShouldEqual, Negative)
		})

		Convey("Then self-links are not edges", func() {
			So(g.edge[3][3], ShouldEqual, -1)
			So(g.findCycles(10, true), ShouldHaveLength, 1)
		})
	})

	Convey("Given cycles that differ only by rotation", t, func() {
		Convey("When canonicalisation is on", func() {
			tr := newTraversal(3, 10, true)
			tr.record([]int{1, 2, 0})
			tr.record([]int{0, 1, 2})
			tr.record([]int{2, 0, 1})

			Convey("Then they are recorded once starting at the lowest index", func() {
				So(tr.cycles, ShouldHaveLength, 1)
				So(tr.cycles[0], ShouldResemble, []int{0, 1, 2})
			})
		})

		Convey("When canonicalisation is off", func() {
			tr := newTraversal(3, 10, false)
			tr.record([]int{1, 2, 0})
			tr.record([]int{0, 1, 2})
			tr.record([]int{0, 1, 2})

			Convey("Then only exact repeats are dropped", func() {
				So(tr.cycles, ShouldHaveLength, 2)
			})
		})
	})

	Convey("Given a recorded path", t, func() {
		path := []int{4, 5, 6}
		tr := newTraversal(7, 10, true)
		tr.record(path)
		path[0] = 9

		Convey("Then the traversal keeps its own copy", func() {
			So(tr.cycles[0], ShouldResemble, []int{4, 5, 6})
		})
	})

	Convey("Given the rotation helpers", t, func() {
		So(rotateToMin([]int{3, 1, 2}), ShouldResemble, []int{1, 2, 3})
		So(rotateToMin([]int{}), ShouldBeEmpty)
		So(cycleKey([]int{1, 20, 3}), ShouldEqual, "1,20,3")
	})

	Convey("Given a graph whose search hits the cap mid-branch", t, func() {
		var links []CausalLink
		names := []string{"a", "b", "c", "d"}
		for _, from := range names {
			for _, to := range names {
				if from != to {
					links = append(links, CausalLink{From: from, To: to, Polarity: Positive, Strength: 50})
				}
			}
		}
		g := newGraph(links, names)

		Convey("Then exactly the cap is returned", func() {
			So(g.findCycles(2, true), ShouldHaveLength, 2)
			So(g.findCycles(100, true), ShouldHaveLength, 6)
		})
	})
}
