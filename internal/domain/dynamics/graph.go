package dynamics

import (
	"strconv"
	"strings"
)

// graph is an index-addressed directed graph over metric names. Edges live in
// dense matrices keyed by node index; edge[i][j] is the position of the link
// in links, or -1 when there is no edge.
type graph struct {
	names    []string
	index    map[string]int
	links    []CausalLink
	edge     [][]int
	weight   [][]float64
	polarity [][]Polarity
}

func newGraph(links []CausalLink, names []string) *graph {
	g := &graph{index: make(map[string]int, len(names)), links: links}
	for _, name := range names {
		g.addNode(name)
	}
	for _, l := range links {
		g.addNode(l.From)
		g.addNode(l.To)
	}

	n := len(g.names)
	g.edge = make([][]int, n)
	g.weight = make([][]float64, n)
	g.polarity = make([][]Polarity, n)
	for i := 0; i < n; i++ {
		g.edge[i] = make([]int, n)
		for j := range g.edge[i] {
			g.edge[i][j] = -1
		}
		g.weight[i] = make([]float64, n)
		g.polarity[i] = make([]Polarity, n)
	}

	for k, l := range links {
		from, to := g.index[l.From], g.index[l.To]
		if from == to {
			continue
		}
		g.edge[from][to] = k
		g.weight[from][to] = l.Strength
		g.polarity[from][to] = l.Polarity
	}
	return g
}

func (g *graph) addNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.names)
	g.names = append(g.names, name)
}

// nextNeighbor returns the first successor of node with index >= from, or -1.
func (g *graph) nextNeighbor(node, from int) int {
	row := g.edge[node]
	for j := from; j < len(row); j++ {
		if row[j] >= 0 {
			return j
		}
	}
	return -1
}

// frame is one level of the explicit DFS stack.
type frame struct {
	node int
	next int // next successor index to try
}

// traversal is the working state of one cycle search. It is owned by a
// single findCycles call and never shared.
type traversal struct {
	visited   []bool
	onStack   []bool
	pos       []int // position of a node in path, -1 when off the stack
	path      []int
	cycles    [][]int
	seen      map[string]struct{}
	limit     int
	canonical bool
}

func newTraversal(n, limit int, canonical bool) *traversal {
	t := &traversal{
		visited:   make([]bool, n),
		onStack:   make([]bool, n),
		pos:       make([]int, n),
		path:      make([]int, 0, n),
		seen:      make(map[string]struct{}),
		limit:     limit,
		canonical: canonical,
	}
	for i := range t.pos {
		t.pos[i] = -1
	}
	return t
}

func (t *traversal) full() bool { return len(t.cycles) >= t.limit }

func (t *traversal) enter(node int) {
	t.visited[node] = true
	t.onStack[node] = true
	t.pos[node] = len(t.path)
	t.path = append(t.path, node)
}

func (t *traversal) leave(node int) {
	t.onStack[node] = false
	t.pos[node] = -1
	t.path = t.path[:len(t.path)-1]
}

// record stores a copy of cycle unless an equal cycle was already recorded.
func (t *traversal) record(cycle []int) {
	c := make([]int, len(cycle))
	copy(c, cycle)
	if t.canonical {
		c = rotateToMin(c)
	}
	key := cycleKey(c)
	if _, dup := t.seen[key]; dup {
		return
	}
	t.seen[key] = struct{}{}
	t.cycles = append(t.cycles, c)
}

// findCycles runs a depth-first search from every unvisited node and records
// each back-edge to a node on the current path as a cycle, stopping after limit cycles.
func (g *graph) findCycles(limit int, canonical bool) [][]int {
	t := newTraversal(len(g.names), limit, canonical)
	for root := range g.names {
		if t.full() {
			break
		}
		if !t.visited[root] {
			g.searchFrom(root, t)
		}
	}
	return t.cycles
}

func (g *graph) searchFrom(root int, t *traversal) {
	stack := []frame{{node: root}}
	t.enter(root)

	for len(stack) > 0 {
		if t.full() {
			// unwind so the traversal state stays consistent
			for i := len(stack) - 1; i >= 0; i-- {
				t.leave(stack[i].node)
			}
			return
		}
		top := &stack[len(stack)-1]
		next := g.nextNeighbor(top.node, top.next)
		if next < 0 {
			t.leave(top.node)
			stack = stack[:len(stack)-1]
			continue
		}
		top.next = next + 1

		switch {
		case t.onStack[next]:
			t.record(t.path[t.pos[next]:])
		case !t.visited[next]:
			t.enter(next)
			stack = append(stack, frame{node: next})
		}
	}
}

// rotateToMin rotates a cycle so that its smallest node index comes first.
func rotateToMin(c []int) []int {
	if len(c) == 0 {
		return c
	}
	m := 0
	for i, v := range c {
		if v < c[m] {
			m = i
		}
	}
	out := make([]int, 0, len(c))
	out = append(out, c[m:]...)
	return append(out, c[:m]...)
}

func cycleKey(c []int) string {
	var b strings.Builder
	for i, v := range c {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}
