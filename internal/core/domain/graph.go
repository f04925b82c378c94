package domain

import (
	"errors"
	"slices"

	"go.trai.ch/zerr"
)

// moduleNode is a graph vertex. Forward edges (dependencies) and inverse
// edges (dependents) are kept in lockstep: every mutation of one side
// updates the other inside the same Graph call.
type moduleNode struct {
	id           InternedString
	dependencies []InternedString
	dependents   map[InternedString]struct{}

	// placeholder marks a node created because another module referenced
	// it before it was added itself. Supports streaming graph construction.
	placeholder bool
}

// Graph is a mutable directed graph over module identifiers. It is not
// internally synchronized: builds mutate it single-threaded during the
// graph-refresh phase and only read it during scheduled compilation.
type Graph struct {
	nodes map[InternedString]*moduleNode
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[InternedString]*moduleNode),
	}
}

// Len returns the number of modules, placeholders included.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Contains reports whether the module is present as a real (non-placeholder) node.
func (g *Graph) Contains(id InternedString) bool {
	n, ok := g.nodes[id]
	return ok && !n.placeholder
}

// AddModule inserts or replaces a module and its dependency list.
// Inverse edges on all referenced nodes are updated in the same call.
// Unknown dependency ids get placeholder nodes.
func (g *Graph) AddModule(id InternedString, dependencies []InternedString) {
	if old, ok := g.nodes[id]; ok {
		for _, dep := range old.dependencies {
			if depNode, ok := g.nodes[dep]; ok {
				delete(depNode.dependents, id)
			}
		}
		old.dependencies = nil
		old.placeholder = false
	} else {
		g.nodes[id] = &moduleNode{
			id:         id,
			dependents: make(map[InternedString]struct{}),
		}
	}

	n := g.nodes[id]
	n.dependencies = slices.Clone(dependencies)

	for _, dep := range dependencies {
		depNode, ok := g.nodes[dep]
		if !ok {
			depNode = &moduleNode{
				id:          dep,
				dependents:  make(map[InternedString]struct{}),
				placeholder: true,
			}
			g.nodes[dep] = depNode
		}
		depNode.dependents[id] = struct{}{}
	}
}

// Dependencies returns the module's direct dependencies in declaration order.
func (g *Graph) Dependencies(id InternedString) []InternedString {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.dependencies)
}

// Dependents returns the modules that directly depend on id, sorted for
// deterministic traversal.
func (g *Graph) Dependents(id InternedString) []InternedString {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	deps := make([]InternedString, 0, len(n.dependents))
	for d := range n.dependents {
		deps = append(deps, d)
	}
	sortIDs(deps)
	return deps
}

// AffectedBy returns the rebuild set for the given changed modules: the
// changed set itself plus every module reachable from it over inverse
// edges. The result is sorted by id. Changed ids not present in the graph
// are still included; they simply have no dependents.
func (g *Graph) AffectedBy(changed []InternedString) []InternedString {
	visited := make(map[InternedString]struct{}, len(changed))
	queue := make([]InternedString, 0, len(changed))
	for _, id := range changed {
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		n, ok := g.nodes[current]
		if !ok {
			continue
		}
		for dep := range n.dependents {
			if _, seen := visited[dep]; !seen {
				visited[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}

	affected := make([]InternedString, 0, len(visited))
	for id := range visited {
		affected = append(affected, id)
	}
	sortIDs(affected)
	return affected
}

// DetectCycles finds dependency cycles using a depth-first search with a
// recursion stack. A self-loop counts as a cycle. At most one cycle is
// reported per back edge; the search continues past a found cycle so
// independent cycles are all surfaced.
func (g *Graph) DetectCycles() [][]InternedString {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	state := make(map[InternedString]int, len(g.nodes))
	var path []InternedString
	var cycles [][]InternedString

	var visit func(id InternedString)
	visit = func(id InternedString) {
		state[id] = visiting
		path = append(path, id)

		n := g.nodes[id]
		for _, dep := range n.dependencies {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			switch state[dep] {
			case visiting:
				cycles = append(cycles, extractCycle(path, dep))
			case unvisited:
				visit(dep)
			}
		}

		path = path[:len(path)-1]
		state[id] = done
	}

	for _, id := range g.sortedIDs() {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// extractCycle slices the DFS path from the first occurrence of start and
// closes the loop.
func extractCycle(path []InternedString, start InternedString) []InternedString {
	idx := slices.Index(path, start)
	cycle := slices.Clone(path[idx:])
	return append(cycle, start)
}

// Validate runs cycle detection and returns ErrCycleDetected carrying the
// first offending cycle's path if any cycle exists.
func (g *Graph) Validate() error {
	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		return nil
	}
	return errors.Join(
		zerr.With(zerr.New("cyclic module dependency"), "cycle", formatCycle(cycles[0])),
		ErrCycleDetected)
}

func formatCycle(cycle []InternedString) string {
	s := ""
	for i, id := range cycle {
		if i > 0 {
			s += " -> "
		}
		s += id.String()
	}
	return s
}

// TopologicalOrder returns all modules ordered so every dependency precedes
// its dependents (Kahn's algorithm). Ties are broken by id, making the
// order deterministic. Returns ErrCycleDetected if no order exists.
func (g *Graph) TopologicalOrder() ([]InternedString, error) {
	batches, err := g.ParallelBatches()
	if err != nil {
		return nil, err
	}
	order := make([]InternedString, 0, len(g.nodes))
	for _, batch := range batches {
		order = append(order, batch...)
	}
	return order, nil
}

// ParallelBatches partitions all modules into ordered waves. Modules in
// wave k depend only on modules in waves 0..k-1; modules within a wave
// have no edges between them and may compile concurrently.
func (g *Graph) ParallelBatches() ([][]InternedString, error) {
	subset := make(map[InternedString]bool, len(g.nodes))
	for id := range g.nodes {
		subset[id] = true
	}
	return g.BatchesFor(subset)
}

// BatchesFor computes parallel-safe waves restricted to the given subset of
// modules. In-degrees count only edges whose both endpoints are in the
// subset, so a module whose dependencies are outside the subset (already
// built or cached) lands in the first wave.
func (g *Graph) BatchesFor(subset map[InternedString]bool) ([][]InternedString, error) {
	inDegree := make(map[InternedString]int, len(subset))
	for id := range subset {
		n, ok := g.nodes[id]
		if !ok {
			inDegree[id] = 0
			continue
		}
		degree := 0
		for _, dep := range n.dependencies {
			if subset[dep] {
				degree++
			}
		}
		inDegree[id] = degree
	}

	var batches [][]InternedString
	remaining := len(inDegree)

	for remaining > 0 {
		var batch []InternedString
		for id, degree := range inDegree {
			if degree == 0 {
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			// Only cycles have no zero in-degree node left.
			return nil, errors.Join(ErrCycleDetected,
				zerr.With(zerr.New("cyclic module dependency"), "remaining_modules", remaining))
		}
		sortIDs(batch)

		for _, id := range batch {
			delete(inDegree, id)
			n, ok := g.nodes[id]
			if !ok {
				continue
			}
			for dep := range n.dependents {
				if _, scheduled := inDegree[dep]; scheduled {
					inDegree[dep]--
				}
			}
		}

		remaining -= len(batch)
		batches = append(batches, batch)
	}

	return batches, nil
}

func (g *Graph) sortedIDs() []InternedString {
	ids := make([]InternedString, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []InternedString) {
	slices.SortFunc(ids, func(a, b InternedString) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		default:
			return 0
		}
	})
}
