package domain

import (
	"slices"
	"strings"
)

// DependencyNode is one definition in the dependency graph.
type DependencyNode struct {
	Name         string
	Version      string
	Type         DefinitionType
	Dependencies []string
}

// Cycle is a loop of dependency edges.
type Cycle struct {
	Nodes       []string
	Description string
}

// Graph is a name-keyed directed dependency graph.
// Edges point from a node to its dependencies.
type Graph struct {
	nodes   map[string]*DependencyNode
	order   []string
	edges   map[string][]string
	reverse map[string][]string
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*DependencyNode),
		edges:   make(map[string][]string),
		reverse: make(map[string][]string),
	}
}

// AddNode inserts or overwrites a node and adds an edge to each of its dependencies.
// Dependencies that are not yet nodes are created as empty placeholders.
func (g *Graph) AddNode(n DependencyNode) {
	if _, exists := g.nodes[n.Name]; exists {
		g.dropEdges(n.Name)
	} else {
		g.order = append(g.order, n.Name)
	}

	node := n
	node.Dependencies = slices.Clone(n.Dependencies)
	g.nodes[n.Name] = &node

	for _, dep := range n.Dependencies {
		g.AddEdge(n.Name, dep)
	}
}

// AddEdge adds a directed edge from -> to, creating placeholder nodes as needed.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.ensure(from)
	g.ensure(to)

	if slices.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
	g.reverse[to] = append(g.reverse[to], from)
}

func (g *Graph) ensure(name string) {
	if _, exists := g.nodes[name]; exists {
		return
	}
	g.nodes[name] = &DependencyNode{Name: name}
	g.order = append(g.order, name)
}

func (g *Graph) dropEdges(name string) {
	for _, dep := range g.edges[name] {
		g.reverse[dep] = slices.DeleteFunc(g.reverse[dep], func(s string) bool { return s == name })
	}
	delete(g.edges, name)
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (DependencyNode, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return DependencyNode{}, false
	}
	return *n, true
}

// Dependencies returns the names the given node points to.
func (g *Graph) Dependencies(name string) []string {
	return slices.Clone(g.edges[name])
}

// Dependents returns the names that point to the given node.
func (g *Graph) Dependents(name string) []string {
	return slices.Clone(g.reverse[name])
}

// Nodes returns all nodes in insertion order, placeholders included.
func (g *Graph) Nodes() []DependencyNode {
	out := make([]DependencyNode, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, *g.nodes[name])
	}
	return out
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.nodes = make(map[string]*DependencyNode)
	g.edges = make(map[string][]string)
	g.reverse = make(map[string][]string)
	g.order = nil
}

const (
	unvisited = iota
	visiting
	visited
)

// DetectCycles reports one cycle per back edge found by a depth-first traversal.
// Roots are visited in insertion order so the result is deterministic.
func (g *Graph) DetectCycles() []Cycle {
	state := make(map[string]int, len(g.nodes))
	var path []string
	var cycles []Cycle

	var visit func(u string)
	visit = func(u string) {
		state[u] = visiting
		path = append(path, u)

		for _, dep := range g.edges[u] {
			switch state[dep] {
			case visiting:
				cycles = append(cycles, newCycle(path, dep))
			case unvisited:
				visit(dep)
			}
		}

		state[u] = visited
		path = path[:len(path)-1]
	}

	for _, name := range g.order {
		if state[name] == unvisited {
			visit(name)
		}
	}

	return cycles
}

// newCycle cuts the current DFS path at the first occurrence of dep.
func newCycle(path []string, dep string) Cycle {
	start := slices.Index(path, dep)
	nodes := slices.Clone(path[start:])
	return Cycle{
		Nodes:       nodes,
		Description: strings.Join(append(slices.Clone(nodes), dep), " -> "),
	}
}

// TopologicalSort orders nodes so every node follows all of its dependencies.
// It returns false when the graph contains any cycle.
func (g *Graph) TopologicalSort() ([]string, bool) {
	// Kahn's algorithm on the reversed edges: a node is ready once all of its dependencies are emitted.
	pending := make(map[string]int, len(g.nodes))
	var queue []string
	for _, name := range g.order {
		pending[name] = len(g.edges[name])
		if pending[name] == 0 {
			queue = append(queue, name)
		}
	}

	sorted := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		sorted = append(sorted, name)

		for _, dependent := range g.reverse[name] {
			pending[dependent]--
			if pending[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		return nil, false
	}
	return sorted, true
}

// CycleError is returned when a dependency graph cannot be ordered.
type CycleError struct {
	Cycles []Cycle
}

func (e *CycleError) Error() string {
	descs := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		descs = append(descs, c.Description)
	}
	return ErrCycleDetected.Error() + ": " + strings.Join(descs, "; ")
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}
