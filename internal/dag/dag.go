// SPDX-License-Identifier: MPL-2.0

// Package dag provides a small directed graph with deterministic topological
// sorting and minimal-cycle reporting. The feature resolver uses it to order
// feature installation so that every feature comes after its dependencies.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle is the shortest cycle found, starting at its earliest-declared
		// node. The closing edge back to Cycle[0] is implied.
		Cycle []string
	}

	// Graph is a directed graph keyed by node name.
	// An edge from A to B means A must come before B.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors in edge insertion order.
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order.
		nodes []string
		// index is the declaration position of each node, used as the stable tie-break key.
		index map[string]int
	}
)

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "dependency cycle detected"
	}
	path := append(slices.Clone(e.Cycle), e.Cycle[0])
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(path, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		index:     make(map[string]int),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op,
// so the first AddNode call fixes a node's declaration position.
func (g *Graph) AddNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// HasNode reports whether name was added to the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// AddEdge adds a directed edge from -> to, meaning "from" must come before "to".
// Both nodes are implicitly added if they don't exist. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// TopologicalSort returns a valid order using Kahn's algorithm.
// Whenever several nodes are ready at once, the one declared first wins, so
// identical graphs always produce identical orders.
// Returns *CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	// ready is kept sorted by declaration index.
	var ready []int
	for i, node := range g.nodes {
		if inDegree[node] == 0 {
			ready = append(ready, i)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		node := g.nodes[ready[0]]
		ready = ready[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				idx := g.index[neighbor]
				pos, _ := slices.BinarySearch(ready, idx)
				ready = slices.Insert(ready, pos, idx)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var remaining []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				remaining = append(remaining, node)
			}
		}
		return nil, &CycleError{Cycle: g.shortestCycle(remaining)}
	}

	return result, nil
}

// shortestCycle finds the shortest cycle through any of the candidate nodes.
// Ties go to the cycle whose start node was declared first. The result is
// rotated so the earliest-declared member leads.
func (g *Graph) shortestCycle(candidates []string) []string {
	var best []string
	for _, start := range candidates {
		cycle := g.cycleThrough(start)
		if cycle == nil {
			continue
		}
		if best == nil || len(cycle) < len(best) {
			best = cycle
		}
	}
	if best == nil {
		// Unreachable for a graph that failed Kahn's algorithm, but report
		// every blocked node rather than nothing.
		return candidates
	}
	return g.rotateToEarliest(best)
}

// cycleThrough returns the shortest path start -> ... -> start, without the
// repeated final node, or nil when start is not on a cycle. BFS explores
// neighbors in edge insertion order, keeping the result deterministic.
func (g *Graph) cycleThrough(start string) []string {
	parent := map[string]string{}
	visited := map[string]bool{}
	queue := []string{start}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, next := range g.adjacency[node] {
			if next == start {
				path := []string{node}
				for path[0] != start {
					path = append([]string{parent[path[0]]}, path...)
				}
				return path
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = node
			queue = append(queue, next)
		}
	}
	return nil
}

func (g *Graph) rotateToEarliest(cycle []string) []string {
	minPos := 0
	for i, node := range cycle {
		if g.index[node] < g.index[cycle[minPos]] {
			minPos = i
		}
	}
	return append(slices.Clone(cycle[minPos:]), cycle[:minPos]...)
}
