// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	g := New()
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"A", "B", "C"}; !slices.Equal(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestTopologicalSort_ReadyNodesFollowDeclarationOrder(t *testing.T) {
	t.Parallel()
	g := New()
	// Declared: node, python, go, common. node and go both depend on common.
	g.AddNode("node")
	g.AddNode("python")
	g.AddNode("go")
	g.AddNode("common")
	g.AddEdge("common", "node")
	g.AddEdge("common", "go")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// python is ready first (declared before common); after common, node
	// precedes go because it was declared earlier.
	want := []string{"python", "common", "node", "go"}
	if !slices.Equal(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *Graph {
		g := New()
		for _, n := range []string{"e", "d", "c", "b", "a"} {
			g.AddNode(n)
		}
		g.AddEdge("a", "e")
		g.AddEdge("b", "d")
		g.AddEdge("a", "c")
		return g
	}

	first, err := build().TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 20 {
		again, err := build().TopologicalSort()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(first, again) {
			t.Fatalf("order changed between runs: %v vs %v", first, again)
		}
	}
}

func TestTopologicalSort_DuplicateEdgesIgnored(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "B")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"A", "B"}; !slices.Equal(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestTopologicalSort_TwoNodeCycle(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "A")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if want := []string{"A", "B"}; !slices.Equal(cycleErr.Cycle, want) {
		t.Errorf("expected cycle %v, got %v", want, cycleErr.Cycle)
	}
	if got, want := cycleErr.Error(), "dependency cycle detected: A -> B -> A"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTopologicalSort_SelfLoop(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddNode("ok")
	g.AddEdge("X", "X")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if want := []string{"X"}; !slices.Equal(cycleErr.Cycle, want) {
		t.Errorf("expected cycle %v, got %v", want, cycleErr.Cycle)
	}
}

func TestTopologicalSort_ReportsMinimalCycle(t *testing.T) {
	t.Parallel()
	g := New()
	// Long cycle A -> B -> C -> D -> A plus a short cycle C <-> D.
	// Downstream node E hangs off the cycle and must not be reported.
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "D")
	g.AddEdge("D", "A")
	g.AddEdge("D", "C")
	g.AddEdge("D", "E")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if want := []string{"C", "D"}; !slices.Equal(cycleErr.Cycle, want) {
		t.Errorf("expected minimal cycle %v, got %v", want, cycleErr.Cycle)
	}
}

func TestTopologicalSort_CycleRotatedToEarliestNode(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddNode("first")
	g.AddEdge("second", "first")
	g.AddEdge("first", "third")
	g.AddEdge("third", "second")

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if want := []string{"first", "third", "second"}; !slices.Equal(cycleErr.Cycle, want) {
		t.Errorf("expected cycle %v, got %v", want, cycleErr.Cycle)
	}
}

func TestGraph_NodesAndHasNode(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("b", "a")
	g.AddNode("b")

	if !g.HasNode("a") || !g.HasNode("b") {
		t.Fatal("expected both nodes to be present")
	}
	if g.HasNode("c") {
		t.Error("HasNode(c) = true, want false")
	}
	if want := []string{"b", "a"}; !slices.Equal(g.Nodes(), want) {
		t.Errorf("Nodes() = %v, want %v", g.Nodes(), want)
	}
}
