package digraph

import "testing"

func TestAddEdgeRegistersNodesAndEdge(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "b", "r1")

	if !g.HasNode("a") || !g.HasNode("b") {
		t.Fatalf("expected both endpoints to be registered as nodes")
	}
	if g.NodeCount() != 2 || g.EdgeCount() != 1 {
		t.Errorf("got nodes=%d edges=%d, want 2 and 1", g.NodeCount(), g.EdgeCount())
	}
}

func TestSelfLoopAllowed(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "a", "loop")

	edges := g.EdgesFrom("a")
	if len(edges) != 1 || edges[0].From != "a" || edges[0].To != "a" {
		t.Fatalf("expected one self-loop edge, got %+v", edges)
	}
}

func TestMultigraphAllowsParallelEdges(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "b", "r1")
	g.AddEdge("a", "b", "r2")

	edges := g.EdgesFrom("a")
	if len(edges) != 2 {
		t.Fatalf("expected 2 parallel edges, got %d", len(edges))
	}
}

func TestCycleAllowed(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "b", "r1")
	g.AddEdge("b", "a", "r2")

	if len(g.EdgesFrom("a")) != 1 || len(g.EdgesFrom("b")) != 1 {
		t.Fatalf("expected a cycle of two single-hop edges")
	}
}

func TestNodesAndEdgesSnapshot(t *testing.T) {
	g := New[string, string]()
	g.AddNode("isolated")
	g.AddEdge("a", "b", "r1")

	if g.NodeCount() != 3 {
		t.Errorf("got %d nodes, want 3 (a, b, isolated)", g.NodeCount())
	}
	if len(g.Edges()) != 1 {
		t.Errorf("got %d edges, want 1", len(g.Edges()))
	}
}

func TestEdgesFromUnknownNodeIsEmpty(t *testing.T) {
	g := New[string, string]()
	if edges := g.EdgesFrom("nope"); len(edges) != 0 {
		t.Errorf("expected no edges from an unknown node, got %v", edges)
	}
}
