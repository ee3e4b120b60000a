package graph

import (
	"reflect"
	"testing"
)

func testGroups(ids ...string) map[string]Node {
	groups := make(map[string]Node, len(ids))
	for _, id := range ids {
		groups[id] = Node{ID: id, Name: "Group " + id}
	}
	return groups
}

func amendmentEdge(parent, child string) Edge {
	return Edge{ParentID: parent, ChildID: child, RightType: RightTypeForTests, Status: StatusActive}
}

const RightTypeForTests = "amendmentRight"

func pathIDs(hops []Hop) []string {
	ids := make([]string, 0, len(hops))
	for _, hop := range hops {
		ids = append(ids, hop.Group.ID)
	}
	return ids
}

func TestShortestPathTwoHops(t *testing.T) {
	edges := []Edge{
		amendmentEdge("A", "B"),
		amendmentEdge("B", "G"),
	}
	hops := ShortestPath([]string{"A"}, "G", edges, testGroups("A", "B", "G"))
	if got, want := pathIDs(hops), []string{"A", "B", "G"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
}

func TestShortestPathPrefersDirectEdge(t *testing.T) {
	edges := []Edge{
		amendmentEdge("A", "B"),
		amendmentEdge("B", "G"),
		amendmentEdge("A", "G"),
	}
	hops := ShortestPath([]string{"A"}, "G", edges, testGroups("A", "B", "G"))
	if got, want := pathIDs(hops), []string{"A", "G"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
}

func TestShortestPathMultiSource(t *testing.T) {
	// C is two hops from A but one hop from B; the B chain must win.
	edges := []Edge{
		amendmentEdge("A", "X"),
		amendmentEdge("X", "C"),
		amendmentEdge("B", "C"),
	}
	hops := ShortestPath([]string{"A", "B"}, "C", edges, testGroups("A", "B", "C", "X"))
	if got, want := pathIDs(hops), []string{"B", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
}

func TestShortestPathTraversesBothDirections(t *testing.T) {
	// A is the child of B, B the child of G: rights still route upward.
	edges := []Edge{
		amendmentEdge("B", "A"),
		amendmentEdge("G", "B"),
	}
	hops := ShortestPath([]string{"A"}, "G", edges, testGroups("A", "B", "G"))
	if got, want := pathIDs(hops), []string{"A", "B", "G"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
	if hops[1].Direction != DirectionParent {
		t.Errorf("hop B direction = %q, want parent", hops[1].Direction)
	}
}

func TestShortestPathUnreachable(t *testing.T) {
	edges := []Edge{
		amendmentEdge("A", "B"),
		amendmentEdge("C", "G"),
	}
	if hops := ShortestPath([]string{"A"}, "G", edges, testGroups("A", "B", "C", "G")); hops != nil {
		t.Fatalf("expected nil path for unreachable target, got %v", pathIDs(hops))
	}
}

func TestShortestPathNoSources(t *testing.T) {
	edges := []Edge{amendmentEdge("A", "G")}
	if hops := ShortestPath(nil, "G", edges, testGroups("A", "G")); hops != nil {
		t.Fatalf("expected nil path for empty source set, got %v", pathIDs(hops))
	}
}

func TestShortestPathSourceIsTarget(t *testing.T) {
	hops := ShortestPath([]string{"G"}, "G", nil, testGroups("G"))
	if got, want := pathIDs(hops), []string{"G"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
}

func TestShortestPathDeterministicTieBreak(t *testing.T) {
	// Two equal-length routes; edge insertion order decides, every time.
	edges := []Edge{
		amendmentEdge("A", "B"),
		amendmentEdge("A", "C"),
		amendmentEdge("B", "G"),
		amendmentEdge("C", "G"),
	}
	groups := testGroups("A", "B", "C", "G")
	first := pathIDs(ShortestPath([]string{"A"}, "G", edges, groups))
	for i := 0; i < 20; i++ {
		again := pathIDs(ShortestPath([]string{"A"}, "G", edges, groups))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: path %v differs from first run %v", i, again, first)
		}
	}
	if want := []string{"A", "B", "G"}; !reflect.DeepEqual(first, want) {
		t.Fatalf("path = %v, want insertion-order winner %v", first, want)
	}
}

func TestShortestPathRecordsRights(t *testing.T) {
	edges := []Edge{
		amendmentEdge("A", "B"),
		amendmentEdge("B", "G"),
	}
	hops := ShortestPath([]string{"A"}, "G", edges, testGroups("A", "B", "G"))
	if len(hops) != 3 {
		t.Fatalf("expected 3 hops, got %d", len(hops))
	}
	if len(hops[0].Rights) != 0 {
		t.Errorf("source hop should carry no rights, got %v", hops[0].Rights)
	}
	for _, hop := range hops[1:] {
		if !reflect.DeepEqual(hop.Rights, []string{RightTypeForTests}) {
			t.Errorf("hop %s rights = %v, want [%s]", hop.Group.ID, hop.Rights, RightTypeForTests)
		}
	}
}

func TestActiveEdgesFilters(t *testing.T) {
	edges := []Edge{
		{ParentID: "A", ChildID: "B", RightType: "amendmentRight", Status: StatusActive},
		{ParentID: "A", ChildID: "C", RightType: "amendmentRight", Status: "requested"},
		{ParentID: "A", ChildID: "D", RightType: "rightToSpeak", Status: StatusActive},
	}
	filtered := ActiveEdges(edges, "amendmentRight")
	if len(filtered) != 1 || filtered[0].ChildID != "B" {
		t.Fatalf("ActiveEdges = %v, want only A->B", filtered)
	}
}
