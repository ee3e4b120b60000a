package graph

import "testing"

func edge(parent, child, rightType string) Edge {
	return Edge{ParentID: parent, ChildID: child, RightType: rightType, Status: StatusActive}
}

func findEntry(entries []ClosureEntry, groupID, rightType string) (ClosureEntry, bool) {
	for _, entry := range entries {
		if entry.Group.ID == groupID && entry.RightType == rightType {
			return entry, true
		}
	}
	return ClosureEntry{}, false
}

func TestClosurePerRightTypeLevels(t *testing.T) {
	// D is 3 hops away via amendmentRight and 1 hop via rightToSpeak; it must
	// be recorded at both levels independently.
	edges := []Edge{
		edge("F", "B", "amendmentRight"),
		edge("B", "C", "amendmentRight"),
		edge("C", "D", "amendmentRight"),
		edge("F", "D", "rightToSpeak"),
	}
	entries := Closure("F", edges, testGroups("F", "B", "C", "D"))

	amendment, ok := findEntry(entries, "D", "amendmentRight")
	if !ok {
		t.Fatal("missing D via amendmentRight")
	}
	if amendment.Level != 3 {
		t.Errorf("D amendmentRight level = %d, want 3", amendment.Level)
	}
	speak, ok := findEntry(entries, "D", "rightToSpeak")
	if !ok {
		t.Fatal("missing D via rightToSpeak")
	}
	if speak.Level != 1 {
		t.Errorf("D rightToSpeak level = %d, want 1", speak.Level)
	}
}

func TestClosureMinimumLevelPerRight(t *testing.T) {
	// Two amendmentRight routes to C, lengths 1 and 2: only level 1 recorded.
	edges := []Edge{
		edge("F", "B", "amendmentRight"),
		edge("B", "C", "amendmentRight"),
		edge("F", "C", "amendmentRight"),
	}
	entries := Closure("F", edges, testGroups("F", "B", "C"))

	count := 0
	for _, entry := range entries {
		if entry.Group.ID == "C" {
			count++
			if entry.Level != 1 {
				t.Errorf("C level = %d, want 1", entry.Level)
			}
		}
	}
	if count != 1 {
		t.Errorf("C recorded %d times for amendmentRight, want 1", count)
	}
}

func TestClosureExcludesFocalAndInactive(t *testing.T) {
	edges := []Edge{
		edge("F", "B", "amendmentRight"),
		{ParentID: "F", ChildID: "X", RightType: "amendmentRight", Status: "requested"},
	}
	entries := Closure("F", edges, testGroups("F", "B", "X"))
	for _, entry := range entries {
		if entry.Group.ID == "F" {
			t.Error("closure must not include the focal group")
		}
		if entry.Group.ID == "X" {
			t.Error("closure must not traverse non-active edges")
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(entries))
	}
}

func TestClosureBackpointers(t *testing.T) {
	edges := []Edge{
		edge("F", "B", "amendmentRight"),
		edge("B", "C", "amendmentRight"),
	}
	entries := Closure("F", edges, testGroups("F", "B", "C"))
	c, ok := findEntry(entries, "C", "amendmentRight")
	if !ok {
		t.Fatal("missing C")
	}
	if c.ViaID != "B" {
		t.Errorf("C via = %q, want B", c.ViaID)
	}
}

func TestDirectNeighborsAggregatesRights(t *testing.T) {
	edges := []Edge{
		edge("F", "B", "amendmentRight"),
		edge("F", "B", "rightToSpeak"),
		edge("C", "F", "informationRight"),
	}
	neighbors := DirectNeighbors("F", edges, testGroups("F", "B", "C"))
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
	if got := neighbors[0].Rights; len(got) != 2 || got[0] != "amendmentRight" || got[1] != "rightToSpeak" {
		t.Errorf("B rights = %v, want aggregated pair", got)
	}
	if neighbors[1].Group.ID != "C" || neighbors[1].Direction != DirectionParent {
		t.Errorf("second neighbor = %+v, want parent C", neighbors[1])
	}
}
