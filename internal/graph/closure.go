package graph

// ClosureEntry is one group reached from the focal group via a chain of
// edges that all carry the same right type. Level counts hops from the
// focal group (direct neighbors are level 1). ViaID is the backpointer to
// the group this one was reached through.
type ClosureEntry struct {
	Group     Node
	RightType string
	Level     int
	ViaID     string
	Direction string
}

// Closure computes the transitive neighborhood of a single focal group,
// one independent expansion per right type present in the edge set. A group
// three hops away via amendmentRight and one hop away via rightToSpeak
// appears twice, once per right type, each at the minimum level seen for
// that right. The focal group itself is never included.
//
// This is a different query from ShortestPath: it enumerates everything
// reachable per right type rather than finding one route, and its visited
// set is scoped per right-type chain.
func Closure(focalID string, edges []Edge, groups map[string]Node) []ClosureEntry {
	if focalID == "" {
		return nil
	}
	active := ActiveEdges(edges, "")

	rightOrder := make([]string, 0)
	seen := make(map[string]struct{})
	for _, edge := range active {
		if _, ok := seen[edge.RightType]; ok {
			continue
		}
		seen[edge.RightType] = struct{}{}
		rightOrder = append(rightOrder, edge.RightType)
	}

	entries := make([]ClosureEntry, 0)
	for _, rightType := range rightOrder {
		entries = append(entries, expandRight(focalID, ActiveEdges(active, rightType), rightType, groups)...)
	}
	return entries
}

// expandRight is an iterative frontier expansion over one right type's
// edges, tracking level and backpointers.
func expandRight(focalID string, edges []Edge, rightType string, groups map[string]Node) []ClosureEntry {
	adj := adjacency(edges)
	visited := map[string]struct{}{focalID: {}}
	frontier := []string{focalID}
	entries := make([]ClosureEntry, 0)

	for level := 1; len(frontier) > 0; level++ {
		next := make([]string, 0)
		for _, current := range frontier {
			for _, nb := range adj[current] {
				if _, ok := visited[nb.id]; ok {
					continue
				}
				visited[nb.id] = struct{}{}
				entries = append(entries, ClosureEntry{
					Group:     nodeOrID(groups, nb.id),
					RightType: rightType,
					Level:     level,
					ViaID:     current,
					Direction: nb.direction,
				})
				next = append(next, nb.id)
			}
		}
		frontier = next
	}
	return entries
}
