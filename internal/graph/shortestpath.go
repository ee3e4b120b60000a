package graph

// Hop is one step of a computed route, from a source group to the target
// inclusive. Rights holds the right types of the edge used to reach this
// hop; the first hop has none.
type Hop struct {
	Group     Node
	Rights    []string
	Direction string
}

type visit struct {
	parent    string
	rightType string
	direction string
	isSource  bool
}

// ShortestPath runs a multi-source BFS from every source group at once over
// the undirected view of the supplied edges and returns the minimum-hop
// route to the target, or nil when the target is unreachable, when there are
// no sources, or when the target is unknown to the edge set and not itself a
// source.
//
// Determinism: sources are enqueued in the given order and neighbors are
// explored in edge insertion order, so the first-discovered shortest path
// wins. Callers that need a different tie-break must pre-sort their edges.
//
// The caller supplies edges already filtered to one right type and active
// status (see ActiveEdges); a path never mixes right types.
func ShortestPath(sourceIDs []string, targetID string, edges []Edge, groups map[string]Node) []Hop {
	if len(sourceIDs) == 0 || targetID == "" {
		return nil
	}

	visited := make(map[string]visit, len(edges)*2)
	queue := make([]string, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = visit{isSource: true}
		queue = append(queue, id)
		if id == targetID {
			// Target is one of the sources: trivial single-hop path.
			return []Hop{{Group: nodeOrID(groups, targetID)}}
		}
	}

	adj := adjacency(edges)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adj[current] {
			if _, seen := visited[next.id]; seen {
				continue
			}
			visited[next.id] = visit{parent: current, rightType: next.rightType, direction: next.direction}
			if next.id == targetID {
				return buildHops(targetID, visited, groups)
			}
			queue = append(queue, next.id)
		}
	}
	return nil
}

// buildHops walks the backpointers from the target to the source it was
// discovered from and reverses the chain.
func buildHops(targetID string, visited map[string]visit, groups map[string]Node) []Hop {
	reversed := make([]Hop, 0)
	current := targetID
	for {
		v, ok := visited[current]
		if !ok {
			return nil
		}
		hop := Hop{Group: nodeOrID(groups, current), Direction: v.direction}
		if v.rightType != "" {
			hop.Rights = []string{v.rightType}
		}
		reversed = append(reversed, hop)
		if v.isSource {
			break
		}
		current = v.parent
	}
	hops := make([]Hop, len(reversed))
	for i, hop := range reversed {
		hops[len(reversed)-1-i] = hop
	}
	return hops
}
