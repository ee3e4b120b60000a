// Package graph computes routes over the rights-typed group network.
//
// Two different questions are answered by two different algorithms:
// ShortestPath finds any minimum-hop route from a set of source groups to a
// target (used for amendment cloning), while Closure expands the full
// per-right-type neighborhood of a single focal group (used for the network
// view). They share the edge primitives below but are deliberately not one
// parameterized function.
package graph

// Node is a group as the traversal sees it.
type Node struct {
	ID   string
	Name string
}

// Edge is a directed, typed relationship between two groups. Traversals
// explore edges in both directions: rights routing propagates through the
// network regardless of which side initiated the relationship.
type Edge struct {
	ParentID  string
	ChildID   string
	RightType string
	Status    string
}

const StatusActive = "active"

// Direction of an edge relative to the group it was reached from.
const (
	DirectionParent = "parent"
	DirectionChild  = "child"
)

// ActiveEdges returns the edges of the given right type with active status,
// preserving input order. Input order matters: it is the tie-break for
// equal-length paths.
func ActiveEdges(edges []Edge, rightType string) []Edge {
	filtered := make([]Edge, 0, len(edges))
	for _, edge := range edges {
		if edge.Status != StatusActive {
			continue
		}
		if rightType != "" && edge.RightType != rightType {
			continue
		}
		filtered = append(filtered, edge)
	}
	return filtered
}

// neighbor is one undirected adjacency entry.
type neighbor struct {
	id        string
	rightType string
	direction string
}

// adjacency builds the undirected adjacency view, keeping edge insertion
// order within each node's neighbor list.
func adjacency(edges []Edge) map[string][]neighbor {
	adj := make(map[string][]neighbor, len(edges)*2)
	for _, edge := range edges {
		adj[edge.ParentID] = append(adj[edge.ParentID], neighbor{id: edge.ChildID, rightType: edge.RightType, direction: DirectionChild})
		adj[edge.ChildID] = append(adj[edge.ChildID], neighbor{id: edge.ParentID, rightType: edge.RightType, direction: DirectionParent})
	}
	return adj
}

// DirectNeighbors returns the focal group's immediate neighbors with their
// right types aggregated per neighboring group. Only active edges count.
type DirectNeighbor struct {
	Group     Node
	Rights    []string
	Direction string
}

func DirectNeighbors(focalID string, edges []Edge, groups map[string]Node) []DirectNeighbor {
	order := make([]string, 0)
	byID := make(map[string]*DirectNeighbor)
	for _, edge := range edges {
		if edge.Status != StatusActive {
			continue
		}
		var otherID, direction string
		switch focalID {
		case edge.ParentID:
			otherID, direction = edge.ChildID, DirectionChild
		case edge.ChildID:
			otherID, direction = edge.ParentID, DirectionParent
		default:
			continue
		}
		entry, ok := byID[otherID]
		if !ok {
			entry = &DirectNeighbor{Group: nodeOrID(groups, otherID), Direction: direction}
			byID[otherID] = entry
			order = append(order, otherID)
		}
		if !containsString(entry.Rights, edge.RightType) {
			entry.Rights = append(entry.Rights, edge.RightType)
		}
	}
	result := make([]DirectNeighbor, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	return result
}

func nodeOrID(groups map[string]Node, id string) Node {
	if node, ok := groups[id]; ok {
		return node
	}
	return Node{ID: id}
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
