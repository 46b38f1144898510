package store

import "fmt"

// Traversal directions.
const (
	Outbound = "outbound"
	Inbound  = "inbound"
)

// TraverseResult holds BFS traversal results.
type TraverseResult struct {
	Root    *Node
	Visited []*NodeHop
	Edges   []EdgeInfo
}

// NodeHop is a node with its BFS hop distance.
type NodeHop struct {
	Node *Node
	Hop  int
}

// EdgeInfo is a simplified edge for output, naming nodes by identifier.
type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

type bfsQueue struct {
	nodeID int64
	hop    int
}

// fetchEdgesForNode retrieves edges from a node in the given direction and
// edge types. No edge types means every type.
func (s *Store) fetchEdgesForNode(nodeID int64, direction string, edgeTypes []string) ([]*Edge, error) {
	if len(edgeTypes) == 0 {
		if direction == Outbound {
			return s.FindEdgesBySource(nodeID)
		}
		return s.FindEdgesByTarget(nodeID)
	}
	var edges []*Edge
	for _, et := range edgeTypes {
		var found []*Edge
		var err error
		if direction == Outbound {
			found, err = s.FindEdgesBySourceAndType(nodeID, et)
		} else {
			found, err = s.FindEdgesByTargetAndType(nodeID, et)
		}
		if err != nil {
			return nil, err
		}
		edges = append(edges, found...)
	}
	return edges, nil
}

// BFS performs breadth-first traversal following edges of given types, or
// of every type when edgeTypes is empty.
// direction: Outbound follows source->target, Inbound follows target->source.
// maxDepth caps the BFS depth, maxResults caps total visited nodes.
func (s *Store) BFS(startNodeID int64, direction string, edgeTypes []string, maxDepth, maxResults int) (*TraverseResult, error) {
	if direction != Outbound && direction != Inbound {
		return nil, fmt.Errorf("bfs: unknown direction %q", direction)
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxResults <= 0 {
		maxResults = 200
	}

	root, err := s.FindNodeByID(startNodeID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("bfs: no node %d", startNodeID)
	}
	result := &TraverseResult{Root: root}
	visited := map[int64]bool{startNodeID: true}
	nodeCache := map[int64]*Node{startNodeID: root}

	queue := []bfsQueue{{startNodeID, 0}}
	for len(queue) > 0 && len(result.Visited) < maxResults {
		item := queue[0]
		queue = queue[1:]
		if item.hop >= maxDepth {
			continue
		}

		edges, err := s.fetchEdgesForNode(item.nodeID, direction, edgeTypes)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			nextID := e.SourceID
			if direction == Outbound {
				nextID = e.TargetID
			}
			if !visited[nextID] {
				visited[nextID] = true
				next, lookupErr := s.FindNodeByID(nextID)
				if lookupErr != nil || next == nil {
					continue
				}
				nodeCache[nextID] = next
				result.Visited = append(result.Visited, &NodeHop{Node: next, Hop: item.hop + 1})
				queue = append(queue, bfsQueue{nextID, item.hop + 1})
			}
			result.Edges = append(result.Edges, EdgeInfo{
				From: nodeIdentifier(nodeCache, s, e.SourceID),
				To:   nodeIdentifier(nodeCache, s, e.TargetID),
				Type: e.Type,
			})
			if len(result.Visited) >= maxResults {
				break
			}
		}
	}
	return result, nil
}

// nodeIdentifier returns the identifier for a node ID, using the cache first.
func nodeIdentifier(cache map[int64]*Node, s *Store, id int64) string {
	if n, ok := cache[id]; ok {
		return n.Identifier
	}
	n, err := s.FindNodeByID(id)
	if err != nil || n == nil {
		return ""
	}
	cache[id] = n
	return n.Identifier
}
