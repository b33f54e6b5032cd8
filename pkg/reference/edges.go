package reference

// Edge connects the component a value is read from (Source) to the component
// whose configuration reads it (Target).
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// EdgeID returns the deterministic id used for the source→target edge.
func EdgeID(source, target string) string {
	return source + "->" + target
}

// ComposeEdges derives edges from references. References to components that
// are not in nodeIDs and self references are skipped; each (source, target)
// pair yields one edge, in first-seen order.
func ComposeEdges(refs []Reference, nodeIDs []string) []Edge {
	known := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		known[id] = struct{}{}
	}

	var edges []Edge
	seen := make(map[[2]string]struct{})
	for _, ref := range refs {
		if ref.ReferencedNodeID == "" || ref.ReferencedNodeID == ref.NodeID {
			continue
		}
		if _, ok := known[ref.ReferencedNodeID]; !ok {
			continue
		}
		pair := [2]string{ref.ReferencedNodeID, ref.NodeID}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		edges = append(edges, Edge{
			ID:     EdgeID(ref.ReferencedNodeID, ref.NodeID),
			Source: ref.ReferencedNodeID,
			Target: ref.NodeID,
		})
	}
	return edges
}
