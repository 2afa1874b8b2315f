package relay

import "meshdiag/internal/model"

// Candidates returns the nodes that could have produced a relay with the
// given suffix: the low byte of the id matches, the node has been heard at
// least once, and it is not the owner. A nil owner excludes nobody.
// The result is unordered.
func Candidates(snap model.Snapshot, owner *model.NodeID, suffix uint8) []model.Node {
	out := make([]model.Node, 0)
	for id, node := range snap {
		if id.Suffix() != suffix {
			continue
		}
		if !node.Heard() {
			continue
		}
		if owner != nil && id == *owner {
			continue
		}
		// Trust the map key over the embedded id.
		node.ID = id
		out = append(out, node)
	}
	return out
}
