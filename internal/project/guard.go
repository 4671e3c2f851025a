package project

import "github.com/roach88/sigmap/internal/graph"

// splitGuard tracks the (group, record) pairs already handled in one Project
// call so a record reaching the same group through several candidate nodes
// gets exactly one copy.
//
// The guard lives for one call. Cross-call idempotence comes from scanning
// the group's existing children instead (see addCopy).
type splitGuard struct {
	seen map[guardKey]bool
}

type guardKey struct {
	group graph.NodeID
	ref   graph.RecordRef
}

func newSplitGuard() *splitGuard {
	return &splitGuard{seen: make(map[guardKey]bool)}
}

// WouldDuplicate reports whether ref already has a copy under group in this call.
func (g *splitGuard) WouldDuplicate(group graph.NodeID, ref graph.RecordRef) bool {
	return g.seen[guardKey{group: group, ref: ref}]
}

// Record marks that ref now has a copy under group.
func (g *splitGuard) Record(group graph.NodeID, ref graph.RecordRef) {
	g.seen[guardKey{group: group, ref: ref}] = true
}

// Forget drops every pair of group; used when a record's staged changes are
// rolled back.
func (g *splitGuard) Forget(groups []graph.NodeID) {
	drop := make(map[graph.NodeID]bool, len(groups))
	for _, id := range groups {
		drop[id] = true
	}
	for k := range g.seen {
		if drop[k.group] {
			delete(g.seen, k)
		}
	}
}
