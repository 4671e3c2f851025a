package project

import (
	"fmt"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/sigerr"
)

// Verify checks the group/copy invariants over the whole arena and returns
// the first violation found.
func (p *Projector) Verify() error {
	return p.verifyNodes(p.arena.IDs())
}

// verifyNodes checks ids and, for copies, their parents. Deleted ids are
// skipped.
func (p *Projector) verifyNodes(ids []graph.NodeID) error {
	checked := make(map[graph.NodeID]bool, len(ids))
	for _, id := range ids {
		if checked[id] || !p.arena.Has(id) {
			continue
		}
		checked[id] = true
		n, err := p.arena.Node(id)
		if err != nil {
			return err
		}
		if err := p.verifyNode(n); err != nil {
			return err
		}
		if n.Parent != 0 && !checked[n.Parent] && p.arena.Has(n.Parent) {
			checked[n.Parent] = true
			parent, err := p.arena.Node(n.Parent)
			if err != nil {
				return err
			}
			if err := p.verifyNode(parent); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Projector) verifyNode(n graph.Node) error {
	violation := func(msg string, kv ...string) error {
		kv = append([]string{"node", fmt.Sprint(n.ID), "state", stateOf(n).String()}, kv...)
		return sigerr.New(sigerr.CodeInvariantViolation, msg, kv...)
	}

	switch {
	case n.Group:
		if n.BelongsTo != nil || n.Bound != nil {
			return violation("group node carries a binding")
		}
		if n.Parent != 0 {
			return violation("group node has a parent", "parent", fmt.Sprint(n.Parent))
		}
		copies := 0
		for _, c := range p.arena.Children(n.ID) {
			cn, err := p.arena.Node(c)
			if err != nil {
				return err
			}
			if cn.IsCopy {
				copies++
			}
		}
		if copies != n.ChildCount {
			return violation("child count does not match copies",
				"child_count", fmt.Sprint(n.ChildCount), "copies", fmt.Sprint(copies))
		}
		if n.ChildCount < 2 {
			return violation("group node with fewer than two copies",
				"child_count", fmt.Sprint(n.ChildCount))
		}

	case n.IsCopy:
		if n.Parent == 0 {
			return violation("copy node without parent")
		}
		if !p.arena.IsGroupNode(n.Parent) {
			return violation("copy parent is not a group", "parent", fmt.Sprint(n.Parent))
		}
		if n.BelongsTo == nil || n.Bound == nil {
			return violation("copy node without binding")
		}

	default:
		if n.Parent != 0 {
			return violation("simple node has a parent", "parent", fmt.Sprint(n.Parent))
		}
	}
	return nil
}
