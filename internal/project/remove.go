package project

import (
	"context"
	"errors"
	"sort"

	"github.com/roach88/sigmap/internal/graph"
)

// RemoveResult reports the outcome of one Remove call.
type RemoveResult struct {
	Key ProjectionKey
	// Stale is true when key had no active layer; nothing was changed.
	Stale bool
	// Removed lists deleted copy nodes.
	Removed []graph.NodeID
	// Merged lists groups that were turned back into simple nodes.
	Merged []graph.NodeID
	// Restored lists nodes returned to their pre-projection state.
	Restored []graph.NodeID
	// Cleared lists nodes whose boxed labels for key were taken off.
	Cleared []graph.NodeID
}

// Remove withdraws the layer for key. Copies belonging to key are deleted,
// groups left with one copy merge back into simple nodes, and nodes bound to
// key get their pre-projection visual and annotations back. Removing a key
// that is not projected is a no-op reported as Stale.
func (p *Projector) Remove(ctx context.Context, key ProjectionKey) (*RemoveResult, error) {
	res := &RemoveResult{Key: key}
	if !p.IsProjected(key) {
		p.logger.Debug("remove of inactive layer", "key", key.String())
		res.Stale = true
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var copies []graph.NodeID
	for _, n := range p.arena.Nodes() {
		if n.IsCopy && n.BelongsTo != nil && *n.BelongsTo == key {
			copies = append(copies, n.ID)
		}
	}

	var errs []error
	touchedGroups := make(map[graph.NodeID]bool)
	for _, c := range copies {
		if !p.arena.Has(c) {
			continue
		}
		cn, err := p.arena.Node(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.arena.RemoveNode(c); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Removed = append(res.Removed, c)
		touchedGroups[cn.Parent] = true
	}

	groups := make([]graph.NodeID, 0, len(touchedGroups))
	for g := range touchedGroups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	for _, g := range groups {
		if err := p.settleGroup(g, key, res); err != nil {
			errs = append(errs, err)
		}
	}

	for _, n := range p.arena.Nodes() {
		if n.Group || n.IsCopy || n.BelongsTo == nil || *n.BelongsTo != key {
			continue
		}
		if err := p.arena.Unbind(n.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		restored, err := p.arena.Restore(n.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if restored {
			res.Restored = append(res.Restored, n.ID)
		}
	}

	if l := p.layers[key]; l.boxed {
		res.Cleared = l.boxedNodes()
	}
	delete(p.layers, key)
	if err := p.syncBoxes(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Verify(); err != nil {
		errs = append(errs, err)
	}

	p.logger.Info("projection removed",
		"key", key.String(),
		"removed", len(res.Removed),
		"merged", len(res.Merged),
		"restored", len(res.Restored),
		"cleared", len(res.Cleared))
	return res, errors.Join(errs...)
}

// settleGroup brings a group back in line after copies of key were removed.
func (p *Projector) settleGroup(g graph.NodeID, key ProjectionKey, res *RemoveResult) error {
	gn, err := p.arena.Node(g)
	if err != nil {
		return err
	}
	switch {
	case gn.ChildCount == 1:
		if err := p.mergeBack(g); err != nil {
			return err
		}
		res.Merged = append(res.Merged, g)
		return nil
	case gn.ChildCount == 0:
		v, err := p.arena.ConvertToSimple(g)
		if err != nil {
			return err
		}
		if err := p.arena.SetVisual(g, v); err != nil {
			return err
		}
		if _, err := p.arena.Restore(g); err != nil {
			return err
		}
		res.Merged = append(res.Merged, g)
		res.Restored = append(res.Restored, g)
		return nil
	default:
		for _, prefix := range []string{SummaryPrefix, SizePrefix} {
			if err := p.arena.SetAnnotation(g, prefix+key.String(), ""); err != nil {
				return err
			}
		}
		return p.layout(g)
	}
}
