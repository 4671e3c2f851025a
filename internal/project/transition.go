package project

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/sigerr"
)

// nodeState is a node's position in the simple → group → simple lifecycle.
type nodeState int

const (
	stateFree nodeState = iota
	stateBound
	stateGroup
	stateCopy
)

func (s nodeState) String() string {
	return [...]string{"free", "bound", "group", "copy"}[s]
}

func stateOf(n graph.Node) nodeState {
	switch {
	case n.Group:
		return stateGroup
	case n.IsCopy:
		return stateCopy
	case n.BelongsTo != nil:
		return stateBound
	default:
		return stateFree
	}
}

// attach is the transition function for binding (key, ref) to node id:
//
//	free  -> bound  save pre-projection state, bind
//	bound -> bound  same binding: nothing to do
//	bound -> group  split: first copy keeps the old binding, second gets ref
//	group -> group  add a copy for ref unless one exists
//	copy            redirected to its group
func (p *Projector) attach(id graph.NodeID, key ProjectionKey, ref graph.RecordRef, rec *record.Record, guard *splitGuard) error {
	n, err := p.arena.Node(id)
	if err != nil {
		return err
	}
	switch stateOf(n) {
	case stateFree:
		if err := p.arena.Save(id); err != nil {
			return err
		}
		return p.arena.Bind(id, key, ref)

	case stateBound:
		if *n.BelongsTo == key && *n.Bound == ref {
			return nil
		}
		if err := p.split(id, n); err != nil {
			return err
		}
		return p.addCopy(id, key, ref, guard)

	case stateGroup:
		return p.addCopy(id, key, ref, guard)

	case stateCopy:
		if n.Parent == 0 || !p.arena.IsGroupNode(n.Parent) {
			return sigerr.New(sigerr.CodeInvariantViolation, "copy node without group parent",
				"node", fmt.Sprint(id), "record", rec.UniqueLabel())
		}
		return p.attach(n.Parent, key, ref, rec, guard)
	}
	return fmt.Errorf("node %d: unknown state", id)
}

// split turns a bound simple node into a group whose first copy carries the
// node's existing binding. The group keeps the node's base annotations and the
// summary of the old layer; per-node layer data moves to the copy.
func (p *Projector) split(id graph.NodeID, n graph.Node) error {
	oldKey, oldRef := *n.BelongsTo, *n.Bound
	anns := make(map[string]string, len(n.Annotations))
	for k, v := range baseAnnotations(n) {
		anns[k] = v
	}
	if s, ok := n.Annotations[SummaryPrefix+oldKey.String()]; ok {
		anns[SummaryPrefix+oldKey.String()] = s
	}

	first, err := p.arena.CreateNode(id)
	if err != nil {
		return err
	}
	if err := p.arena.Unbind(id); err != nil {
		return err
	}
	if err := p.arena.ConvertToGroup(id); err != nil {
		return err
	}
	if err := p.arena.SetAnnotations(id, anns); err != nil {
		return err
	}
	v := n.Visual
	v.Label = oldRef.Label
	if err := p.arena.SetVisual(first, v); err != nil {
		return err
	}
	if err := p.arena.MarkCopy(first, oldKey, oldRef); err != nil {
		return err
	}
	return p.arena.SetParent(first, id)
}

// addCopy adds a copy for (key, ref) under group g unless one already exists.
func (p *Projector) addCopy(g graph.NodeID, key ProjectionKey, ref graph.RecordRef, guard *splitGuard) error {
	if guard.WouldDuplicate(g, ref) {
		return nil
	}
	for _, c := range p.arena.Children(g) {
		cn, err := p.arena.Node(c)
		if err != nil {
			return err
		}
		if cn.IsCopy && *cn.BelongsTo == key && *cn.Bound == ref {
			guard.Record(g, ref)
			return nil
		}
	}

	gn, err := p.arena.Node(g)
	if err != nil {
		return err
	}
	c, err := p.arena.CreateNode(g)
	if err != nil {
		return err
	}
	if err := p.arena.SetAnnotations(c, baseAnnotations(gn)); err != nil {
		return err
	}
	v := gn.Visual
	if gn.PreSplit != nil {
		v = *gn.PreSplit
	}
	v.Label = ref.Label
	if err := p.arena.SetVisual(c, v); err != nil {
		return err
	}
	if err := p.arena.MarkCopy(c, key, ref); err != nil {
		return err
	}
	if err := p.arena.SetParent(c, g); err != nil {
		return err
	}
	guard.Record(g, ref)
	return p.layout(g)
}

// baseAnnotations returns the annotations a node had before any projection.
func baseAnnotations(n graph.Node) map[string]string {
	if n.Saved != nil {
		return n.Saved.Annotations
	}
	out := make(map[string]string, len(n.Annotations))
	for k, v := range n.Annotations {
		if isLayerAnnotation(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// isLayerAnnotation reports whether k is written by a projection layer.
func isLayerAnnotation(k string) bool {
	return strings.HasPrefix(k, SummaryPrefix) ||
		strings.HasPrefix(k, SizePrefix) ||
		strings.HasPrefix(k, BoxPrefix)
}

// layout stacks a group's copies vertically starting at the group's pre-split
// position and resizes the group to enclose them.
func (p *Projector) layout(g graph.NodeID) error {
	gn, err := p.arena.Node(g)
	if err != nil {
		return err
	}
	base := gn.Visual
	if gn.PreSplit != nil {
		base = *gn.PreSplit
	}
	children := p.arena.Children(g)
	width := base.Width
	for i, c := range children {
		v, err := p.arena.Visual(c)
		if err != nil {
			return err
		}
		v.X = base.X
		v.Y = base.Y + float64(i)*base.Height
		v.Width = max(base.Width, labelWidth(v.Label))
		v.Height = base.Height
		width = max(width, v.Width)
		if err := p.arena.SetVisual(c, v); err != nil {
			return err
		}
	}
	gv := gn.Visual
	gv.X, gv.Y = base.X, base.Y
	gv.Label = base.Label
	gv.Width = width
	gv.Height = base.Height * float64(max(len(children), 1))
	return p.arena.SetVisual(g, gv)
}

// labelWidth approximates the rendered width of a label.
func labelWidth(label string) float64 {
	return float64(utf8.RuneCountInString(label))*7 + 10
}

// mergeBack turns a group with a single remaining copy back into a simple
// node that takes over the copy's binding, fill and annotations.
func (p *Projector) mergeBack(g graph.NodeID) error {
	children := p.arena.Children(g)
	if len(children) != 1 {
		return sigerr.New(sigerr.CodeInvariantViolation, "merge back needs exactly one copy",
			"node", fmt.Sprint(g), "children", fmt.Sprint(len(children)))
	}
	last, err := p.arena.Node(children[0])
	if err != nil {
		return err
	}
	if err := p.arena.RemoveNode(last.ID); err != nil {
		return err
	}
	v, err := p.arena.ConvertToSimple(g)
	if err != nil {
		return err
	}
	v.FillColor = last.Visual.FillColor
	if err := p.arena.SetVisual(g, v); err != nil {
		return err
	}
	if err := p.arena.SetAnnotations(g, last.Annotations); err != nil {
		return err
	}
	return p.arena.Bind(g, *last.BelongsTo, *last.Bound)
}
