package graph

import (
	"errors"
	"fmt"
	"maps"
	"sort"
)

// Sentinel errors for arena operations.
var (
	ErrNodeNotFound   = errors.New("graph: node not found")
	ErrTemplateNode   = errors.New("graph: template nodes cannot be removed")
	ErrHasChildren    = errors.New("graph: node still has children")
	ErrNotGroup       = errors.New("graph: parent is not a group node")
	ErrGroupBinding   = errors.New("graph: group nodes cannot carry a binding")
	ErrAlreadyGroup   = errors.New("graph: node is already a group")
	ErrCopyNode       = errors.New("graph: copy nodes cannot become groups")
	ErrJournalOpen    = errors.New("graph: journal already open")
	ErrJournalMissing = errors.New("graph: no open journal")
)

// Arena owns every node of one diagram.
//
// Thread-safety: none. An arena is mutated by exactly one goroutine (the
// session's run loop); see internal/engine.
type Arena struct {
	nodes map[NodeID]*Node
	next  NodeID
	edges []Edge

	journal *journal
}

// journal records the pre-image of every node touched since Begin, so a
// failed step can be rolled back without disturbing other nodes.
type journal struct {
	before map[NodeID]*Node // nil value: node did not exist
	next   NodeID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{nodes: make(map[NodeID]*Node)}
}

// AddNode adds a template node and returns its id.
func (a *Arena) AddNode(v Visual, annotations map[string]string) NodeID {
	a.next++
	id := a.next
	a.touch(id)
	a.nodes[id] = &Node{
		ID:          id,
		Template:    true,
		Visual:      v,
		Annotations: maps.Clone(annotations),
	}
	return id
}

// AddEdge links two existing nodes.
func (a *Arena) AddEdge(from, to NodeID) error {
	if _, ok := a.nodes[from]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, from)
	}
	if _, ok := a.nodes[to]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, to)
	}
	a.edges = append(a.edges, Edge{From: from, To: to})
	return nil
}

// Edges returns the diagram's links.
func (a *Arena) Edges() []Edge {
	return append([]Edge(nil), a.edges...)
}

// CreateNode creates a non-template node whose visual and annotations are
// copied from template. Hierarchy and binding are not copied.
func (a *Arena) CreateNode(template NodeID) (NodeID, error) {
	src, err := a.get(template)
	if err != nil {
		return 0, err
	}
	a.next++
	id := a.next
	a.touch(id)
	a.nodes[id] = &Node{
		ID:          id,
		Visual:      src.Visual,
		Annotations: maps.Clone(src.Annotations),
	}
	return id, nil
}

// RemoveNode deletes a non-template node without children. Removing a copy
// decrements its group's ChildCount.
func (a *Arena) RemoveNode(id NodeID) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	if n.Template {
		return fmt.Errorf("%w: %d", ErrTemplateNode, id)
	}
	if len(a.children(id)) > 0 {
		return fmt.Errorf("%w: %d", ErrHasChildren, id)
	}
	if n.Parent != 0 {
		if err := a.detach(n); err != nil {
			return err
		}
	}
	a.touch(id)
	delete(a.nodes, id)
	return nil
}

// SetParent moves child under parent, which must be a group. Parent 0
// detaches the child. ChildCount of both groups follows copy membership.
func (a *Arena) SetParent(child, parent NodeID) error {
	c, err := a.get(child)
	if err != nil {
		return err
	}
	if parent != 0 {
		p, err := a.get(parent)
		if err != nil {
			return err
		}
		if !p.Group {
			return fmt.Errorf("%w: %d", ErrNotGroup, parent)
		}
	}
	if c.Parent != 0 {
		if err := a.detach(c); err != nil {
			return err
		}
	}
	if parent == 0 {
		return nil
	}
	a.touch(child)
	a.touch(parent)
	c.Parent = parent
	if c.IsCopy {
		a.nodes[parent].ChildCount++
	}
	return nil
}

func (a *Arena) detach(c *Node) error {
	p, err := a.get(c.Parent)
	if err != nil {
		return err
	}
	a.touch(c.ID)
	a.touch(p.ID)
	if c.IsCopy {
		p.ChildCount--
	}
	c.Parent = 0
	return nil
}

// MarkCopy stamps a non-group node as the copy serving (key, ref).
// It must be called before SetParent so the group counts the copy.
func (a *Arena) MarkCopy(id NodeID, key ProjectionKey, ref RecordRef) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	if n.Group {
		return fmt.Errorf("%w: %d", ErrGroupBinding, id)
	}
	a.touch(id)
	n.IsCopy = true
	n.BelongsTo = &key
	n.Bound = &ref
	return nil
}

// Bind attaches a simple node to (key, ref).
func (a *Arena) Bind(id NodeID, key ProjectionKey, ref RecordRef) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	if n.Group {
		return fmt.Errorf("%w: %d", ErrGroupBinding, id)
	}
	a.touch(id)
	n.BelongsTo = &key
	n.Bound = &ref
	return nil
}

// Unbind clears a node's binding.
func (a *Arena) Unbind(id NodeID) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	a.touch(id)
	n.BelongsTo = nil
	n.Bound = nil
	return nil
}

// IsGroupNode reports whether id is a group node.
func (a *Arena) IsGroupNode(id NodeID) bool {
	n, ok := a.nodes[id]
	return ok && n.Group
}

// ConvertToGroup turns an unbound simple node into an empty group and records
// its current visual as the pre-split visual.
func (a *Arena) ConvertToGroup(id NodeID) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	switch {
	case n.Group:
		return fmt.Errorf("%w: %d", ErrAlreadyGroup, id)
	case n.IsCopy:
		return fmt.Errorf("%w: %d", ErrCopyNode, id)
	case n.BelongsTo != nil || n.Bound != nil:
		return fmt.Errorf("%w: %d", ErrGroupBinding, id)
	}
	a.touch(id)
	v := n.Visual
	n.PreSplit = &v
	n.Group = true
	n.ChildCount = 0
	return nil
}

// ConvertToSimple turns an empty group back into a simple node and returns
// the visual recorded when it was split.
func (a *Arena) ConvertToSimple(id NodeID) (Visual, error) {
	n, err := a.get(id)
	if err != nil {
		return Visual{}, err
	}
	if !n.Group {
		return Visual{}, fmt.Errorf("%w: %d", ErrNotGroup, id)
	}
	if len(a.children(id)) > 0 {
		return Visual{}, fmt.Errorf("%w: %d", ErrHasChildren, id)
	}
	a.touch(id)
	v := n.Visual
	if n.PreSplit != nil {
		v = *n.PreSplit
	}
	n.Group = false
	n.ChildCount = 0
	n.PreSplit = nil
	return v, nil
}

// Annotation returns one annotation of a node.
func (a *Arena) Annotation(id NodeID, key string) (string, bool) {
	n, ok := a.nodes[id]
	if !ok {
		return "", false
	}
	v, ok := n.Annotations[key]
	return v, ok
}

// SetAnnotation sets an annotation; an empty value deletes it.
func (a *Arena) SetAnnotation(id NodeID, key, value string) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	a.touch(id)
	if value == "" {
		delete(n.Annotations, key)
		return nil
	}
	if n.Annotations == nil {
		n.Annotations = make(map[string]string)
	}
	n.Annotations[key] = value
	return nil
}

// SetAnnotations replaces all annotations of a node.
func (a *Arena) SetAnnotations(id NodeID, annotations map[string]string) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	a.touch(id)
	n.Annotations = maps.Clone(annotations)
	return nil
}

// Visual returns a node's visual state.
func (a *Arena) Visual(id NodeID) (Visual, error) {
	n, err := a.get(id)
	if err != nil {
		return Visual{}, err
	}
	return n.Visual, nil
}

// SetVisual replaces a node's visual state.
func (a *Arena) SetVisual(id NodeID, v Visual) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	a.touch(id)
	n.Visual = v
	return nil
}

// Save records the node's current visual and annotations as its
// pre-projection state, unless a state is already saved.
func (a *Arena) Save(id NodeID) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	if n.Saved != nil {
		return nil
	}
	a.touch(id)
	n.Saved = &State{Visual: n.Visual, Annotations: maps.Clone(n.Annotations)}
	return nil
}

// Restore puts back the saved pre-projection state and forgets it.
// Returns false when nothing was saved.
func (a *Arena) Restore(id NodeID) (bool, error) {
	n, err := a.get(id)
	if err != nil {
		return false, err
	}
	if n.Saved == nil {
		return false, nil
	}
	a.touch(id)
	n.Visual = n.Saved.Visual
	n.Annotations = maps.Clone(n.Saved.Annotations)
	n.Saved = nil
	return true, nil
}

// Children returns the direct children of id in id order.
func (a *Arena) Children(id NodeID) []NodeID {
	return a.children(id)
}

func (a *Arena) children(id NodeID) []NodeID {
	var out []NodeID
	for cid, n := range a.nodes {
		if n.Parent == id {
			out = append(out, cid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Node returns a copy of a node's state.
func (a *Arena) Node(id NodeID) (Node, error) {
	n, err := a.get(id)
	if err != nil {
		return Node{}, err
	}
	return *n.clone(), nil
}

// Has reports whether id exists.
func (a *Arena) Has(id NodeID) bool {
	_, ok := a.nodes[id]
	return ok
}

// IDs returns every node id in ascending order.
func (a *Arena) IDs() []NodeID {
	out := make([]NodeID, 0, len(a.nodes))
	for id := range a.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Nodes returns copies of every node in id order.
func (a *Arena) Nodes() []Node {
	ids := a.IDs()
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = *a.nodes[id].clone()
	}
	return out
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

func (a *Arena) get(id NodeID) (*Node, error) {
	n, ok := a.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return n, nil
}

// =============================================================================
// Journal
// =============================================================================

// Begin opens a journal. Every node touched until Commit or Rollback has its
// pre-image recorded.
func (a *Arena) Begin() error {
	if a.journal != nil {
		return ErrJournalOpen
	}
	a.journal = &journal{before: make(map[NodeID]*Node), next: a.next}
	return nil
}

// Touched returns the ids modified since Begin, in ascending order.
func (a *Arena) Touched() []NodeID {
	if a.journal == nil {
		return nil
	}
	out := make([]NodeID, 0, len(a.journal.before))
	for id := range a.journal.before {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Commit keeps every change made since Begin.
func (a *Arena) Commit() error {
	if a.journal == nil {
		return ErrJournalMissing
	}
	a.journal = nil
	return nil
}

// Rollback restores every node touched since Begin to its pre-image and
// removes nodes created since Begin.
func (a *Arena) Rollback() error {
	j := a.journal
	if j == nil {
		return ErrJournalMissing
	}
	for id, before := range j.before {
		if before == nil {
			delete(a.nodes, id)
			continue
		}
		a.nodes[id] = before
	}
	a.next = j.next
	a.journal = nil
	return nil
}

func (a *Arena) touch(id NodeID) {
	j := a.journal
	if j == nil {
		return
	}
	if _, seen := j.before[id]; seen {
		return
	}
	if n, ok := a.nodes[id]; ok {
		j.before[id] = n.clone()
		return
	}
	j.before[id] = nil
}
