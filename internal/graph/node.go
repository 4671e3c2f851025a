// Package graph is the in-memory pathway diagram the projector mutates: an
// arena of nodes indexed by stable NodeIDs, with group/copy hierarchy, visual
// state and free-form annotations.
package graph

import (
	"fmt"
	"maps"

	"github.com/roach88/sigmap/internal/signal"
)

// NodeID identifies a node in an Arena. The zero value means "no node".
type NodeID int

// ProjectionKey identifies one visualized layer.
type ProjectionKey struct {
	Dataset    string      `json:"dataset" yaml:"dataset"`
	Experiment string      `json:"experiment" yaml:"experiment"`
	Type       signal.Type `json:"type" yaml:"type"`
}

func (k ProjectionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Dataset, k.Experiment, k.Type)
}

// RecordRef identifies the record a node is bound to within one layer.
type RecordRef struct {
	// Pos is the record's position in the projected collection.
	Pos int
	// Label is the record's unique label.
	Label string
}

// Visual is the tracked display state of a node.
type Visual struct {
	FillColor string  `json:"fill_color" yaml:"fill_color"`
	Label     string  `json:"label" yaml:"label"`
	Width     float64 `json:"width" yaml:"width"`
	Height    float64 `json:"height" yaml:"height"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
}

// State is the full per-node state captured before a node is first touched by
// a projection, so that removal can restore it exactly.
type State struct {
	Visual      Visual
	Annotations map[string]string
}

// Node is the per-node state struct held by the arena.
// Callers receive copies; mutation goes through Arena methods.
type Node struct {
	ID NodeID

	// Template is true for nodes of the original diagram. Template nodes are
	// never deleted.
	Template bool

	// Parent is the owning group, or 0.
	Parent NodeID

	// Group is true while the node is a group node.
	Group bool

	IsCopy     bool
	BelongsTo  *ProjectionKey
	Bound      *RecordRef
	ChildCount int

	Visual      Visual
	Annotations map[string]string

	// Saved holds the pre-projection state of a template node.
	Saved *State

	// PreSplit holds the visual of a node at the moment it became a group.
	PreSplit *Visual
}

// Kind names the node's position in the simple → group → simple lifecycle.
func (n *Node) Kind() string {
	switch {
	case n.Group:
		return "group"
	case n.IsCopy:
		return "copy"
	case n.BelongsTo != nil:
		return "bound"
	default:
		return "free"
	}
}

func (n *Node) clone() *Node {
	c := *n
	c.Annotations = maps.Clone(n.Annotations)
	if n.BelongsTo != nil {
		k := *n.BelongsTo
		c.BelongsTo = &k
	}
	if n.Bound != nil {
		r := *n.Bound
		c.Bound = &r
	}
	if n.Saved != nil {
		s := State{Visual: n.Saved.Visual, Annotations: maps.Clone(n.Saved.Annotations)}
		c.Saved = &s
	}
	if n.PreSplit != nil {
		v := *n.PreSplit
		c.PreSplit = &v
	}
	return &c
}

// Edge is a link of the diagram. Projection never touches edges.
type Edge struct {
	From NodeID `json:"from" yaml:"from"`
	To   NodeID `json:"to" yaml:"to"`
}

// Identifier is what a record resolves to nodes by: a gene identifier when
// positive, an RNA name otherwise.
type Identifier struct {
	GeneID int
	RNA    string
}

func (id Identifier) String() string {
	if id.GeneID > 0 {
		return fmt.Sprintf("gene:%d", id.GeneID)
	}
	return "rna:" + id.RNA
}

// Annotation keys carrying a template node's identifiers, as comma-separated
// lists.
const (
	AnnotationGeneIDs = "gene_id"
	AnnotationRNA     = "rna"
)
