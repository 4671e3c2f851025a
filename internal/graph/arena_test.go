package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigmap/internal/signal"
)

var keyA = ProjectionKey{Dataset: "d1", Experiment: "A", Type: signal.FoldChange}

func newTestArena(t *testing.T) (*Arena, NodeID) {
	t.Helper()
	a := NewArena()
	id := a.AddNode(Visual{FillColor: "#ffffff", Label: "TP53", Width: 46, Height: 17, X: 10, Y: 20},
		map[string]string{"gene_id": "7157"})
	return a, id
}

// =============================================================================
// Nodes and hierarchy
// =============================================================================

func TestArena_CreateNodeCopiesVisualOnly(t *testing.T) {
	a, n := newTestArena(t)
	require.NoError(t, a.Bind(n, keyA, RecordRef{Pos: 0, Label: "p1"}))

	c, err := a.CreateNode(n)
	require.NoError(t, err)

	node, err := a.Node(c)
	require.NoError(t, err)
	assert.False(t, node.Template)
	assert.Nil(t, node.BelongsTo)
	assert.Equal(t, "TP53", node.Visual.Label)
	assert.Equal(t, "7157", node.Annotations["gene_id"])
}

func TestArena_GroupLifecycle(t *testing.T) {
	a, n := newTestArena(t)

	require.NoError(t, a.ConvertToGroup(n))
	assert.True(t, a.IsGroupNode(n))

	c1, err := a.CreateNode(n)
	require.NoError(t, err)
	require.NoError(t, a.MarkCopy(c1, keyA, RecordRef{Pos: 0}))
	require.NoError(t, a.SetParent(c1, n))

	c2, err := a.CreateNode(n)
	require.NoError(t, err)
	require.NoError(t, a.MarkCopy(c2, keyA, RecordRef{Pos: 1}))
	require.NoError(t, a.SetParent(c2, n))

	group, err := a.Node(n)
	require.NoError(t, err)
	assert.Equal(t, 2, group.ChildCount)
	assert.Equal(t, []NodeID{c1, c2}, a.Children(n))

	_, err = a.ConvertToSimple(n)
	assert.ErrorIs(t, err, ErrHasChildren)

	require.NoError(t, a.RemoveNode(c1))
	group, _ = a.Node(n)
	assert.Equal(t, 1, group.ChildCount)

	require.NoError(t, a.RemoveNode(c2))
	pre, err := a.ConvertToSimple(n)
	require.NoError(t, err)
	assert.Equal(t, "TP53", pre.Label)
	assert.False(t, a.IsGroupNode(n))
}

func TestArena_Guards(t *testing.T) {
	a, n := newTestArena(t)
	other := a.AddNode(Visual{Label: "MDM2"}, nil)

	assert.ErrorIs(t, a.RemoveNode(n), ErrTemplateNode)
	assert.ErrorIs(t, a.SetParent(other, n), ErrNotGroup)
	assert.ErrorIs(t, a.RemoveNode(999), ErrNodeNotFound)

	require.NoError(t, a.Bind(n, keyA, RecordRef{}))
	assert.ErrorIs(t, a.ConvertToGroup(n), ErrGroupBinding)

	require.NoError(t, a.Unbind(n))
	require.NoError(t, a.ConvertToGroup(n))
	assert.ErrorIs(t, a.ConvertToGroup(n), ErrAlreadyGroup)
	assert.ErrorIs(t, a.Bind(n, keyA, RecordRef{}), ErrGroupBinding)
}

func TestArena_SaveRestore(t *testing.T) {
	a, n := newTestArena(t)
	before, err := a.StateOf(n)
	require.NoError(t, err)

	require.NoError(t, a.Save(n))
	require.NoError(t, a.SetVisual(n, Visual{FillColor: "#ff0000"}))
	require.NoError(t, a.SetAnnotation(n, "summary", "x"))
	require.NoError(t, a.Save(n)) // second save keeps the first state

	restored, err := a.Restore(n)
	require.NoError(t, err)
	assert.True(t, restored)

	after, err := a.StateOf(n)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	restored, err = a.Restore(n)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestArena_Annotations(t *testing.T) {
	a, n := newTestArena(t)
	require.NoError(t, a.SetAnnotation(n, "k", "v"))
	v, ok := a.Annotation(n, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, a.SetAnnotation(n, "k", ""))
	_, ok = a.Annotation(n, "k")
	assert.False(t, ok)
}

// =============================================================================
// Journal
// =============================================================================

func TestArena_JournalRollback(t *testing.T) {
	a, n := newTestArena(t)
	before, err := a.Snapshot()
	require.NoError(t, err)

	require.NoError(t, a.Begin())
	require.NoError(t, a.Save(n))
	require.NoError(t, a.ConvertToGroup(n))
	c, err := a.CreateNode(n)
	require.NoError(t, err)
	require.NoError(t, a.MarkCopy(c, keyA, RecordRef{}))
	require.NoError(t, a.SetParent(c, n))
	assert.Equal(t, []NodeID{n, c}, a.Touched())
	require.NoError(t, a.Rollback())

	after, err := a.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	// Ids are reused after rollback.
	c2, err := a.CreateNode(n)
	require.NoError(t, err)
	assert.Equal(t, c, c2)
}

func TestArena_JournalCommit(t *testing.T) {
	a, n := newTestArena(t)
	require.NoError(t, a.Begin())
	assert.ErrorIs(t, a.Begin(), ErrJournalOpen)
	require.NoError(t, a.SetVisual(n, Visual{Label: "changed"}))
	require.NoError(t, a.Commit())
	assert.ErrorIs(t, a.Rollback(), ErrJournalMissing)

	v, err := a.Visual(n)
	require.NoError(t, err)
	assert.Equal(t, "changed", v.Label)
}

// =============================================================================
// Canonical snapshot
// =============================================================================

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"b": 1, "a": []any{true, 1.5, "x<y"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true,1.5,"x<y"],"b":1}`, string(out))
}

func TestMarshalCanonical_RejectsNaN(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"v": math.NaN()})
	assert.Error(t, err)
}

func TestArena_SnapshotDeterministic(t *testing.T) {
	a, n := newTestArena(t)
	m := a.AddNode(Visual{Label: "MDM2"}, nil)
	require.NoError(t, a.AddEdge(n, m))

	s1, err := a.Snapshot()
	require.NoError(t, err)
	s2, err := a.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Contains(t, string(s1), `"label": "MDM2"`)
	assert.ErrorIs(t, a.AddEdge(n, 404), ErrNodeNotFound)
}
