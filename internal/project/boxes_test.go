package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
	"github.com/roach88/sigmap/internal/testutil"
)

var keySites = ProjectionKey{Dataset: "phospho", Experiment: "e1", Type: signal.FoldChange}

func site(name string, geneID int, analyte, label string, values ...float64) *record.Record {
	r := testutil.GeneRecord(name, geneID, "e1", signal.FoldChange, values...)
	r.Set(record.AnalyteIDKey, record.Text(analyte))
	if label != "" {
		r.Set(record.AnalyteLabelKey, record.Text(label))
	}
	return r
}

// =============================================================================
// Boxed labels
// =============================================================================

func TestBoxes_StackedPerNode(t *testing.T) {
	a, n, m := newDiagram(t)
	before := snapshot(t, a)
	p := New(a, &testutil.MapResolver{Genes: map[int][]graph.NodeID{42: {n}, 7: {m}}})

	records := []*record.Record{
		site("AKT1_pT308", 42, "P31749-T308", "pT308", -2.0),
		site("AKT1_pS473", 42, "P31749-S473", "pS473", 2.0),
		site("AKT1_pS473_dup", 42, "P31749-S473", "", 1.0),
		site("RAF1_pS338", 7, "P04049-S338", "pS338"),
	}
	res, err := p.Project(context.Background(), records, keySites)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Applied)
	assert.Equal(t, []graph.NodeID{n, m}, res.Nodes)
	assert.True(t, p.IsProjected(keySites))
	require.NoError(t, p.Verify())

	node, err := a.Node(n)
	require.NoError(t, err)
	assert.False(t, node.Group)
	assert.Nil(t, node.BelongsTo)
	assert.Equal(t, "#ffffff", node.Visual.FillColor)
	assert.Equal(t, "pS473 #ff0000\npT308 #add8e6", node.Annotations[BoxPrefix+keySites.String()])
	assert.NotContains(t, node.Annotations, SummaryPrefix+keySites.String())

	other, err := a.Node(m)
	require.NoError(t, err)
	assert.NotContains(t, other.Annotations, BoxPrefix+keySites.String())

	again, err := p.Project(context.Background(), records, keySites)
	require.NoError(t, err)
	assert.Equal(t, res.Nodes, again.Nodes)
	node, err = a.Node(n)
	require.NoError(t, err)
	assert.Equal(t, "pS473 #ff0000\npT308 #add8e6", node.Annotations[BoxPrefix+keySites.String()])

	rm, err := p.Remove(context.Background(), keySites)
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{n, m}, rm.Cleared)
	assert.Empty(t, rm.Removed)
	assert.False(t, p.IsProjected(keySites))
	assert.Equal(t, before, snapshot(t, a))
}

func TestBoxes_FollowGroupThroughSplitAndMerge(t *testing.T) {
	a, n, _ := newDiagram(t)
	before := snapshot(t, a)
	p := New(a, &testutil.MapResolver{Genes: map[int][]graph.NodeID{42: {n}}})
	boxKey := BoxPrefix + keySites.String()

	_, err := p.Project(context.Background(),
		[]*record.Record{site("AKT1_pS473", 42, "P31749-S473", "pS473", 2.0)}, keySites)
	require.NoError(t, err)
	_, err = p.Project(context.Background(), []*record.Record{
		testutil.GeneRecord("A", 42, "e1", signal.FoldChange, 2.0),
		testutil.GeneRecord("B", 42, "e1", signal.FoldChange, -1.0),
	}, keyFC)
	require.NoError(t, err)
	require.NoError(t, p.Verify())

	group, err := a.Node(n)
	require.NoError(t, err)
	require.True(t, group.Group)
	assert.Equal(t, "pS473 #ff0000", group.Annotations[boxKey])
	for _, c := range a.Children(n) {
		cn, err := a.Node(c)
		require.NoError(t, err)
		assert.NotContains(t, cn.Annotations, boxKey)
	}

	rm, err := p.Remove(context.Background(), keySites)
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeID{n}, rm.Cleared)
	group, err = a.Node(n)
	require.NoError(t, err)
	assert.True(t, group.Group)
	assert.NotContains(t, group.Annotations, boxKey)

	_, err = p.Remove(context.Background(), keyFC)
	require.NoError(t, err)
	assert.Equal(t, before, snapshot(t, a))
}

func TestBoxes_SurviveRemovalOfColorLayer(t *testing.T) {
	a, n, _ := newDiagram(t)
	p := New(a, &testutil.MapResolver{Genes: map[int][]graph.NodeID{42: {n}}})
	boxKey := BoxPrefix + keySites.String()

	_, err := p.Project(context.Background(),
		[]*record.Record{testutil.GeneRecord("A", 42, "e1", signal.FoldChange, 2.0)}, keyFC)
	require.NoError(t, err)
	_, err = p.Project(context.Background(),
		[]*record.Record{site("AKT1_pS473", 42, "P31749-S473", "pS473", -2.0)}, keySites)
	require.NoError(t, err)

	_, err = p.Remove(context.Background(), keyFC)
	require.NoError(t, err)
	node, err := a.Node(n)
	require.NoError(t, err)
	assert.Nil(t, node.BelongsTo)
	assert.Equal(t, "pS473 #add8e6", node.Annotations[boxKey])
	assert.Equal(t, []graph.NodeID{n}, p.NodesFor(keySites))
}
