package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigmap/internal/signal"
	"github.com/roach88/sigmap/internal/sigerr"
)

// =============================================================================
// Signals
// =============================================================================

func TestRecord_AddSignalSkipsDuplicates(t *testing.T) {
	r := New("TP53")
	assert.True(t, r.AddSignal(signal.New(1.5, "A", signal.FoldChange)))
	assert.False(t, r.AddSignal(signal.New(1.5, "A", signal.FoldChange)))
	assert.True(t, r.AddSignal(signal.New(2.0, "A", signal.FoldChange)))
	assert.Len(t, r.Signals, 2)
}

func TestRecord_SignalWildcards(t *testing.T) {
	r := New("TP53")
	r.AddSignals(
		signal.New(0.01, "A", signal.PValue),
		signal.New(1.5, "B", signal.FoldChange),
	)

	s, ok := r.Signal("", signal.FoldChange)
	require.True(t, ok)
	assert.Equal(t, "B", s.Experiment)

	s, ok = r.Signal("A", signal.AnyType)
	require.True(t, ok)
	assert.Equal(t, signal.PValue, s.Type)

	_, ok = r.Signal("C", signal.AnyType)
	assert.False(t, ok)
}

func TestRecord_RemoveSignals(t *testing.T) {
	r := New("TP53")
	r.AddSignals(
		signal.New(1, "A", signal.FoldChange),
		signal.New(2, "A", signal.FoldChange),
		signal.New(3, "B", signal.FoldChange),
	)
	assert.Equal(t, 2, r.RemoveSignals("A", signal.FoldChange))
	require.Len(t, r.Signals, 1)
	assert.Equal(t, "B", r.Signals[0].Experiment)
}

func TestRecord_RemoveSignalEqualityPolicy(t *testing.T) {
	r := New("TP53")
	r.AddSignal(signal.New(0.1+0.2, "A", signal.FoldChange))

	assert.Equal(t, 0, r.RemoveSignal(0.3, "A", signal.FoldChange, signal.Exact),
		"exact policy must not match a recomputed value")
	assert.Equal(t, 1, r.RemoveSignal(0.3, "A", signal.FoldChange, signal.ValuePolicy{Epsilon: 1e-9}))
	assert.False(t, r.HasSignals())
}

func TestRecord_MergedValue(t *testing.T) {
	r := New("TP53")
	r.AddSignals(
		signal.New(1, "A", signal.FoldChange),
		signal.New(3, "A", signal.FoldChange),
	)
	v, err := r.MergedValue("A", signal.FoldChange, signal.Mean)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = r.MergedValue("B", signal.FoldChange, signal.Mean)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestRecord_Experiments(t *testing.T) {
	r := New("x")
	r.AddSignals(
		signal.New(1, "B", signal.Raw),
		signal.New(1, "A", signal.Raw),
		signal.New(2, "B", signal.Raw),
	)
	assert.Equal(t, []string{"B", "A"}, r.Experiments())
}

// =============================================================================
// Identity
// =============================================================================

func TestRecord_IdentifierAndLabel(t *testing.T) {
	g := NewGene("feature_1", 42)
	assert.Equal(t, "gene:42", g.Identifier())
	assert.Equal(t, "feature_1 (42)", g.UniqueLabel())

	n := New("  mir-21 ")
	assert.Equal(t, "name:MIR-21", n.Identifier())
	assert.Equal(t, "  mir-21 ", n.UniqueLabel())

	unknown := NewGene("feature_2", UnknownGeneID)
	assert.Equal(t, "name:FEATURE_2", unknown.Identifier())
}

func TestRecord_Analyte(t *testing.T) {
	r := NewGene("AKT1_pS473", 207)
	id, label := r.Analyte()
	assert.Empty(t, id)
	assert.Empty(t, label)

	r.Set(AnalyteIDKey, Opaque{Key: "P31749-S473"})
	r.Set(AnalyteLabelKey, Text("pS473"))
	id, label = r.Analyte()
	assert.Equal(t, "P31749-S473", id)
	assert.Equal(t, "pS473", label)

	r.Set(AnalyteLabelKey, Number(3))
	_, label = r.Analyte()
	assert.Empty(t, label)
}

func TestRecord_CloneIsDeep(t *testing.T) {
	inner := New("inner")
	r := NewGene("outer", 7)
	r.AddSignal(signal.New(1, "A", signal.Raw))
	r.Set("nested", Nested{Record: inner})
	r.Set("note", Text("x"))

	c := r.Clone()
	c.Signals[0].Value = 99
	c.Set("note", Text("y"))
	c.Data["nested"].(Nested).Record.Name = "changed"

	assert.Equal(t, 1.0, r.Signals[0].Value)
	assert.Equal(t, Text("x"), r.Data["note"])
	assert.Equal(t, "inner", inner.Name)
	assert.Equal(t, 7, c.GeneID())
}

// =============================================================================
// Extensions and values
// =============================================================================

func TestGeneExt_MergeExtension(t *testing.T) {
	agree := MergeExtensions([]Extension{GeneExt{GeneID: 5}, GeneExt{GeneID: 5}})
	assert.Equal(t, GeneExt{GeneID: 5, Centered: true}, agree)

	disagree := MergeExtensions([]Extension{GeneExt{GeneID: 5}, GeneExt{GeneID: 6}})
	assert.Equal(t, GeneExt{GeneID: UnknownGeneID, Centered: false}, disagree)

	assert.Nil(t, MergeExtensions([]Extension{nil, nil}))
}

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"int", 3, Number(3)},
		{"float", 2.5, Number(2.5)},
		{"string", "kinase", Text("kinase")},
		{"bool", true, Bool(true)},
		{"ratio", map[string]any{"a": 3, "b": 10}, Ratio{A: 3, B: 10}},
		{"opaque", map[string]any{"opaque": "hsa:7157"}, Opaque{Key: "hsa:7157"}},
		{"set", []any{"a", "b"}, Set{Text("a"), Text("b")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_Nested(t *testing.T) {
	v, err := FromAny(map[string]any{"name": "child", "data": map[string]any{"score": 1.5}})
	require.NoError(t, err)
	n, ok := v.(Nested)
	require.True(t, ok)
	assert.Equal(t, "child", n.Record.Name)
	assert.Equal(t, Number(1.5), n.Record.Data["score"])
}

func TestFromAny_Rejects(t *testing.T) {
	for _, in := range []any{nil, []any{1, 2}, map[string]any{"x": 1}, struct{}{}} {
		_, err := FromAny(in)
		require.Error(t, err)
		assert.True(t, sigerr.IsIncompatibleMergeInput(err), "%T", in)
	}
}

func TestRatio_Value(t *testing.T) {
	assert.Equal(t, 0.25, Ratio{A: 1, B: 4}.Value())
	assert.Equal(t, 0.0, Ratio{A: 1, B: 0}.Value())
}
