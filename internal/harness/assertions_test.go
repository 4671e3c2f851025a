package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertFill, Node: "mapk1", Expected: "#ff0000", Actual: "#ffffff"}
	assert.Equal(t,
		"Assertion failed: fill (node mapk1)\n  Expected: #ff0000\n  Actual: #ffffff",
		err.Error())

	err = &AssertionError{Type: AssertRestored, Expected: "a", Actual: "b"}
	assert.Equal(t, "Assertion failed: restored\n  Expected: a\n  Actual: b", err.Error())
}

func TestAssertions_GroupScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: group_assertions
graph:
  nodes:
    - { id: n1, gene_ids: [42], visual: { fill_color: "#ffffff", label: N1, width: 60, height: 20 } }
    - { id: n2, gene_ids: [7], visual: { fill_color: "#ffffff", label: N2, width: 60, height: 20 } }
records:
  - { name: A, gene_id: 42, signals: [{ value: 2.0, experiment: e1, type: FoldChange }] }
  - { name: B, gene_id: 42, signals: [{ value: -1.0, experiment: e1, type: FoldChange }] }
ops:
  - op: project
    key: { dataset: d1, experiment: e1, type: FoldChange }
assertions:
  - { type: node_kind, node: n1, kind: group }
  - { type: node_kind, node: n2, kind: free }
  - { type: child_count, node: n1, count: 2 }
  - { type: bound, node: n1, record: "B (42)" }
  - { type: bound, node: n1, record: "C (42)" }
  - type: bound
    node: n1
    key: { dataset: d1, experiment: e2, type: FoldChange }
    record: "A (42)"
  - type: summary_contains
    node: n1
    key: { dataset: d1, experiment: e1, type: FoldChange }
    contains: "#MaximumDistanceToZero: 2"
  - type: summary_contains
    node: n2
    key: { dataset: d1, experiment: e1, type: FoldChange }
    contains: "anything"
  - { type: fill, node: n2, fill: "#FFFFFF" }
  - { type: invariants }
  - { type: node_count, count: 4 }
  - { type: layers, count: 1 }
`))
	if !assert.NoError(t, err) {
		return
	}

	result, err := Run(s)
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, result.Errors, 3)
	for _, msg := range result.Errors {
		t.Log(msg)
	}
	if len(result.Errors) == 3 {
		assert.Contains(t, result.Errors[0], `record "C (42)" bound`)
		assert.Contains(t, result.Errors[0], "A (42)@d1/e1/FoldChange")
		assert.Contains(t, result.Errors[1], `record "A (42)" bound`)
		assert.Contains(t, result.Errors[2], "no summary")
	}
}

func TestAssertions_BoxesScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: boxes_assertions
graph:
  nodes:
    - { id: akt1, gene_ids: [207], visual: { fill_color: "#ffffff", label: AKT1, width: 60, height: 20 } }
    - { id: raf1, gene_ids: [5894], visual: { fill_color: "#ffffff", label: RAF1, width: 60, height: 20 } }
records:
  - name: AKT1_pS473
    gene_id: 207
    signals: [{ value: 2.0, experiment: e1, type: FoldChange }]
    data: { analyte_id: P31749-S473, analyte_label: pS473 }
ops:
  - op: project
    key: { dataset: phospho, experiment: e1, type: FoldChange }
assertions:
  - type: boxes_contains
    node: akt1
    key: { dataset: phospho, experiment: e1, type: FoldChange }
    contains: "pS473 #ff0000"
  - type: boxes_contains
    node: akt1
    key: { dataset: phospho, experiment: e1, type: FoldChange }
    contains: "pT308"
  - type: boxes_contains
    node: raf1
    key: { dataset: phospho, experiment: e1, type: FoldChange }
    contains: "pS338"
  - { type: node_kind, node: akt1, kind: free }
`))
	if !assert.NoError(t, err) {
		return
	}

	result, err := Run(s)
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, result.Errors, 2) {
		assert.Contains(t, result.Errors[0], `boxes containing "pT308"`)
		assert.Contains(t, result.Errors[1], "no boxes")
	}
}
