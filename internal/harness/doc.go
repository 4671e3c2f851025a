// Package harness runs projection scenarios against a real session.
//
// A scenario describes a small diagram, a set of records and a list of
// operations. The harness builds the diagram, indexes it in an in-memory
// SQLite store, drives the operations through an engine.Session and checks
// the outcome.
//
// # Scenario Format
//
//	name: split_and_restore
//	description: "Two records on one node split it; toggling again restores it"
//	graph:
//	  nodes:
//	    - id: mapk1
//	      gene_ids: [42]
//	      visual: { fill_color: "#ffffff", label: MAPK1, width: 60, height: 20 }
//	records:
//	  - name: A
//	    gene_id: 42
//	    signals:
//	      - { value: 2.0, experiment: e1, type: FoldChange }
//	ops:
//	  - op: toggle
//	    key: { dataset: d1, experiment: e1, type: FoldChange }
//	    expect: { action: projected, applied: 1 }
//	assertions:
//	  - type: node_kind
//	    node: mapk1
//	    kind: bound
//
// # Assertion Types
//
//   - node_kind: the node is free, bound or group
//   - child_count: the node has exactly count copies
//   - bound: the node, or one of its copies, carries record under key
//   - summary_contains: the node's summary annotation for key contains text
//   - fill: the node's fill color
//   - restored: the final diagram equals the initial one byte for byte
//   - invariants: the group invariants hold
//   - node_count: the diagram has exactly count nodes
//   - layers: exactly count layers are active
//
// # Deterministic Runs
//
// Operation ids come from testutil.SequentialIDs and sequence numbers from
// the session's logical clock, so the same scenario always produces the same
// trace. RunWithGolden compares that trace against testdata/golden.
package harness
