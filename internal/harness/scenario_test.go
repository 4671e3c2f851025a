package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigmap/internal/signal"
)

const minimalScenario = `
name: minimal
graph:
  nodes:
    - id: n1
      gene_ids: [42]
      visual: { label: N1, width: 60, height: 20 }
records:
  - name: A
    gene_id: 42
    signals:
      - { value: 2.0, experiment: e1, type: foldchange }
ops:
  - op: toggle
    key: { dataset: d1, experiment: e1, type: FoldChange }
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Graph.Nodes, 1)
	assert.Equal(t, []int{42}, s.Graph.Nodes[0].GeneIDs)
	assert.Equal(t, 60.0, s.Graph.Nodes[0].Visual.Width)
	require.Len(t, s.Records, 1)
	assert.Equal(t, signal.FoldChange, s.Records[0].Signals[0].Type)
	require.Len(t, s.Ops, 1)
	assert.Equal(t, signal.FoldChange, s.Ops[0].Key.Type)
	assert.Equal(t, "d1/e1/FoldChange", s.Ops[0].Key.String())
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestParseScenario_UnknownSignalType(t *testing.T) {
	bad := `
name: bad_type
graph:
  nodes: [{ id: n1, visual: { label: N1 } }]
ops:
  - op: toggle
    key: { dataset: d1, experiment: e1, type: Loudness }
`
	_, err := ParseScenario([]byte(bad))
	assert.Error(t, err)
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "graph: { nodes: [{ id: n1 }] }\nops: [{ op: verify }]\n",
			wantErr: "name is required",
		},
		{
			name:    "no nodes",
			yaml:    "name: x\nops: [{ op: verify }]\n",
			wantErr: "graph.nodes is required",
		},
		{
			name:    "no ops",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }] }\n",
			wantErr: "ops list is required",
		},
		{
			name:    "duplicate node",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }, { id: n1 }] }\nops: [{ op: verify }]\n",
			wantErr: "duplicate id",
		},
		{
			name:    "link to unknown node",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }], links: [{ from: n1, to: n2 }] }\nops: [{ op: verify }]\n",
			wantErr: "unknown node",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }] }\nops: [{ op: paint }]\n",
			wantErr: `unknown op "paint"`,
		},
		{
			name:    "unknown record in op",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }] }\nops: [{ op: project, records: [Z] }]\n",
			wantErr: `unknown record "Z"`,
		},
		{
			name:    "unknown assertion type",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }] }\nops: [{ op: verify }]\nassertions: [{ type: sparkles }]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "assertion on unknown node",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }] }\nops: [{ op: verify }]\nassertions: [{ type: fill, node: n9 }]\n",
			wantErr: `unknown node "n9"`,
		},
		{
			name:    "bad node kind",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }] }\nops: [{ op: verify }]\nassertions: [{ type: node_kind, node: n1, kind: copy }]\n",
			wantErr: "kind must be",
		},
		{
			name:    "bound without record",
			yaml:    "name: x\ngraph: { nodes: [{ id: n1 }] }\nops: [{ op: verify }]\nassertions: [{ type: bound, node: n1 }]\n",
			wantErr: "record is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDir_SortedByFileName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b", "a"} {
		content := "name: " + name + "\ngraph: { nodes: [{ id: n1 }] }\nops: [{ op: verify }]\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}

func TestLoadDir_ReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoadInput_AcceptsScenarioFile(t *testing.T) {
	in, err := LoadInput(filepath.Join("testdata", "scenarios", "split_and_restore.yaml"))
	require.NoError(t, err)
	assert.Len(t, in.Graph.Nodes, 2)
	assert.Len(t, in.Records, 2)
}

func TestLoadInput_RequiresNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("records: []\n"), 0o644))
	_, err := LoadInput(path)
	assert.Error(t, err)
}
