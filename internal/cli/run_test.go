package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioPath = filepath.Join("testdata", "scenarios", "split_and_restore.yaml")

func TestRunCommandText(t *testing.T) {
	out, err := execute(t, NewRunCommand, "text", scenarioPath)
	require.NoError(t, err)

	assert.Contains(t, out, "#1 op-0001 toggle d1/e1/FoldChange -> projected applied=2 missed=0 nodes=[1 3 4]")
	assert.Contains(t, out, "#2 op-0002 verify")
	assert.Contains(t, out, "#3 op-0003 toggle d1/e1/FoldChange -> removed removed=[3 4] merged=[1]")
	assert.Contains(t, out, "nodes: 2, restored: true")
	assert.Contains(t, out, "✓ split_and_restore")
}

func TestRunCommandJSON(t *testing.T) {
	out, err := execute(t, NewRunCommand, "json", scenarioPath)
	require.NoError(t, err)

	var response struct {
		Status string    `json:"status"`
		Data   RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.True(t, response.Data.Pass)
	assert.True(t, response.Data.Restored)
	assert.Len(t, response.Data.Trace, 3)
}

func TestRunCommandFailingScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(failingScenario), 0644))

	out, err := execute(t, NewRunCommand, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "Assertion failed: node_count")
}

func TestRunCommandInvalidScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\n"), 0644))

	_, err := execute(t, NewRunCommand, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

const failingScenario = `name: failing
graph:
  nodes:
    - id: mapk1
      gene_ids: [42]
      visual: { fill_color: "#ffffff", label: MAPK1, width: 60, height: 20 }
records:
  - name: A
    gene_id: 42
    signals:
      - { value: 2.0, experiment: e1, type: FoldChange }
ops:
  - op: project
    key: { dataset: d1, experiment: e1, type: FoldChange }
assertions:
  - type: node_count
    count: 5
`
