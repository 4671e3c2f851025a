package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := execute(t, NewTestCommand, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := copyScenarios(t)
	goldenDir := filepath.Join(dir, "golden")

	out, err := execute(t, NewTestCommand, "text", dir, "--update", "--golden-dir", goldenDir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	golden, err := os.ReadFile(filepath.Join(goldenDir, "split_and_restore.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"split_and_restore"`)

	out, err = execute(t, NewTestCommand, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ split_and_restore")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyScenarios(t)
	goldenDir := filepath.Join(dir, "golden")
	require.NoError(t, os.MkdirAll(goldenDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "split_and_restore.golden"), []byte(`{}`), 0644))

	out, err := execute(t, NewTestCommand, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, 1, response.Data.Failed)
	require.Len(t, response.Data.Scenarios, 1)
	assert.Contains(t, response.Data.Scenarios[0].Errors[0], "golden")
}

func TestTestCommandFilter(t *testing.T) {
	dir := copyScenarios(t)

	out, err := execute(t, NewTestCommand, "text", dir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	_, err = execute(t, NewTestCommand, "text", dir, "--filter", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestDefaultGoldenDir(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	assert.Equal(t, filepath.Join(root, "golden"), defaultGoldenDir(scenarios))

	require.NoError(t, os.MkdirAll(filepath.Join(scenarios, "golden"), 0755))
	assert.Equal(t, filepath.Join(scenarios, "golden"), defaultGoldenDir(scenarios))
}

func TestDefaultGoldenDirMatchesHarnessLayout(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata", "scenarios")
	assert.Equal(t, filepath.Join("..", "harness", "testdata", "golden"), defaultGoldenDir(dir))
}

// copyScenarios copies the bundled scenario into a fresh directory.
func copyScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data, err := os.ReadFile(scenarioPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "split_and_restore.yaml"), data, 0644))
	return dir
}
