package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommandDefaults(t *testing.T) {
	out, err := execute(t, NewConfigCommand, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "merge_type: Automatic")
	assert.Contains(t, out, "index_path:")
}

func TestConfigCommandFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("merge_type: Median\nannotation_limit: 3\n"), 0644))
	t.Setenv("SIGMAP_ANNOTATION_LIMIT", "7")

	buf, err := executeRoot(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, buf, "merge_type: Median")
	assert.Contains(t, buf, "annotation_limit: 7")
}

func TestConfigCommandJSON(t *testing.T) {
	out, err := execute(t, NewConfigCommand, "json")
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.NotNil(t, response.Data)
}

func TestConfigCommandRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("merge_typ: Median\n"), 0644))

	_, err := executeRoot(t, "--config", path, "config")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
