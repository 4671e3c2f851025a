package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigmap/internal/graph"
)

func TestIndexCommandLookups(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	buf := &bytes.Buffer{}
	cmd := NewIndexCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{diagramPath, "--db", db,
		"--lookup", "gene:42", "--lookup", "rna:HSA-MIR-21", "--lookup", "gene:99"})

	require.NoError(t, cmd.Execute())

	var response struct {
		Status string      `json:"status"`
		Data   IndexReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, db, response.Data.Database)
	assert.Equal(t, 3, response.Data.Entries)
	assert.Equal(t, 2, response.Data.Nodes)
	require.Len(t, response.Data.Lookups, 3)
	assert.Equal(t, []graph.NodeID{1}, response.Data.Lookups[0].Nodes)
	assert.Equal(t, []graph.NodeID{2}, response.Data.Lookups[1].Nodes)
	assert.Empty(t, response.Data.Lookups[2].Nodes)
}

func TestIndexCommandText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewIndexCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{diagramPath, "--db", ":memory:", "--lookup", "gene:7"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, ":memory:: 3 entries on 2 nodes\n  gene:7 -> [2]\n", buf.String())
}

func TestIndexCommandRebuildIsIdempotent(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	for n := 0; n < 2; n++ {
		buf := &bytes.Buffer{}
		cmd := NewIndexCommand(&RootOptions{Format: "text"})
		cmd.SetOut(buf)
		cmd.SetArgs([]string{diagramPath, "--db", db})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "3 entries")
	}
}

func TestIndexCommandInvalidLookup(t *testing.T) {
	cmd := NewIndexCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{diagramPath, "--lookup", "protein:1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseIdentifier(t *testing.T) {
	id, err := parseIdentifier("gene:42")
	require.NoError(t, err)
	assert.Equal(t, graph.Identifier{GeneID: 42}, id)

	id, err = parseIdentifier("rna:hsa-mir-21")
	require.NoError(t, err)
	assert.Equal(t, graph.Identifier{RNA: "hsa-mir-21"}, id)

	for _, bad := range []string{"42", "gene:", "gene:abc", "gene:-1", "rna:", "protein:1"} {
		_, err := parseIdentifier(bad)
		assert.Error(t, err, bad)
	}
}
