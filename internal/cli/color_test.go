package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a subcommand built by newCmd and returns its stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestColorCommandFoldChange(t *testing.T) {
	out, err := execute(t, NewColorCommand, "json", "--", "2", "-2", "0.1", "NaN")
	require.NoError(t, err)

	var response struct {
		Status string        `json:"status"`
		Data   []ColorResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Data, 4)

	assert.Equal(t, ColorResult{Value: "2", Fill: "#ff0000", Size: 1, Considered: true}, response.Data[0])
	assert.Equal(t, "#add8e6", response.Data[1].Fill)
	assert.Equal(t, "#ffffff", response.Data[2].Fill)
	assert.False(t, response.Data[2].Considered)
	assert.Equal(t, "NaN", response.Data[3].Value)
	assert.Equal(t, "#d3d3d3", response.Data[3].Fill)
	assert.Zero(t, response.Data[3].Size)
}

func TestColorCommandText(t *testing.T) {
	out, err := execute(t, NewColorCommand, "text", "2", "0.1")
	require.NoError(t, err)
	assert.Equal(t, "2\t#ff0000\t1.000\n0.1\t#ffffff\t0.000\t(ignored)\n", out)
}

func TestColorCommandPValue(t *testing.T) {
	out, err := execute(t, NewColorCommand, "json", "--type", "pValue", "0.05", "2")
	require.NoError(t, err)

	var response struct {
		Data []ColorResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Data, 2)
	assert.Equal(t, "#add8e6", response.Data[0].Fill)
	assert.Equal(t, 1.0, response.Data[0].Size)
	assert.True(t, response.Data[1].Considered, "p > 1 passes through by default")
	assert.Equal(t, 1.0, response.Data[1].Size)
}

func TestColorCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, NewColorCommand, "text", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, NewColorCommand, "text", "--type", "bogus", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signal type")
}
