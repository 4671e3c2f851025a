package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "automatic fold change", args: []string{"--", "2", "-3", "1"}, want: "MaximumDistanceToZero: -3\n"},
		{name: "automatic p-value", args: []string{"--type", "pValue", "0.01", "0.2"}, want: "Minimum: 0.01\n"},
		{name: "automatic other", args: []string{"--type", "ratio", "1", "2", "6"}, want: "Mean: 3\n"},
		{name: "explicit median", args: []string{"--merge-type", "median", "1", "2", "10"}, want: "Median: 2\n"},
		{name: "single value", args: []string{"--merge-type", "Maximum", "7"}, want: "Maximum: 7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewMergeCommand, "text", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestMergeCommandJSONNaN(t *testing.T) {
	out, err := execute(t, NewMergeCommand, "json", "--merge-type", "Mean", "NaN")
	require.NoError(t, err)

	var response struct {
		Data MergeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "Mean", response.Data.MergeType)
	assert.Nil(t, response.Data.Value)
}

func TestMergeCommandAskUserFails(t *testing.T) {
	_, err := execute(t, NewMergeCommand, "text", "--merge-type", "AskUser", "1", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMergeCommandUnknownMergeType(t *testing.T) {
	_, err := execute(t, NewMergeCommand, "text", "--merge-type", "Mode", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
