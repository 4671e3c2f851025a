package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/sigmap/internal/signal"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	MergeType string
	Type      string
}

// MergeResult is the output of the merge command.
type MergeResult struct {
	MergeType string   `json:"merge_type"`
	Value     *float64 `json:"value"`
}

func (r MergeResult) String() string {
	if r.Value == nil {
		return fmt.Sprintf("%s: NaN", r.MergeType)
	}
	return fmt.Sprintf("%s: %s", r.MergeType, signal.FormatValue(*r.Value))
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <value>...",
		Short: "Collapse values with a merge strategy",
		Long: `Collapse values the way duplicate signals are merged during projection.

Automatic resolves by signal type: fold changes and log ratios keep the value
farthest from zero, p- and q-values keep the minimum, anything else averages.
Without --merge-type the configured merge_type is used.

Examples:
  sigmap merge 2 -3 1
  sigmap merge 0.01 0.2 --type pValue
  sigmap merge 1 2 4 --merge-type NormalizedSumOfLog2`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.MergeType, "merge-type", "m", "", "merge strategy (default: merge_type from config)")
	cmd.Flags().StringVarP(&opts.Type, "type", "t", signal.FoldChange.String(), "signal type of the values")

	return cmd
}

func runMerge(opts *MergeOptions, args []string, cmd *cobra.Command) error {
	t, err := signal.ParseType(opts.Type)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid signal type", err)
	}
	values, err := parseValues(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid value", err)
	}

	var m signal.MergeType
	if opts.MergeType != "" {
		if m, err = signal.ParseMergeType(opts.MergeType); err != nil {
			return WrapExitError(ExitCommandError, "invalid merge type", err)
		}
	} else {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		m = cfg.MergeType
	}

	resolved := signal.ResolveAutomatic(m, t)
	v, err := signal.Calculate(resolved, values)
	if err != nil {
		return WrapExitError(ExitFailure, "merge failed", err)
	}
	res := MergeResult{MergeType: resolved.String()}
	if !math.IsNaN(v) {
		res.Value = &v
	}
	return opts.formatter(cmd).Success(res)
}
