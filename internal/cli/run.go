package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigmap/internal/harness"
)

// RunReport is the output of the run command.
type RunReport struct {
	Name      string               `json:"name"`
	Pass      bool                 `json:"pass"`
	Trace     []harness.TraceEntry `json:"trace"`
	Errors    []string             `json:"errors,omitempty"`
	Restored  bool                 `json:"restored"`
	NodeCount int                  `json:"node_count"`
}

func (r RunReport) String() string {
	var b strings.Builder
	for _, e := range r.Trace {
		fmt.Fprintf(&b, "#%d %s %s", e.Seq, e.ID, e.Op)
		if e.Key != "" {
			fmt.Fprintf(&b, " %s", e.Key)
		}
		if e.Action != "" {
			fmt.Fprintf(&b, " -> %s", e.Action)
		}
		switch {
		case e.Projected:
			fmt.Fprintf(&b, " applied=%d missed=%d nodes=%v", e.Applied, len(e.Missed), e.Nodes)
		case e.Removal && e.Stale:
			b.WriteString(" stale")
		case e.Removal:
			fmt.Fprintf(&b, " removed=%v merged=%v", e.Removed, e.Merged)
		}
		if e.Error != "" {
			fmt.Fprintf(&b, " error=%q", e.Error)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "nodes: %d, restored: %t\n", r.NodeCount, r.Restored)
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	if r.Pass {
		fmt.Fprintf(&b, "✓ %s", r.Name)
	} else {
		fmt.Fprintf(&b, "✗ %s", r.Name)
	}
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario file and print the trace of every operation followed by
the outcome of its assertions.

Exit codes:
  0 - All expectations and assertions held
  1 - The scenario failed
  2 - Command error (unreadable or invalid scenario)

Examples:
  sigmap run ./scenarios/split_and_restore.yaml
  sigmap run ./scenarios/split_and_restore.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runScenarioFile(opts *RootOptions, path string, cmd *cobra.Command) error {
	s, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	result, err := harness.Run(s)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	report := RunReport{
		Name:      s.Name,
		Pass:      result.Pass,
		Trace:     result.Trace,
		Errors:    result.Errors,
		Restored:  result.Restored(),
		NodeCount: result.NodeCount,
	}
	if err := opts.formatter(cmd).Success(report); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", s.Name))
	}
	return nil
}
