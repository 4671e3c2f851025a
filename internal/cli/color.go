package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigmap/internal/recolor"
	"github.com/roach88/sigmap/internal/signal"
)

// ColorOptions holds flags for the color command.
type ColorOptions struct {
	*RootOptions
	Type string
}

// ColorResult is the rendering of one value.
type ColorResult struct {
	Value      string  `json:"value"`
	Fill       string  `json:"fill"`
	Size       float64 `json:"size"`
	Considered bool    `json:"considered"`
}

type colorResults []ColorResult

func (rs colorResults) String() string {
	lines := make([]string, len(rs))
	for i, r := range rs {
		lines[i] = fmt.Sprintf("%s\t%s\t%.3f", r.Value, r.Fill, r.Size)
		if !r.Considered {
			lines[i] += "\t(ignored)"
		}
	}
	return strings.Join(lines, "\n")
}

// NewColorCommand creates the color command.
func NewColorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "color <value>...",
		Short: "Show the fill color for signal values",
		Long: `Print the fill color and value-bar size the configured recoloring policy
assigns to each value. "NaN" stands for a missing value.

Examples:
  sigmap color 2 -1.5 0.1
  sigmap color 0.001 0.2 --type pValue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColor(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", signal.FoldChange.String(), "signal type of the values")

	return cmd
}

func runColor(opts *ColorOptions, args []string, cmd *cobra.Command) error {
	t, err := signal.ParseType(opts.Type)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid signal type", err)
	}
	values, err := parseValues(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid value", err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	r := recolor.New(policy)

	out := make(colorResults, len(values))
	for i, v := range values {
		out[i] = ColorResult{
			Value:      signal.FormatValue(v),
			Fill:       recolor.Hex(r.GetColor(v, t)),
			Size:       r.SizeFraction(v, t),
			Considered: r.ConsiderSignal(v, t),
		}
	}
	return opts.formatter(cmd).Success(out)
}

func parseValues(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		out[i] = v
	}
	return out, nil
}
