package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigmap/internal/aggregate"
	"github.com/roach88/sigmap/internal/engine"
	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/harness"
	"github.com/roach88/sigmap/internal/project"
	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
	"github.com/roach88/sigmap/internal/store"
)

// ProjectOptions holds flags for the project command.
type ProjectOptions struct {
	*RootOptions
	Keys         []string
	GeneCentered bool
	CenterIDs    []string
	Remove       bool
	Snapshot     string

	// OpIDs overrides the operation id generator (for testing).
	// If nil, the session uses UUIDv7 ids.
	OpIDs engine.OpIDGenerator
}

// LayerReport is the outcome of projecting one key.
type LayerReport struct {
	Key     string         `json:"key"`
	OpID    string         `json:"op_id"`
	Applied int            `json:"applied"`
	Missed  []string       `json:"missed,omitempty"`
	Failed  []string       `json:"failed,omitempty"`
	Nodes   []graph.NodeID `json:"nodes"`
}

// ProjectReport is the output of the project command.
type ProjectReport struct {
	Layers   []LayerReport `json:"layers"`
	Nodes    int           `json:"nodes"`
	Removed  bool          `json:"removed"`
	Restored bool          `json:"restored,omitempty"`
}

func (r ProjectReport) String() string {
	var b strings.Builder
	for _, l := range r.Layers {
		fmt.Fprintf(&b, "%s: %d applied, %d missed, %d failed, %d nodes\n",
			l.Key, l.Applied, len(l.Missed), len(l.Failed), len(l.Nodes))
	}
	fmt.Fprintf(&b, "diagram: %d nodes", r.Nodes)
	if r.Removed {
		if r.Restored {
			b.WriteString(", restored")
		} else {
			b.WriteString(", NOT restored")
		}
	}
	return b.String()
}

// NewProjectCommand creates the project command.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "project <input.yaml>",
		Short: "Project records onto a diagram",
		Long: `Project the records of an input file onto its diagram, one layer per --key.

Keys have the form dataset/experiment/type, e.g. d1/e1/FoldChange. The
identifier index is built in the SQLite database named by index_path.

Exit codes:
  0 - Every record landed or was reported as missed
  1 - A record was rolled back or the diagram failed verification
  2 - Command error (unreadable input, invalid config or key)

Examples:
  sigmap project diagram.yaml --key d1/e1/FoldChange
  sigmap project diagram.yaml --key d1/e1/FoldChange --key d1/e1/pValue --snapshot out.json
  sigmap project diagram.yaml --key d1/e1/FoldChange --remove --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Keys, "key", "k", nil, "projection key dataset/experiment/type (repeatable)")
	cmd.Flags().BoolVar(&opts.GeneCentered, "gene-centered", false, "merge records sharing a gene identifier first, per layer")
	cmd.Flags().StringArrayVar(&opts.CenterIDs, "center-id", nil, "gene-center only this identifier, e.g. gene:42 (repeatable, implies --gene-centered)")
	cmd.Flags().BoolVar(&opts.Remove, "remove", false, "remove every layer again and check the diagram is restored")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "write the final diagram snapshot to this file")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func runProject(opts *ProjectOptions, inputPath string, cmd *cobra.Command) error {
	keys := make([]graph.ProjectionKey, 0, len(opts.Keys))
	for _, s := range opts.Keys {
		k, err := parseKey(s)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid key", err)
		}
		keys = append(keys, k)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	projOpts, err := cfg.ProjectorOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	in, err := harness.LoadInput(inputPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load input", err)
	}
	a, _, err := harness.BuildArena(in.Graph)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build diagram", err)
	}
	records, err := harness.BuildRecords(in.Records)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build records", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger(cmd.ErrOrStderr())

	layers := make([][]*record.Record, len(keys))
	for i := range keys {
		layers[i] = records
	}
	if opts.GeneCentered || len(opts.CenterIDs) > 0 {
		for i, k := range keys {
			layers[i] = recordsFor(records, k)
		}
		if layers, err = aggregate.GeneCenteredAll(ctx, layers, opts.CenterIDs, cfg.MergeType); err != nil {
			return WrapExitError(ExitCommandError, "failed to gene-center records", err)
		}
		for i, k := range keys {
			logger.Debug("layer gene-centered", "key", k.String(), "records", len(layers[i]))
		}
	}

	st, err := store.Open(cfg.IndexPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open index", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing index", "error", closeErr)
		}
	}()
	n, err := st.BuildFromArena(ctx, a)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build index", err)
	}
	logger.Debug("index built", "path", cfg.IndexPath, "entries", n)

	p := project.New(a, st, append(projOpts, project.WithLogger(logger))...)
	sessOpts := []engine.SessionOption{engine.WithLogger(logger)}
	if opts.OpIDs != nil {
		sessOpts = append(sessOpts, engine.WithOpIDs(opts.OpIDs))
	}
	sess := engine.NewSession(p, sessOpts...)

	before, err := a.Snapshot()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sess.Run(runCtx) }()

	report, snap, opErr := driveSession(ctx, sess, layers, keys, opts.Remove)
	sess.Stop()
	if err := <-done; err != nil && opErr == nil {
		opErr = err
	}
	report.Nodes = a.Len()
	report.Removed = opts.Remove
	if opts.Remove {
		report.Restored = string(before) == string(snap)
	}

	if opts.Snapshot != "" && snap != nil {
		if err := os.WriteFile(opts.Snapshot, snap, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write snapshot", err)
		}
	}

	out := opts.formatter(cmd)
	if opErr != nil {
		_ = out.Error(CodeProjection, opErr.Error(), report)
		return WrapExitError(ExitFailure, "projection failed", opErr)
	}
	if opts.Remove && !report.Restored {
		_ = out.Error(CodeProjection, "diagram not restored after removal", report)
		return NewExitError(ExitFailure, "diagram not restored after removal")
	}
	return out.Success(report)
}

// recordsFor returns the records carrying a signal of key's experiment and
// type.
func recordsFor(records []*record.Record, key graph.ProjectionKey) []*record.Record {
	var out []*record.Record
	for _, r := range records {
		if len(r.SignalsOf(key.Experiment, key.Type)) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// driveSession projects layers[i] under keys[i], optionally removes them all
// again, then verifies and snapshots the diagram. It stops at the first failed
// op.
func driveSession(ctx context.Context, sess *engine.Session, layers [][]*record.Record, keys []graph.ProjectionKey, remove bool) (ProjectReport, []byte, error) {
	report := ProjectReport{Layers: make([]LayerReport, 0, len(keys))}
	for i, k := range keys {
		res, err := sess.Do(ctx, engine.Op{Kind: engine.OpProject, Key: k, Records: layers[i]})
		if err != nil {
			return report, nil, err
		}
		layer := LayerReport{Key: k.String(), OpID: res.ID}
		if res.Project != nil {
			layer.Applied = res.Project.Applied
			layer.Missed = res.Project.Missed
			layer.Failed = res.Project.Failed
			layer.Nodes = res.Project.Nodes
		}
		report.Layers = append(report.Layers, layer)
		if res.Err != nil {
			return report, nil, res.Err
		}
	}

	if remove {
		for i := len(keys) - 1; i >= 0; i-- {
			res, err := sess.Do(ctx, engine.Op{Kind: engine.OpRemove, Key: keys[i]})
			if err != nil {
				return report, nil, err
			}
			if res.Err != nil {
				return report, nil, res.Err
			}
		}
	}

	for _, kind := range []engine.OpKind{engine.OpVerify, engine.OpSnapshot} {
		res, err := sess.Do(ctx, engine.Op{Kind: kind})
		if err != nil {
			return report, nil, err
		}
		if res.Err != nil {
			return report, nil, res.Err
		}
		if kind == engine.OpSnapshot {
			return report, res.Snapshot, nil
		}
	}
	return report, nil, nil
}

// parseKey reads dataset/experiment/type. The dataset may itself contain
// slashes; experiment and type may not.
func parseKey(s string) (graph.ProjectionKey, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 {
		return graph.ProjectionKey{}, fmt.Errorf("key %q: want dataset/experiment/type", s)
	}
	j := strings.LastIndex(s[:i], "/")
	if j <= 0 || j+1 == i {
		return graph.ProjectionKey{}, fmt.Errorf("key %q: want dataset/experiment/type", s)
	}
	t, err := signal.ParseType(s[i+1:])
	if err != nil {
		return graph.ProjectionKey{}, fmt.Errorf("key %q: %w", s, err)
	}
	return graph.ProjectionKey{Dataset: s[:j], Experiment: s[j+1 : i], Type: t}, nil
}
