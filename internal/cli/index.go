package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/harness"
	"github.com/roach88/sigmap/internal/store"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Database string
	Lookups  []string
}

// LookupResult is the resolution of one identifier.
type LookupResult struct {
	Identifier string         `json:"identifier"`
	Nodes      []graph.NodeID `json:"nodes"`
}

// IndexReport is the output of the index command.
type IndexReport struct {
	Database string         `json:"database"`
	Entries  int            `json:"entries"`
	Nodes    int            `json:"nodes"`
	Lookups  []LookupResult `json:"lookups,omitempty"`
}

func (r IndexReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d entries on %d nodes", r.Database, r.Entries, r.Nodes)
	for _, l := range r.Lookups {
		fmt.Fprintf(&b, "\n  %s -> %v", l.Identifier, l.Nodes)
	}
	return b.String()
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index <input.yaml>",
		Short: "Build the identifier index for a diagram",
		Long: `Rebuild the SQLite index that maps gene identifiers and RNA names to
diagram nodes, then optionally resolve identifiers against it.

Identifiers for --lookup are gene:<id> or rna:<name>.

Examples:
  sigmap index diagram.yaml --db ./index.db
  sigmap index diagram.yaml --lookup gene:42 --lookup rna:hsa-mir-21`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: index_path from config)")
	cmd.Flags().StringArrayVar(&opts.Lookups, "lookup", nil, "identifier to resolve after the rebuild (repeatable)")

	return cmd
}

func runIndex(opts *IndexOptions, inputPath string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.IndexPath
	}

	ids := make([]graph.Identifier, 0, len(opts.Lookups))
	for _, s := range opts.Lookups {
		id, err := parseIdentifier(s)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid lookup", err)
		}
		ids = append(ids, id)
	}

	in, err := harness.LoadInput(inputPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load input", err)
	}
	a, _, err := harness.BuildArena(in.Graph)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build diagram", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open index", err)
	}
	defer st.Close()

	out := opts.formatter(cmd)
	out.VerboseLog("rebuilding index %s from %d nodes", dbPath, a.Len())
	if _, err := st.BuildFromArena(ctx, a); err != nil {
		return WrapExitError(ExitCommandError, "failed to build index", err)
	}
	info, err := st.Info(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read index", err)
	}

	report := IndexReport{Database: dbPath, Entries: info.Entries, Nodes: info.Nodes}
	for _, id := range ids {
		nodes, err := st.IdentifierToNodes(ctx, id)
		if err != nil {
			out.VerboseLog("lookup %s: %v", id, err)
		}
		if nodes == nil {
			nodes = []graph.NodeID{}
		}
		report.Lookups = append(report.Lookups, LookupResult{Identifier: id.String(), Nodes: nodes})
	}
	return out.Success(report)
}

// parseIdentifier reads gene:<id> or rna:<name>.
func parseIdentifier(s string) (graph.Identifier, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return graph.Identifier{}, fmt.Errorf("identifier %q: want gene:<id> or rna:<name>", s)
	}
	switch kind {
	case "gene":
		id, err := strconv.Atoi(value)
		if err != nil || id <= 0 {
			return graph.Identifier{}, fmt.Errorf("identifier %q: gene id must be a positive integer", s)
		}
		return graph.Identifier{GeneID: id}, nil
	case "rna":
		return graph.Identifier{RNA: value}, nil
	default:
		return graph.Identifier{}, fmt.Errorf("identifier %q: unknown kind %q", s, kind)
	}
}
