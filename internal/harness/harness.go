package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sigmap/internal/aggregate"
	"github.com/roach88/sigmap/internal/config"
	"github.com/roach88/sigmap/internal/engine"
	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/project"
	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
	"github.com/roach88/sigmap/internal/store"
	"github.com/roach88/sigmap/internal/testutil"
)

// Harness holds the per-run state of one scenario.
type Harness struct {
	arena     *graph.Arena
	nodes     map[string]graph.NodeID
	records   []*record.Record
	byName    map[string]*record.Record
	projector *project.Projector
	session   *engine.Session
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh diagram and a fresh in-memory index, and operation
// ids are sequential, so the trace is reproducible.
//
// Execution flow:
//  1. Build the diagram and index its identifiers
//  2. Load the configuration and the records
//  3. Drive every op through an engine.Session, checking expect clauses
//  4. Evaluate assertions against the final diagram
func Run(s *Scenario) (*Result, error) {
	ctx := context.Background()

	a, nodes, err := BuildArena(s.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to build diagram: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	if _, err := st.BuildFromArena(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to index diagram: %w", err)
	}

	cfg, err := scenarioConfig(s.Config)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ProjectorOptions()
	if err != nil {
		return nil, err
	}

	records, err := BuildRecords(s.Records)
	if err != nil {
		return nil, fmt.Errorf("failed to build records: %w", err)
	}
	if s.GeneCentered || len(s.GeneCenteredIDs) > 0 {
		centered, err := aggregate.GeneCenteredAll(ctx, [][]*record.Record{records}, s.GeneCenteredIDs, cfg.MergeType)
		if err != nil {
			return nil, fmt.Errorf("failed to gene-center records: %w", err)
		}
		records = centered[0]
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := project.New(a, st, append(opts, project.WithLogger(logger))...)
	h := &Harness{
		arena:     a,
		nodes:     nodes,
		records:   records,
		byName:    make(map[string]*record.Record, len(records)),
		projector: p,
		logger:    logger,
	}
	for _, r := range records {
		h.byName[r.Name] = r
	}
	h.session = engine.NewSession(p,
		engine.WithOpIDs(testutil.NewSequentialIDs("op")),
		engine.WithLogger(logger))

	result := NewResult()
	if result.Initial, err = a.Snapshot(); err != nil {
		return nil, err
	}

	if err := h.executeOps(ctx, s.Ops, result); err != nil {
		return nil, fmt.Errorf("failed to execute ops: %w", err)
	}

	if result.Final, err = a.Snapshot(); err != nil {
		return nil, err
	}
	result.NodeCount = a.Len()

	for _, msg := range h.evaluateAssertions(s.Assertions, result) {
		result.AddError(msg)
	}
	return result, nil
}

// executeOps runs the session loop for the duration of the ops.
func (h *Harness) executeOps(ctx context.Context, ops []OpStep, result *Result) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.session.Run(runCtx) }()

	var runErr error
	for i, step := range ops {
		op, err := h.toOp(step)
		if err != nil {
			runErr = fmt.Errorf("ops[%d]: %w", i, err)
			break
		}
		res, err := h.session.Do(ctx, op)
		if err != nil {
			runErr = fmt.Errorf("ops[%d]: %w", i, err)
			break
		}
		entry := traceEntry(step, res)
		result.Trace = append(result.Trace, entry)
		for _, msg := range checkExpect(i, step, entry) {
			result.AddError(msg)
		}
	}

	h.session.Stop()
	if err := <-done; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (h *Harness) toOp(step OpStep) (engine.Op, error) {
	op := engine.Op{Kind: engine.OpKind(step.Op), Key: step.Key}
	if len(step.Records) == 0 {
		op.Records = h.records
		return op, nil
	}
	for _, name := range step.Records {
		r, ok := h.byName[name]
		if !ok {
			return engine.Op{}, fmt.Errorf("unknown record %q", name)
		}
		op.Records = append(op.Records, r)
	}
	return op, nil
}

// checkExpect compares an operation's outcome with its expect clause. An op
// without one must succeed.
func checkExpect(i int, step OpStep, e TraceEntry) []string {
	exp := step.Expect
	if exp == nil {
		if e.Error != "" {
			return []string{fmt.Sprintf("ops[%d] %s: unexpected error: %s", i, step.Op, e.Error)}
		}
		return nil
	}

	var errs []string
	fail := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("ops[%d] %s: %s: expected %v, got %v", i, step.Op, field, want, got))
	}
	switch {
	case exp.Error == "" && e.Error != "":
		fail("error", "none", e.Error)
	case exp.Error != "" && !strings.Contains(e.Error, exp.Error):
		fail("error", exp.Error, e.Error)
	}
	if exp.Action != "" && exp.Action != e.Action {
		fail("action", exp.Action, e.Action)
	}
	if exp.Applied != nil && *exp.Applied != e.Applied {
		fail("applied", *exp.Applied, e.Applied)
	}
	if exp.Missed != nil && !slices.Equal(exp.Missed, e.Missed) {
		fail("missed", exp.Missed, e.Missed)
	}
	if exp.Stale != nil && *exp.Stale != e.Stale {
		fail("stale", *exp.Stale, e.Stale)
	}
	return errs
}

// BuildArena adds the declared nodes in order and links them. The returned map
// takes symbolic ids to arena ids.
func BuildArena(g GraphSpec) (*graph.Arena, map[string]graph.NodeID, error) {
	a := graph.NewArena()
	ids := make(map[string]graph.NodeID, len(g.Nodes))
	for _, n := range g.Nodes {
		ann := make(map[string]string, len(n.Annotations)+2)
		for k, v := range n.Annotations {
			ann[k] = v
		}
		if len(n.GeneIDs) > 0 {
			parts := make([]string, len(n.GeneIDs))
			for i, g := range n.GeneIDs {
				parts[i] = strconv.Itoa(g)
			}
			ann[graph.AnnotationGeneIDs] = strings.Join(parts, ",")
		}
		if len(n.RNA) > 0 {
			ann[graph.AnnotationRNA] = strings.Join(n.RNA, ",")
		}
		ids[n.ID] = a.AddNode(n.Visual, ann)
	}
	for _, l := range g.Links {
		if err := a.AddEdge(ids[l.From], ids[l.To]); err != nil {
			return nil, nil, fmt.Errorf("link %s -> %s: %w", l.From, l.To, err)
		}
	}
	return a, ids, nil
}

// BuildRecords converts record declarations into records, in order.
func BuildRecords(specs []RecordSpec) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(specs))
	for _, rs := range specs {
		var r *record.Record
		if rs.GeneID > 0 {
			r = record.NewGene(rs.Name, rs.GeneID)
		} else {
			r = record.New(rs.Name)
		}
		for _, sg := range rs.Signals {
			r.AddSignal(signal.New(sg.Value, sg.Experiment, sg.Type))
		}
		for k, raw := range rs.Data {
			v, err := record.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("record %q data %q: %w", rs.Name, k, err)
			}
			r.Set(k, v)
		}
		out = append(out, r)
	}
	return out, nil
}

// scenarioConfig overlays the scenario's config section on the defaults.
// The process environment is not consulted so runs stay reproducible.
func scenarioConfig(overrides map[string]any) (config.Config, error) {
	cfg := config.Default()
	if len(overrides) > 0 {
		raw, err := yaml.Marshal(overrides)
		if err != nil {
			return config.Config{}, fmt.Errorf("encode scenario config: %w", err)
		}
		if err := cfg.Decode(bytes.NewReader(raw)); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
