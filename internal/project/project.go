// Package project projects record signals onto a pathway diagram.
//
// A projection binds each record of a collection to the diagram nodes its
// identifier resolves to, colors those nodes and writes summary annotations.
// When several records land on one node, the node is split into a group with
// one copy per record; removing the projection merges groups back and restores
// every node's pre-projection state.
//
// Invariants kept after every Project and Remove:
//   - a group node carries no binding and its ChildCount equals the number of
//     its copy children, which is at least two;
//   - every copy node has a group parent and carries a binding;
//   - non-copy nodes have no parent.
package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/sigmap/internal/aggregate"
	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/recolor"
	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/sigerr"
	"github.com/roach88/sigmap/internal/signal"
)

// ProjectionKey identifies one visualized layer.
type ProjectionKey = graph.ProjectionKey

// Defaults for Projector options.
const (
	DefaultLookupTimeout   = 2 * time.Second
	DefaultAnnotationLimit = 5
	DefaultRangeQuantile   = 0.05

	// scoreQuantile picks the score that gets the full size bar.
	scoreQuantile = 0.1
)

// Annotation key prefixes written per layer.
const (
	SummaryPrefix = "summary:"
	SizePrefix    = "size:"
	BoxPrefix     = "boxes:"
)

// Resolver maps an identifier to the diagram nodes that represent it.
// store.Store implements it.
type Resolver interface {
	IdentifierToNodes(ctx context.Context, id graph.Identifier) ([]graph.NodeID, error)
}

// IdentifierFor returns the identifier a record resolves by: its gene
// identifier when known, its name as an RNA identifier otherwise.
func IdentifierFor(r *record.Record) graph.Identifier {
	if id := r.GeneID(); id > 0 {
		return graph.Identifier{GeneID: id}
	}
	return graph.Identifier{RNA: r.Name}
}

// Option configures a Projector.
type Option func(*Projector)

// WithLogger sets the logger. Lookup misses are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) { p.logger = l }
}

// WithLookupTimeout bounds each identifier lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(p *Projector) {
		if d > 0 {
			p.lookupTimeout = d
		}
	}
}

// WithRecolorer sets the color policy.
func WithRecolorer(r *recolor.Recolorer) Option {
	return func(p *Projector) { p.recolorer = r }
}

// WithAnnotationLimit sets how many values a summary annotation lists before
// collapsing the rest into a count.
func WithAnnotationLimit(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.annotationLimit = n
		}
	}
}

// WithMergeType sets the strategy for collapsing several values into one.
func WithMergeType(m signal.MergeType) Option {
	return func(p *Projector) { p.mergeType = m }
}

// WithPathwayCentered merges all records landing on the same node into one
// record instead of splitting the node.
func WithPathwayCentered(on bool) Option {
	return func(p *Projector) { p.pathwayCentered = on }
}

// WithRangeQuantile sets the quantile used to derive the color range of
// signal types that are neither fold changes nor probabilities.
func WithRangeQuantile(q float64) Option {
	return func(p *Projector) { p.rangeQuantile = q }
}

// Projector applies and removes projections on one arena.
//
// Thread-safety: none. A Projector is driven by a single goroutine, the same
// one that owns the arena.
type Projector struct {
	arena    *graph.Arena
	resolver Resolver

	recolorer       *recolor.Recolorer
	logger          *slog.Logger
	mergeType       signal.MergeType
	lookupTimeout   time.Duration
	annotationLimit int
	pathwayCentered bool
	rangeQuantile   float64

	layers map[ProjectionKey]*layer
}

// layer is what the projector remembers about one active projection.
type layer struct {
	records   map[graph.RecordRef]*record.Record
	sources   map[graph.RecordRef][]*record.Record
	recolorer *recolor.Recolorer

	// boxed layers keep their records per node instead of binding them.
	boxed bool
	boxes map[graph.NodeID]map[graph.RecordRef]*record.Record
}

// New creates a Projector over arena resolving identifiers through resolver.
func New(arena *graph.Arena, resolver Resolver, opts ...Option) *Projector {
	p := &Projector{
		arena:           arena,
		resolver:        resolver,
		recolorer:       recolor.New(recolor.DefaultPolicy()),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		mergeType:       signal.Automatic,
		lookupTimeout:   DefaultLookupTimeout,
		annotationLimit: DefaultAnnotationLimit,
		rangeQuantile:   DefaultRangeQuantile,
		layers:          make(map[ProjectionKey]*layer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Arena returns the arena the projector mutates.
func (p *Projector) Arena() *graph.Arena {
	return p.arena
}

// IsProjected reports whether key has an active layer.
func (p *Projector) IsProjected(key ProjectionKey) bool {
	_, ok := p.layers[key]
	return ok
}

// Result reports the outcome of one Project call.
type Result struct {
	Key ProjectionKey
	// Nodes carrying the layer after the call, group nodes included.
	Nodes []graph.NodeID
	// Applied counts records bound to at least one node.
	Applied int
	// Missed lists the labels of records that resolved to no node.
	Missed []string
	// Failed lists the labels of records whose changes were rolled back.
	Failed []string
}

// target is one record staged for attachment.
type target struct {
	ref     graph.RecordRef
	rec     *record.Record
	sources []*record.Record
	nodes   []graph.NodeID
}

// Project binds records to the nodes their identifiers resolve to under key.
//
// Records that resolve to no node are skipped and listed in Result.Missed.
// Each record's changes are staged on the arena journal and checked against
// the group invariants; a record that fails is rolled back without touching
// the others, and its error is part of the joined error returned.
// Projecting the same records under the same key again changes nothing.
//
// A collection of analyte modifications (records carrying an analyte id) is
// shown as boxed labels under BoxPrefix instead: nodes are neither bound nor
// split, and each node lists one colored box per analyte.
func (p *Projector) Project(ctx context.Context, records []*record.Record, key ProjectionKey) (*Result, error) {
	if p.mergeType == signal.AskUser {
		return nil, sigerr.New(sigerr.CodeUnresolvedMergeType,
			"merge type must be chosen before projecting", "key", key.String())
	}
	if key.Type == signal.AnyType {
		return nil, sigerr.New(sigerr.CodeUnsupportedSignalType,
			"a layer needs a concrete signal type", "key", key.String())
	}

	res := &Result{Key: key}
	var targets []target
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref := graph.RecordRef{Pos: i, Label: r.UniqueLabel()}
		nodes, err := p.lookup(ctx, r)
		if err != nil {
			p.logger.Debug("lookup miss", "record", ref.Label, "key", key.String(), "error", err)
			res.Missed = append(res.Missed, ref.Label)
			continue
		}
		targets = append(targets, target{ref: ref, rec: r, nodes: nodes})
	}

	l := p.layers[key]
	if l == nil {
		l = &layer{
			records: make(map[graph.RecordRef]*record.Record),
			sources: make(map[graph.RecordRef][]*record.Record),
			boxed:   isBoxed(records),
			boxes:   make(map[graph.NodeID]map[graph.RecordRef]*record.Record),
		}
	}
	l.recolorer = p.layerRecolorer(records, key)

	if p.pathwayCentered && !l.boxed {
		var err error
		if targets, err = p.centerOnNodes(targets); err != nil {
			return nil, err
		}
	}

	var errs []error
	if l.boxed {
		p.attachBoxes(l, targets, res)
		targets = nil
	}
	guard := newSplitGuard()
	for _, tg := range targets {
		if err := p.applyRecord(key, tg, guard); err != nil {
			p.logger.Warn("record rolled back", "record", tg.ref.Label, "key", key.String(), "error", err)
			res.Failed = append(res.Failed, tg.ref.Label)
			errs = append(errs, fmt.Errorf("record %q: %w", tg.ref.Label, err))
			continue
		}
		l.records[tg.ref] = tg.rec
		if len(tg.sources) > 1 {
			l.sources[tg.ref] = tg.sources
		}
		res.Applied++
	}

	if len(l.records) > 0 {
		p.layers[key] = l
		if err := p.paint(key, l); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.syncBoxes(); err != nil {
		errs = append(errs, err)
	}
	res.Nodes = p.NodesFor(key)

	p.logger.Info("projection applied",
		"key", key.String(),
		"applied", res.Applied,
		"missed", len(res.Missed),
		"failed", len(res.Failed),
		"nodes", len(res.Nodes))
	return res, errors.Join(errs...)
}

// lookup resolves r to the existing nodes its identifier maps to.
func (p *Projector) lookup(ctx context.Context, r *record.Record) ([]graph.NodeID, error) {
	id := IdentifierFor(r)
	ctx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	ids, err := p.resolver.IdentifierToNodes(ctx, id)
	if err != nil {
		return nil, sigerr.New(sigerr.CodeLookupMiss, err.Error(), "identifier", id.String())
	}
	seen := make(map[graph.NodeID]bool, len(ids))
	var out []graph.NodeID
	for _, n := range ids {
		if seen[n] || !p.arena.Has(n) {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, sigerr.New(sigerr.CodeLookupMiss, "no node for identifier", "identifier", id.String())
	}
	return out, nil
}

// centerOnNodes regroups targets per node, merging all records that share a
// node into one.
func (p *Projector) centerOnNodes(targets []target) ([]target, error) {
	byNode := make(map[graph.NodeID][]target)
	var order []graph.NodeID
	for _, tg := range targets {
		for _, n := range tg.nodes {
			if _, ok := byNode[n]; !ok {
				order = append(order, n)
			}
			byNode[n] = append(byNode[n], tg)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]target, 0, len(order))
	for _, n := range order {
		group := byNode[n]
		if len(group) == 1 {
			out = append(out, target{ref: group[0].ref, rec: group[0].rec, nodes: []graph.NodeID{n}})
			continue
		}
		recs := make([]*record.Record, len(group))
		for i, tg := range group {
			recs[i] = tg.rec
		}
		merged, err := aggregate.Merge(recs, p.mergeType)
		if err != nil {
			return nil, fmt.Errorf("merge records on node %d: %w", n, err)
		}
		out = append(out, target{
			ref:     graph.RecordRef{Pos: group[0].ref.Pos, Label: merged.UniqueLabel()},
			rec:     merged,
			sources: recs,
			nodes:   []graph.NodeID{n},
		})
	}
	return out, nil
}

// layerRecolorer fits the color range of non fold-change, non probability
// types to the projected values. For p/q-values it fits the size of scores
// above 1 to their 90% quantile.
func (p *Projector) layerRecolorer(records []*record.Record, key ProjectionKey) *recolor.Recolorer {
	if key.Type.IsProbability() {
		hi, err := aggregate.ScoreCeiling(records, key.Experiment, key.Type, scoreQuantile)
		if err != nil {
			return p.recolorer
		}
		return p.recolorer.WithScoreMax(hi)
	}
	if key.Type == signal.FoldChange {
		return p.recolorer
	}
	lo, hi, err := aggregate.MinMaxQuantile(records, key.Experiment, key.Type, p.rangeQuantile)
	if err != nil || lo >= hi {
		return p.recolorer
	}
	return p.recolorer.WithRange(lo, hi)
}

// applyRecord attaches one record to all its nodes as a single journaled step.
func (p *Projector) applyRecord(key ProjectionKey, tg target, guard *splitGuard) error {
	if err := p.arena.Begin(); err != nil {
		return err
	}
	fail := func(err error) error {
		groups := p.arena.Touched()
		if rbErr := p.arena.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		guard.Forget(groups)
		return err
	}
	for _, n := range tg.nodes {
		if err := p.attach(n, key, tg.ref, tg.rec, guard); err != nil {
			return fail(err)
		}
	}
	if err := p.verifyNodes(p.arena.Touched()); err != nil {
		return fail(err)
	}
	return p.arena.Commit()
}

// NodesFor returns the nodes carrying key: bound simple nodes, copies, the
// groups holding those copies, and nodes showing the layer's boxes.
func (p *Projector) NodesFor(key ProjectionKey) []graph.NodeID {
	seen := make(map[graph.NodeID]bool)
	for _, n := range p.arena.Nodes() {
		if n.BelongsTo == nil || *n.BelongsTo != key {
			continue
		}
		seen[n.ID] = true
		if n.IsCopy && n.Parent != 0 {
			seen[n.Parent] = true
		}
	}
	if l, ok := p.layers[key]; ok && l.boxed {
		for _, n := range l.boxedNodes() {
			seen[n] = true
		}
	}
	out := make([]graph.NodeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
