package project

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/recolor"
	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
)

// entry is one line of a summary annotation.
type entry struct {
	label string
	value float64
}

// paint colors every node carrying key and writes its summary and size
// annotations.
func (p *Projector) paint(key ProjectionKey, l *layer) error {
	summaryKey := SummaryPrefix + key.String()
	sizeKey := SizePrefix + key.String()

	groups := make(map[graph.NodeID][]entry)
	for _, n := range p.arena.Nodes() {
		if n.Group || n.BelongsTo == nil || *n.BelongsTo != key {
			continue
		}
		rec, ok := l.records[*n.Bound]
		if !ok {
			p.logger.Warn("bound record missing from layer", "node", n.ID, "record", n.Bound.Label)
			continue
		}
		v, err := rec.MergedValue(key.Experiment, key.Type, p.mergeType)
		if err != nil {
			return fmt.Errorf("paint node %d: %w", n.ID, err)
		}

		vis := n.Visual
		vis.FillColor = recolor.Hex(l.recolorer.GetColor(v, key.Type))
		if err := p.arena.SetVisual(n.ID, vis); err != nil {
			return err
		}

		summary, err := p.recordSummary(l, *n.Bound, rec, key, v)
		if err != nil {
			return err
		}
		if err := p.arena.SetAnnotation(n.ID, summaryKey, summary); err != nil {
			return err
		}
		size := strconv.FormatFloat(l.recolorer.SizeFraction(v, key.Type), 'f', 3, 64)
		if err := p.arena.SetAnnotation(n.ID, sizeKey, size); err != nil {
			return err
		}

		if n.IsCopy && n.Parent != 0 {
			groups[n.Parent] = append(groups[n.Parent], entry{label: n.Bound.Label, value: v})
		}
	}

	ids := make([]graph.NodeID, 0, len(groups))
	for g := range groups {
		ids = append(ids, g)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, g := range ids {
		summary, err := p.summarize(groups[g], key.Type)
		if err != nil {
			return err
		}
		if err := p.arena.SetAnnotation(g, summaryKey, summary); err != nil {
			return err
		}
	}
	return nil
}

// recordSummary describes the value a single node shows. A pathway-centered
// node built from several records lists them under the merged value.
func (p *Projector) recordSummary(l *layer, ref graph.RecordRef, rec *record.Record, key ProjectionKey, v float64) (string, error) {
	sources := l.sources[ref]
	if len(sources) < 2 {
		return fmt.Sprintf("%s: %s", ref.Label, signal.FormatValue(v)), nil
	}
	entries := make([]entry, len(sources))
	for i, src := range sources {
		sv, err := src.MergedValue(key.Experiment, key.Type, p.mergeType)
		if err != nil {
			return "", err
		}
		entries[i] = entry{label: src.UniqueLabel(), value: sv}
	}
	return p.summarize(entries, key.Type)
}

// summarize renders entries most significant first, headed by their merged
// value and truncated to the annotation limit.
func (p *Projector) summarize(entries []entry, t signal.Type) (string, error) {
	sorted := append([]entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return signal.MoreSignificant(sorted[i].value, sorted[j].value, t)
	})

	var lines []string
	if len(sorted) > 1 {
		m := signal.ResolveAutomatic(p.mergeType, t)
		var values []float64
		for _, e := range sorted {
			if !math.IsNaN(e.value) {
				values = append(values, e.value)
			}
		}
		merged, err := signal.Calculate(m, values)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("#%s: %s", m, signal.FormatValue(merged)))
	}
	shown := min(len(sorted), p.annotationLimit)
	for _, e := range sorted[:shown] {
		lines = append(lines, fmt.Sprintf("%s: %s", e.label, signal.FormatValue(e.value)))
	}
	if rest := len(sorted) - shown; rest > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more.", rest))
	}
	return strings.Join(lines, "\n"), nil
}
