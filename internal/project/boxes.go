package project

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/recolor"
	"github.com/roach88/sigmap/internal/record"
)

// isBoxed reports whether records are analyte modifications, which are shown
// as boxed labels stacked below their nodes instead of node colors.
func isBoxed(records []*record.Record) bool {
	for _, r := range records {
		if id, _ := r.Analyte(); id != "" {
			return true
		}
	}
	return false
}

// attachBoxes records each target under every node it resolves to. Boxed
// layers never bind or split nodes.
func (p *Projector) attachBoxes(l *layer, targets []target, res *Result) {
	for _, tg := range targets {
		for _, n := range tg.nodes {
			if l.boxes[n] == nil {
				l.boxes[n] = make(map[graph.RecordRef]*record.Record)
			}
			l.boxes[n][tg.ref] = tg.rec
		}
		l.records[tg.ref] = tg.rec
		res.Applied++
	}
}

// renderBoxes lays out the boxes of one node, one "label #rrggbb" line per
// box, top to bottom. Records are ordered by unique label, records without a
// value are skipped and each analyte is shown once.
func (p *Projector) renderBoxes(key ProjectionKey, l *layer, recs map[graph.RecordRef]*record.Record) (string, error) {
	refs := make([]graph.RecordRef, 0, len(recs))
	for ref := range recs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Label != refs[j].Label {
			return refs[i].Label < refs[j].Label
		}
		return refs[i].Pos < refs[j].Pos
	})

	seen := make(map[string]bool)
	var lines []string
	for _, ref := range refs {
		rec := recs[ref]
		v, err := rec.MergedValue(key.Experiment, key.Type, p.mergeType)
		if err != nil {
			return "", err
		}
		if math.IsNaN(v) {
			continue
		}
		label := ref.Label
		id, short := rec.Analyte()
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		if short != "" {
			label = short
		}
		lines = append(lines, fmt.Sprintf("%s %s", label, recolor.Hex(l.recolorer.GetColor(v, key.Type))))
	}
	return strings.Join(lines, "\n"), nil
}

// syncBoxes writes the boxes of every active boxed layer onto their nodes and
// clears box annotations that no active layer accounts for.
func (p *Projector) syncBoxes() error {
	want := make(map[graph.NodeID]map[string]string)
	for key, l := range p.layers {
		if !l.boxed {
			continue
		}
		for n, recs := range l.boxes {
			text, err := p.renderBoxes(key, l, recs)
			if err != nil {
				return fmt.Errorf("boxes for node %d: %w", n, err)
			}
			if text == "" {
				continue
			}
			if want[n] == nil {
				want[n] = make(map[string]string)
			}
			want[n][BoxPrefix+key.String()] = text
		}
	}

	for _, n := range p.arena.Nodes() {
		for k := range n.Annotations {
			if strings.HasPrefix(k, BoxPrefix) && want[n.ID][k] == "" {
				if err := p.arena.SetAnnotation(n.ID, k, ""); err != nil {
					return err
				}
			}
		}
		for k, v := range want[n.ID] {
			if n.Annotations[k] == v {
				continue
			}
			if err := p.arena.SetAnnotation(n.ID, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// boxedNodes returns the nodes the layer shows boxes on, in id order.
func (l *layer) boxedNodes() []graph.NodeID {
	out := make([]graph.NodeID, 0, len(l.boxes))
	for n := range l.boxes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
