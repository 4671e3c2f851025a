// Package record defines the named measurement bundle (a name, its signals and
// typed side data) that aggregation and projection operate on.
package record

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/sigmap/internal/signal"
)

// Record is a named entity holding signals and side data.
//
// Several signals for the same (experiment, type) are permitted; callers that
// need a single latest value should use MergedValue.
type Record struct {
	Name    string
	Signals []signal.Signal
	Data    map[string]Value
	Ext     Extension
}

// New creates a record without an extension.
func New(name string) *Record {
	return &Record{Name: name}
}

// NewGene creates a record bound to a gene identifier.
func NewGene(name string, geneID int) *Record {
	return &Record{Name: name, Ext: GeneExt{GeneID: geneID}}
}

// GeneID returns the record's gene identifier, or 0 when it has none.
func (r *Record) GeneID() int {
	if ge, ok := r.Ext.(GeneExt); ok {
		return ge.GeneID
	}
	return 0
}

// AddSignal appends s unless an equal signal is already present.
func (r *Record) AddSignal(s signal.Signal) bool {
	for _, existing := range r.Signals {
		if existing.Equal(s) {
			return false
		}
	}
	r.Signals = append(r.Signals, s)
	return true
}

// AddSignals adds each signal in order, skipping duplicates.
func (r *Record) AddSignals(signals ...signal.Signal) {
	for _, s := range signals {
		r.AddSignal(s)
	}
}

// RemoveSignals removes every signal matching (experiment, t) and returns how
// many were removed.
func (r *Record) RemoveSignals(experiment string, t signal.Type) int {
	return r.removeWhere(func(s signal.Signal) bool {
		return s.Matches(experiment, t)
	})
}

// RemoveSignal removes signals matching (experiment, t) whose value equals
// value under policy.
func (r *Record) RemoveSignal(value float64, experiment string, t signal.Type, policy signal.ValuePolicy) int {
	return r.removeWhere(func(s signal.Signal) bool {
		return s.Matches(experiment, t) && policy.Same(s.Value, value)
	})
}

func (r *Record) removeWhere(match func(signal.Signal) bool) int {
	kept := r.Signals[:0]
	removed := 0
	for _, s := range r.Signals {
		if match(s) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.Signals = kept
	return removed
}

// Signal returns the first signal matching (experiment, t).
func (r *Record) Signal(experiment string, t signal.Type) (signal.Signal, bool) {
	for _, s := range r.Signals {
		if s.Matches(experiment, t) {
			return s, true
		}
	}
	return signal.Signal{}, false
}

// SignalsOf returns all signals matching (experiment, t) in insertion order.
func (r *Record) SignalsOf(experiment string, t signal.Type) []signal.Signal {
	var out []signal.Signal
	for _, s := range r.Signals {
		if s.Matches(experiment, t) {
			out = append(out, s)
		}
	}
	return out
}

// MergedValue collapses all signals matching (experiment, t) with m.
// Returns NaN when nothing matches.
func (r *Record) MergedValue(experiment string, t signal.Type, m signal.MergeType) (float64, error) {
	s, err := signal.MergeAll(r.SignalsOf(experiment, t), m)
	if err != nil {
		return 0, fmt.Errorf("record %q: %w", r.Name, err)
	}
	return s.Value, nil
}

// HasSignals reports whether the record carries any signal.
func (r *Record) HasSignals() bool {
	return len(r.Signals) > 0
}

// Experiments returns the distinct experiment names in first-seen order.
func (r *Record) Experiments() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.Signals {
		if !seen[s.Experiment] {
			seen[s.Experiment] = true
			out = append(out, s.Experiment)
		}
	}
	return out
}

// Set stores a side-data value.
func (r *Record) Set(key string, v Value) {
	if r.Data == nil {
		r.Data = make(map[string]Value)
	}
	r.Data[key] = v
}

// Get returns a side-data value.
func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.Data[key]
	return v, ok
}

// DataKeys returns the side-data keys in sorted order.
func (r *Record) DataKeys() []string {
	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UniqueLabel is the label shown on copy nodes and in annotations.
func (r *Record) UniqueLabel() string {
	if id := r.GeneID(); id > 0 && r.Name != fmt.Sprint(id) {
		return fmt.Sprintf("%s (%d)", r.Name, id)
	}
	return r.Name
}

// Identifier is the key gene-centering groups by: the gene identifier when
// known, the normalized name otherwise.
func (r *Record) Identifier() string {
	if id := r.GeneID(); id > 0 {
		return fmt.Sprintf("gene:%d", id)
	}
	return "name:" + NormalizeIdentifier(r.Name)
}

// Side-data keys marking a record as a modification of one analyte, such as a
// phosphorylation site of a protein.
const (
	AnalyteIDKey    = "analyte_id"
	AnalyteLabelKey = "analyte_label"
)

// Analyte returns the record's analyte identifier and short label. Both are
// empty for records that are not modifications.
func (r *Record) Analyte() (id, label string) {
	return r.text(AnalyteIDKey), r.text(AnalyteLabelKey)
}

func (r *Record) text(key string) string {
	switch v := r.Data[key].(type) {
	case Text:
		return string(v)
	case Opaque:
		return v.Key
	default:
		return ""
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := &Record{Name: r.Name}
	if r.Signals != nil {
		out.Signals = append([]signal.Signal(nil), r.Signals...)
	}
	if r.Data != nil {
		out.Data = maps.Clone(r.Data)
		for k, v := range out.Data {
			if n, ok := v.(Nested); ok && n.Record != nil {
				out.Data[k] = Nested{Record: n.Record.Clone()}
			}
		}
	}
	if r.Ext != nil {
		out.Ext = r.Ext.Clone()
	}
	return out
}

// NormalizeIdentifier trims and upper-cases a string identifier.
// A Caser is stateful, so one is built per call.
func NormalizeIdentifier(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}
