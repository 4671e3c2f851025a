// Package aggregate merges and groups Records. Every function here is pure and
// safe to call from several goroutines on independent inputs.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
	"github.com/roach88/sigmap/internal/sigerr"
)

// NameSeparator joins names and strings of merged records.
const NameSeparator = ", "

// ErrEmptyInput is returned when Merge receives no records.
var ErrEmptyInput = errors.New("aggregate: no records to merge")

// Merge collapses records into one: names are set-joined, signals merged per
// (experiment, type), side data merged key by key, and finally the extension
// hook runs. A single record is returned as a clone.
func Merge(records []*record.Record, m signal.MergeType) (*record.Record, error) {
	switch len(records) {
	case 0:
		return nil, ErrEmptyInput
	case 1:
		return records[0].Clone(), nil
	}

	out := &record.Record{Name: joinNames(records)}

	var all []signal.Signal
	for _, r := range records {
		all = append(all, r.Signals...)
	}
	merged, err := signal.MergeSignals(all, m)
	if err != nil {
		return nil, fmt.Errorf("merge %q signals: %w", out.Name, err)
	}
	out.Signals = merged

	for _, key := range dataKeys(records) {
		var values []record.Value
		for _, r := range records {
			if v, ok := r.Data[key]; ok {
				values = append(values, v)
			}
		}
		v, err := mergeValues(values, m)
		if err != nil {
			return nil, fmt.Errorf("merge %q data %q: %w", out.Name, key, err)
		}
		out.Set(key, v)
	}

	exts := make([]record.Extension, len(records))
	for i, r := range records {
		exts[i] = r.Ext
	}
	out.Ext = record.MergeExtensions(exts)
	return out, nil
}

func joinNames(records []*record.Record) string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if !seen[r.Name] {
			seen[r.Name] = true
			names = append(names, r.Name)
		}
	}
	return strings.Join(names, NameSeparator)
}

func dataKeys(records []*record.Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range records {
		for k := range r.Data {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// mergeValues is the total dispatch over side-data kinds. The kind of the
// first value selects the rule; every other value must be compatible with it.
func mergeValues(values []record.Value, m signal.MergeType) (record.Value, error) {
	if len(values) == 1 {
		return values[0], nil
	}

	switch values[0].(type) {
	case record.Nested:
		nested := make([]*record.Record, 0, len(values))
		for _, v := range values {
			n, ok := v.(record.Nested)
			if !ok || n.Record == nil {
				return nil, incompatible(values)
			}
			nested = append(nested, n.Record)
		}
		r, err := Merge(nested, m)
		if err != nil {
			return nil, err
		}
		return record.Nested{Record: r}, nil

	case record.Signals:
		var all []signal.Signal
		for _, v := range values {
			s, ok := v.(record.Signals)
			if !ok {
				return nil, incompatible(values)
			}
			all = append(all, s...)
		}
		merged, err := signal.MergeSignals(all, m)
		if err != nil {
			return nil, err
		}
		return record.Signals(merged), nil

	case record.Ratio:
		as := make([]float64, 0, len(values))
		bs := make([]float64, 0, len(values))
		for _, v := range values {
			r, ok := v.(record.Ratio)
			if !ok {
				return nil, incompatible(values)
			}
			as = append(as, r.A)
			bs = append(bs, r.B)
		}
		a, err := signal.Calculate(m, as)
		if err != nil {
			return nil, err
		}
		b, err := signal.Calculate(m, bs)
		if err != nil {
			return nil, err
		}
		// Ratio components are counts.
		return record.Ratio{A: math.Round(a), B: math.Round(b)}, nil

	case record.Number:
		nums := make([]float64, 0, len(values))
		for _, v := range values {
			n, ok := v.(record.Number)
			if !ok {
				return nil, incompatible(values)
			}
			nums = append(nums, float64(n))
		}
		v, err := signal.Calculate(m, nums)
		if err != nil {
			return nil, err
		}
		return record.Number(v), nil

	case record.Bool:
		out := true
		for _, v := range values {
			b, ok := v.(record.Bool)
			if !ok {
				return nil, incompatible(values)
			}
			out = out && bool(b)
		}
		return record.Bool(out), nil

	case record.Text, record.Opaque, record.Set:
		return mergeIdentifiers(values)

	default:
		return nil, incompatible(values)
	}
}

// mergeIdentifiers de-duplicates strings and opaque identifiers. Homogeneous
// text is joined; anything mixed is returned as a Set.
func mergeIdentifiers(values []record.Value) (record.Value, error) {
	seen := make(map[string]bool)
	var (
		set      record.Set
		onlyText = true
	)
	add := func(v record.Value) {
		key := record.Kind(v) + ":" + record.Display(v)
		if seen[key] {
			return
		}
		seen[key] = true
		set = append(set, v)
	}
	for _, v := range values {
		switch val := v.(type) {
		case record.Text:
			add(val)
		case record.Opaque:
			onlyText = false
			add(val)
		case record.Set:
			onlyText = false
			for _, e := range val {
				add(e)
			}
		default:
			return nil, incompatible(values)
		}
	}
	if onlyText {
		parts := make([]string, len(set))
		for i, v := range set {
			parts[i] = string(v.(record.Text))
		}
		return record.Text(strings.Join(parts, NameSeparator)), nil
	}
	return set, nil
}

func incompatible(values []record.Value) error {
	kinds := make([]string, 0, len(values))
	seen := make(map[string]bool)
	for _, v := range values {
		k := record.Kind(v)
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return sigerr.New(sigerr.CodeIncompatibleMergeInput,
		"cannot merge side-data values", "kinds", strings.Join(kinds, "+"))
}
