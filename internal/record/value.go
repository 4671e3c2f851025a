package record

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/sigmap/internal/signal"
	"github.com/roach88/sigmap/internal/sigerr"
)

// Value is a sealed interface over the side-data kinds a Record can carry.
// Only Number, Text, Bool, Ratio, Signals, Nested, Opaque and Set implement it,
// which keeps the merge dispatch exhaustive.
type Value interface {
	recordValue() // Sealed
}

// Number is a plain numeric value, merged with signal.Calculate.
type Number float64

func (Number) recordValue() {}

// Text is a string value, merged into a de-duplicated ", "-joined string.
type Text string

func (Text) recordValue() {}

// Bool is merged with logical AND.
type Bool bool

func (Bool) recordValue() {}

// Ratio is a pair of counts whose value is A/B (0 when B is 0).
type Ratio struct {
	A float64
	B float64
}

func (Ratio) recordValue() {}

// Value returns A/B, or 0 when B is 0.
func (r Ratio) Value() float64 {
	if r.B == 0 {
		return 0
	}
	return r.A / r.B
}

func (r Ratio) String() string {
	return fmt.Sprintf("%s/%s", signal.FormatValue(r.A), signal.FormatValue(r.B))
}

// Signals is a collection of signals stored as side data.
type Signals []signal.Signal

func (Signals) recordValue() {}

// Nested is a record stored as side data, merged recursively.
type Nested struct {
	Record *Record
}

func (Nested) recordValue() {}

// Opaque is an identifier that is only ever compared, never combined.
type Opaque struct {
	Key string
}

func (Opaque) recordValue() {}

// Set is the de-duplicated result of merging identifiers of mixed kinds.
// Elements are Text or Opaque.
type Set []Value

func (Set) recordValue() {}

// Kind names the variant of v for diagnostics.
func Kind(v Value) string {
	switch v.(type) {
	case Number:
		return "number"
	case Text:
		return "text"
	case Bool:
		return "bool"
	case Ratio:
		return "ratio"
	case Signals:
		return "signals"
	case Nested:
		return "record"
	case Opaque:
		return "opaque"
	case Set:
		return "set"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Display renders v for annotations and CLI output.
func Display(v Value) string {
	switch val := v.(type) {
	case Number:
		return signal.FormatValue(float64(val))
	case Text:
		return string(val)
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case Ratio:
		return val.String()
	case Signals:
		parts := make([]string, len(val))
		for i, s := range val {
			parts[i] = s.String()
		}
		return strings.Join(parts, "; ")
	case Nested:
		if val.Record == nil {
			return ""
		}
		return val.Record.Name
	case Opaque:
		return val.Key
	case Set:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = Display(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FromAny converts a value decoded from YAML or JSON into a Value.
//
// Supported shapes: numbers, strings, booleans, {a, b} maps (Ratio),
// {opaque: key} maps (Opaque), {name, signals, data} maps (Nested) and lists
// of strings (Set). Everything else is rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case float64:
		return Number(val), nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case []any:
		set := make(Set, 0, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, sigerr.New(sigerr.CodeIncompatibleMergeInput,
					"set elements must be strings", "index", fmt.Sprint(i), "type", fmt.Sprintf("%T", elem))
			}
			set = append(set, Text(s))
		}
		return set, nil
	case map[string]any:
		return fromMap(val)
	default:
		return nil, sigerr.New(sigerr.CodeIncompatibleMergeInput,
			"unsupported side-data value", "type", fmt.Sprintf("%T", v))
	}
}

func fromMap(m map[string]any) (Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	shape := strings.Join(keys, ",")

	switch {
	case shape == "a,b":
		a, okA := toFloat(m["a"])
		b, okB := toFloat(m["b"])
		if !okA || !okB {
			return nil, sigerr.New(sigerr.CodeIncompatibleMergeInput, "ratio components must be numeric")
		}
		return Ratio{A: a, B: b}, nil
	case shape == "opaque":
		key, ok := m["opaque"].(string)
		if !ok {
			return nil, sigerr.New(sigerr.CodeIncompatibleMergeInput, "opaque key must be a string")
		}
		return Opaque{Key: key}, nil
	case m["name"] != nil:
		r, err := recordFromMap(m)
		if err != nil {
			return nil, err
		}
		return Nested{Record: r}, nil
	default:
		return nil, sigerr.New(sigerr.CodeIncompatibleMergeInput,
			"unrecognized side-data object", "keys", shape)
	}
}

func recordFromMap(m map[string]any) (*Record, error) {
	name, ok := m["name"].(string)
	if !ok {
		return nil, sigerr.New(sigerr.CodeIncompatibleMergeInput, "nested record name must be a string")
	}
	r := New(name)
	if raw, ok := m["data"].(map[string]any); ok {
		for k, dv := range raw {
			v, err := FromAny(dv)
			if err != nil {
				return nil, fmt.Errorf("nested %q data %q: %w", name, k, err)
			}
			r.Set(k, v)
		}
	}
	return r, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
