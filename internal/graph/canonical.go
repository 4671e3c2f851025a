package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Snapshot serializes the arena as canonical, indented JSON: object keys are
// sorted, strings are NFC-normalized and floats use the shortest exact form.
// Two arenas with the same tracked state produce identical bytes.
func (a *Arena) Snapshot() ([]byte, error) {
	nodes := make([]any, 0, len(a.nodes))
	for _, n := range a.Nodes() {
		nodes = append(nodes, nodeMap(n))
	}
	edges := make([]any, 0, len(a.edges))
	for _, e := range a.edges {
		edges = append(edges, map[string]any{"from": int(e.From), "to": int(e.To)})
	}
	compact, err := MarshalCanonical(map[string]any{"nodes": nodes, "edges": edges})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent snapshot: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// StateOf returns the tracked attributes of a node (visual, hierarchy,
// binding, annotations) in canonical form, for equality checks.
func (a *Arena) StateOf(id NodeID) ([]byte, error) {
	n, err := a.Node(id)
	if err != nil {
		return nil, err
	}
	m := nodeMap(n)
	children := a.Children(id)
	ids := make([]any, len(children))
	for i, c := range children {
		ids[i] = int(c)
	}
	m["children"] = ids
	return MarshalCanonical(m)
}

func nodeMap(n Node) map[string]any {
	m := map[string]any{
		"id":          int(n.ID),
		"kind":        n.Kind(),
		"template":    n.Template,
		"parent":      int(n.Parent),
		"is_copy":     n.IsCopy,
		"child_count": n.ChildCount,
		"visual":      visualMap(n.Visual),
	}
	if n.BelongsTo != nil {
		m["belongs_to"] = n.BelongsTo.String()
	}
	if n.Bound != nil {
		m["bound"] = map[string]any{"pos": n.Bound.Pos, "label": n.Bound.Label}
	}
	if len(n.Annotations) > 0 {
		ann := make(map[string]any, len(n.Annotations))
		for k, v := range n.Annotations {
			ann[k] = v
		}
		m["annotations"] = ann
	}
	return m
}

func visualMap(v Visual) map[string]any {
	return map[string]any{
		"fill_color": v.FillColor,
		"label":      v.Label,
		"width":      v.Width,
		"height":     v.Height,
		"x":          v.X,
		"y":          v.Y,
	}
}

// MarshalCanonical encodes maps, slices, strings, ints, floats and bools with
// sorted keys and NFC-normalized strings. NaN and infinities are rejected.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return writeCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("canonical JSON cannot encode %v", val)
		}
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
