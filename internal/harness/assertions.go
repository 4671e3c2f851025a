package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/project"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Node     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Node != "" {
		fmt.Fprintf(&buf, " (node %s)", e.Node)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluateAssertions runs every assertion and returns the failure messages.
func (h *Harness) evaluateAssertions(assertions []Assertion, result *Result) []string {
	var errs []string
	for _, a := range assertions {
		if err := h.evaluate(a, result); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func (h *Harness) evaluate(a Assertion, result *Result) error {
	switch a.Type {
	case AssertRestored:
		if !result.Restored() {
			return &AssertionError{Type: a.Type, Expected: "final diagram equal to initial", Actual: "diagram differs"}
		}
		return nil
	case AssertInvariants:
		if err := h.projector.Verify(); err != nil {
			return &AssertionError{Type: a.Type, Expected: "no violations", Actual: err.Error()}
		}
		return nil
	case AssertNodeCount:
		if result.NodeCount != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprint(result.NodeCount)}
		}
		return nil
	case AssertLayers:
		keys := h.session.Ledger().Keys()
		if len(keys) != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprintf("%d %v", len(keys), keys)}
		}
		return nil
	}

	n, err := h.arena.Node(h.nodes[a.Node])
	if err != nil {
		return &AssertionError{Type: a.Type, Node: a.Node, Expected: "node present", Actual: err.Error()}
	}
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Node: a.Node, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertNodeKind:
		if n.Kind() != a.Kind {
			return fail(a.Kind, n.Kind())
		}
	case AssertChildCount:
		if n.ChildCount != a.Count {
			return fail(fmt.Sprint(a.Count), fmt.Sprint(n.ChildCount))
		}
	case AssertFill:
		if !strings.EqualFold(n.Visual.FillColor, a.Fill) {
			return fail(a.Fill, n.Visual.FillColor)
		}
	case AssertSummaryContains:
		got, ok := n.Annotations[project.SummaryPrefix+a.Key.String()]
		if !ok {
			return fail(fmt.Sprintf("summary for %s containing %q", a.Key, a.Contains), "no summary")
		}
		if !strings.Contains(got, a.Contains) {
			return fail(fmt.Sprintf("summary containing %q", a.Contains), fmt.Sprintf("%q", got))
		}
	case AssertBoxesContains:
		got, ok := n.Annotations[project.BoxPrefix+a.Key.String()]
		if !ok {
			return fail(fmt.Sprintf("boxes for %s containing %q", a.Key, a.Contains), "no boxes")
		}
		if !strings.Contains(got, a.Contains) {
			return fail(fmt.Sprintf("boxes containing %q", a.Contains), fmt.Sprintf("%q", got))
		}
	case AssertBound:
		if !h.carries(n, a) {
			return fail(fmt.Sprintf("record %q bound", a.Record), describeBindings(h.arena, n))
		}
	}
	return nil
}

// carries reports whether n, or one of its copies, is bound to a.Record. A
// zero key matches any layer.
func (h *Harness) carries(n graph.Node, a Assertion) bool {
	match := func(m graph.Node) bool {
		if m.Bound == nil || m.BelongsTo == nil || m.Bound.Label != a.Record {
			return false
		}
		return a.Key == (graph.ProjectionKey{}) || *m.BelongsTo == a.Key
	}
	if match(n) {
		return true
	}
	for _, c := range h.arena.Children(n.ID) {
		cn, err := h.arena.Node(c)
		if err == nil && match(cn) {
			return true
		}
	}
	return false
}

func describeBindings(a *graph.Arena, n graph.Node) string {
	var parts []string
	add := func(m graph.Node) {
		if m.Bound != nil && m.BelongsTo != nil {
			parts = append(parts, fmt.Sprintf("%s@%s", m.Bound.Label, m.BelongsTo))
		}
	}
	add(n)
	for _, c := range a.Children(n.ID) {
		if cn, err := a.Node(c); err == nil {
			add(cn)
		}
	}
	if len(parts) == 0 {
		return "no bindings"
	}
	return strings.Join(parts, ", ")
}
