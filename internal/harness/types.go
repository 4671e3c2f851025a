package harness

import (
	"github.com/roach88/sigmap/internal/engine"
	"github.com/roach88/sigmap/internal/graph"
)

// TraceEntry is the observable outcome of one operation.
type TraceEntry struct {
	Seq int64  `json:"seq"`
	ID  string `json:"id"`
	Op  string `json:"op"`
	Key string `json:"key,omitempty"`

	// Action is set for toggles: projected or removed.
	Action string `json:"action,omitempty"`

	// Project outcome.
	Projected bool           `json:"-"`
	Applied   int            `json:"applied,omitempty"`
	Missed    []string       `json:"missed,omitempty"`
	Failed    []string       `json:"failed,omitempty"`
	Nodes     []graph.NodeID `json:"nodes,omitempty"`

	// Remove outcome.
	Removal  bool           `json:"-"`
	Stale    bool           `json:"stale,omitempty"`
	Removed  []graph.NodeID `json:"removed,omitempty"`
	Merged   []graph.NodeID `json:"merged,omitempty"`
	Restored []graph.NodeID `json:"restored,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEntry `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Initial and Final are arena snapshots before the first and after the
	// last operation.
	Initial []byte `json:"-"`
	Final   []byte `json:"-"`

	// NodeCount is the number of nodes in the final diagram.
	NodeCount int `json:"node_count"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Restored reports whether the final diagram equals the initial one.
func (r *Result) Restored() bool {
	return string(r.Initial) == string(r.Final)
}

// traceEntry converts a session result into a trace entry.
func traceEntry(step OpStep, res engine.OpResult) TraceEntry {
	e := TraceEntry{Seq: res.Seq, ID: res.ID, Op: step.Op}
	switch engine.OpKind(step.Op) {
	case engine.OpToggle, engine.OpProject, engine.OpRemove:
		e.Key = step.Key.String()
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}

	pr, rr := res.Project, res.Remove
	if res.Toggle != nil {
		e.Action = string(res.Toggle.Action)
		pr, rr = res.Toggle.Project, res.Toggle.Remove
	}
	if pr != nil {
		e.Projected = true
		e.Applied = pr.Applied
		e.Missed = pr.Missed
		e.Failed = pr.Failed
		e.Nodes = pr.Nodes
	}
	if rr != nil {
		e.Removal = true
		e.Stale = rr.Stale
		e.Removed = rr.Removed
		e.Merged = rr.Merged
		e.Restored = rr.Restored
	}
	return e
}

// canonicalMap renders e for canonical JSON. Outcome fields are present
// whenever their half of the result is, even when empty.
func (e TraceEntry) canonicalMap() map[string]any {
	m := map[string]any{
		"seq": e.Seq,
		"id":  e.ID,
		"op":  e.Op,
	}
	if e.Key != "" {
		m["key"] = e.Key
	}
	if e.Action != "" {
		m["action"] = e.Action
	}
	if e.Projected {
		m["applied"] = e.Applied
		m["missed"] = stringList(e.Missed)
		m["failed"] = stringList(e.Failed)
		m["nodes"] = idList(e.Nodes)
	}
	if e.Removal {
		m["stale"] = e.Stale
		m["removed"] = idList(e.Removed)
		m["merged"] = idList(e.Merged)
		m["restored"] = idList(e.Restored)
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func idList(ids []graph.NodeID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
