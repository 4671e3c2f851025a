// Package ledger tracks which projection layers are active and toggles them.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/sigmap/internal/project"
	"github.com/roach88/sigmap/internal/record"
)

// Action is what a Toggle did.
type Action string

const (
	ActionProjected Action = "projected"
	ActionRemoved   Action = "removed"
)

// ToggleResult reports one Toggle call. Exactly one of Project and Remove is
// set, matching Action.
type ToggleResult struct {
	Key     project.ProjectionKey
	Action  Action
	Project *project.Result
	Remove  *project.RemoveResult
}

// Ledger is the set of active projection keys over one projector.
//
// Thread-safety: none; driven by the session goroutine.
type Ledger struct {
	projector *project.Projector
	keys      map[project.ProjectionKey]bool
}

// New creates an empty ledger.
func New(p *project.Projector) *Ledger {
	return &Ledger{projector: p, keys: make(map[project.ProjectionKey]bool)}
}

// Toggle projects records under key when key is inactive and removes the
// layer otherwise.
func (l *Ledger) Toggle(ctx context.Context, records []*record.Record, key project.ProjectionKey) (*ToggleResult, error) {
	if l.keys[key] {
		rr, err := l.Remove(ctx, key)
		return &ToggleResult{Key: key, Action: ActionRemoved, Remove: rr}, err
	}
	pr, err := l.Project(ctx, records, key)
	return &ToggleResult{Key: key, Action: ActionProjected, Project: pr}, err
}

// Project applies key and marks it active when at least one record landed.
func (l *Ledger) Project(ctx context.Context, records []*record.Record, key project.ProjectionKey) (*project.Result, error) {
	res, err := l.projector.Project(ctx, records, key)
	if l.projector.IsProjected(key) {
		l.keys[key] = true
	}
	return res, err
}

// Remove withdraws key. Removing an inactive key reports a stale result.
func (l *Ledger) Remove(ctx context.Context, key project.ProjectionKey) (*project.RemoveResult, error) {
	res, err := l.projector.Remove(ctx, key)
	if res != nil {
		delete(l.keys, key)
	}
	return res, err
}

// IsProjected reports whether key is active.
func (l *Ledger) IsProjected(key project.ProjectionKey) bool {
	return l.keys[key]
}

// Keys returns the active keys in a stable order.
func (l *Ledger) Keys() []project.ProjectionKey {
	out := make([]project.ProjectionKey, 0, len(l.keys))
	for k := range l.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// RemoveAll withdraws every active layer in reverse key order.
func (l *Ledger) RemoveAll(ctx context.Context) error {
	keys := l.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		if _, err := l.Remove(ctx, keys[i]); err != nil {
			return fmt.Errorf("remove %s: %w", keys[i], err)
		}
	}
	return nil
}
