package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/ledger"
	"github.com/roach88/sigmap/internal/project"
	"github.com/roach88/sigmap/internal/record"
)

// OpKind names a session operation.
type OpKind string

const (
	OpToggle   OpKind = "toggle"
	OpProject  OpKind = "project"
	OpRemove   OpKind = "remove"
	OpVerify   OpKind = "verify"
	OpSnapshot OpKind = "snapshot"
)

// Op is one unit of work for the Run loop. Records are read by toggle and
// project only.
type Op struct {
	Kind    OpKind
	Key     project.ProjectionKey
	Records []*record.Record
}

// OpResult is the outcome of one operation. Exactly the field matching Kind
// is set on success.
type OpResult struct {
	ID   string
	Seq  int64
	Kind OpKind

	Toggle   *ledger.ToggleResult
	Project  *project.Result
	Remove   *project.RemoveResult
	Snapshot []byte

	Err error
}

// Session applies operations to one diagram from a single goroutine.
//
// Thread-safety model:
//   - Submit, Do, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Arena, Ledger: only safe while Run is not running
type Session struct {
	arena     *graph.Arena
	projector *project.Projector
	ledger    *ledger.Ledger
	queue     *opQueue
	clock     *Clock
	ids       OpIDGenerator
	logger    *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithOpIDs sets the operation id generator. Default: UUIDv7Generator.
func WithOpIDs(g OpIDGenerator) SessionOption {
	return func(s *Session) { s.ids = g }
}

// WithClock sets the logical clock, e.g. to resume numbering.
func WithClock(c *Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session over the projector's arena.
func NewSession(p *project.Projector, opts ...SessionOption) *Session {
	s := &Session{
		arena:     p.Arena(),
		projector: p,
		ledger:    ledger.New(p),
		queue:     newOpQueue(),
		clock:     NewClock(),
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arena returns the session's arena.
func (s *Session) Arena() *graph.Arena {
	return s.arena
}

// Ledger returns the session's ledger of active layers.
func (s *Session) Ledger() *ledger.Ledger {
	return s.ledger
}

// Clock returns the session's logical clock.
func (s *Session) Clock() *Clock {
	return s.clock
}

// Submit enqueues op and returns the channel its result will arrive on.
func (s *Session) Submit(op Op) (string, <-chan OpResult, error) {
	id := s.ids.Generate()
	reply := make(chan OpResult, 1)
	if !s.queue.Enqueue(request{id: id, op: op, reply: reply}) {
		return "", nil, ErrSessionClosed
	}
	return id, reply, nil
}

// Do submits op and waits for its result. The operation's own failure is
// carried in OpResult.Err; the returned error covers submission and ctx.
func (s *Session) Do(ctx context.Context, op Op) (OpResult, error) {
	_, reply, err := s.Submit(op)
	if err != nil {
		return OpResult{}, err
	}
	select {
	case <-ctx.Done():
		return OpResult{}, ctx.Err()
	case res, ok := <-reply:
		if !ok {
			return OpResult{}, ErrSessionClosed
		}
		return res, nil
	}
}

// Run is the single-writer loop. It blocks until ctx is cancelled or Stop is
// called; requests still queued at that point get ErrSessionClosed.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session starting")
	defer s.rejectPending()

	for {
		if r, ok := s.queue.TryDequeue(); ok {
			res := s.apply(ctx, r)
			r.reply <- res
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("session stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()

		case <-s.queue.Wait():
			// A closed queue fires immediately; stop once it is empty.
			if s.queue.Len() == 0 && s.closed() {
				s.logger.Info("session stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once it has applied what was queued.
func (s *Session) Stop() {
	s.queue.Close()
}

func (s *Session) closed() bool {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()
	return s.queue.closed
}

func (s *Session) rejectPending() {
	for _, r := range s.queue.Drain() {
		r.reply <- OpResult{ID: r.id, Kind: r.op.Kind, Err: ErrSessionClosed}
	}
}

// apply runs one request. Called only from Run.
func (s *Session) apply(ctx context.Context, r request) OpResult {
	res := OpResult{ID: r.id, Seq: s.clock.Next(), Kind: r.op.Kind}
	key := r.op.Key

	var err error
	switch r.op.Kind {
	case OpToggle:
		res.Toggle, err = s.ledger.Toggle(ctx, r.op.Records, key)
	case OpProject:
		res.Project, err = s.ledger.Project(ctx, r.op.Records, key)
	case OpRemove:
		res.Remove, err = s.ledger.Remove(ctx, key)
	case OpVerify:
		err = s.projector.Verify()
	case OpSnapshot:
		res.Snapshot, err = s.arena.Snapshot()
	default:
		err = fmt.Errorf("unknown operation kind %q", r.op.Kind)
	}

	if err != nil {
		oe := &OpError{ID: r.id, Seq: res.Seq, Kind: r.op.Kind, Err: err}
		if r.op.Kind != OpVerify && r.op.Kind != OpSnapshot {
			oe.Key = key.String()
		}
		res.Err = oe
		s.logger.Error("operation failed",
			"op", r.id,
			"seq", res.Seq,
			"kind", string(r.op.Kind),
			"error", err)
		return res
	}
	s.logger.Debug("operation applied",
		"op", r.id,
		"seq", res.Seq,
		"kind", string(r.op.Kind),
		"key", key.String())
	return res
}
