package engine

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned when submitting to a stopped session.
var ErrSessionClosed = errors.New("engine: session closed")

// OpError is a failed operation with the context needed to find it in logs.
type OpError struct {
	// ID is the operation id handed out at submission.
	ID string

	// Seq is the logical time the operation ran at.
	Seq int64

	Kind OpKind
	Key  string

	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s (op=%s, seq=%d): %v", e.Kind, e.Key, e.ID, e.Seq, e.Err)
	}
	return fmt.Sprintf("%s (op=%s, seq=%d): %v", e.Kind, e.ID, e.Seq, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// IsOpError reports whether err is an OpError, returning it.
// Uses errors.As to handle wrapped errors.
func IsOpError(err error) (*OpError, bool) {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
