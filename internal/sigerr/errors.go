// Package sigerr defines the typed failures shared by the aggregation and
// projection packages.
package sigerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes domain errors.
type Code string

const (
	// CodeLookupMiss indicates an identifier has no corresponding graph node.
	// Absorbed per record by the projector; never aborts a projection.
	CodeLookupMiss Code = "LOOKUP_MISS"

	// CodeIncompatibleMergeInput indicates the merge dispatch met values it
	// cannot combine.
	CodeIncompatibleMergeInput Code = "INCOMPATIBLE_MERGE_INPUT"

	// CodeInvariantViolation indicates a group/copy relationship is broken.
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"

	// CodeUnresolvedMergeType indicates an interactive merge type reached
	// the pure core.
	CodeUnresolvedMergeType Code = "UNRESOLVED_MERGE_TYPE"

	// CodeUnsupportedSignalType indicates a statistic or color policy has no
	// rule for the given signal type.
	CodeUnsupportedSignalType Code = "UNSUPPORTED_SIGNAL_TYPE"
)

// Error is a domain failure with a code and structured details.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details contains additional context (node ids, data keys, kinds).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + e.Details[k]
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// New creates an Error with optional key/value detail pairs.
func New(code Code, message string, kv ...string) *Error {
	e := &Error{Code: code, Message: message}
	if len(kv) > 0 {
		e.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Details[kv[i]] = kv[i+1]
		}
	}
	return e
}

// Is reports whether err (or anything it wraps) is an Error with code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsLookupMiss returns true if the error is a lookup miss.
func IsLookupMiss(err error) bool { return Is(err, CodeLookupMiss) }

// IsIncompatibleMergeInput returns true if the merge dispatch rejected its input.
func IsIncompatibleMergeInput(err error) bool { return Is(err, CodeIncompatibleMergeInput) }

// IsInvariantViolation returns true if the error reports a broken graph invariant.
func IsInvariantViolation(err error) bool { return Is(err, CodeInvariantViolation) }

// IsUnresolvedMergeType returns true if an interactive merge type reached the core.
func IsUnresolvedMergeType(err error) bool { return Is(err, CodeUnresolvedMergeType) }

// IsUnsupportedSignalType returns true if no rule exists for a signal type.
func IsUnsupportedSignalType(err error) bool { return Is(err, CodeUnsupportedSignalType) }
