// Package apperr classifies orchestrator errors so transport layers can map
// them to status codes without inspecting message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the error category surfaced to callers.
type Kind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota
	// KindValidation marks malformed input; always caller-fixable.
	KindValidation
	// KindNotFound marks a missing actor, room, recording or guest.
	KindNotFound
	// KindPermissionDenied marks a role or ownership check failure.
	KindPermissionDenied
	// KindBusinessRule marks a domain rule violation (capacity, reserved
	// name, already recording).
	KindBusinessRule
	// KindConflict marks state changed concurrently or a uniqueness
	// collision that survived retry.
	KindConflict
	// KindInfrastructure marks storage, persistence or token failures.
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindBusinessRule:
		return "business_rule"
	case KindConflict:
		return "conflict"
	case KindInfrastructure:
		return "infrastructure"
	}
	return "unknown"
}

// Error carries a kind, a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E creates a classified error.
func E(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Ef creates a classified error with a formatted message.
func Ef(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
