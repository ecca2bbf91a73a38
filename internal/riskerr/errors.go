// Package riskerr defines the structured error kinds of the risk engine
// (spec §7). Each kind carries the machine-readable fields a caller needs
// to react programmatically, alongside a human-readable message, and wraps
// cleanly with fmt.Errorf("%w") the way the rest of the codebase wraps
// stdlib and viper errors.
package riskerr

import "fmt"

// Kind identifies the class of failure.
type Kind string

const (
	KindParse            Kind = "PARSE_ERROR"
	KindDuplicateKey     Kind = "DUPLICATE_KEY"
	KindUnknownKey       Kind = "UNKNOWN_KEY"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindProtocolViolation Kind = "PROTOCOL_VIOLATION"
	KindConfig           Kind = "CONFIG_ERROR"
)

// Error is the structured error type shared by every non-LimitBreach
// failure kind. LimitBreach is deliberately not modeled here — spec §7
// treats it as an expected outcome (types.Decision), not a Go error.
type Error struct {
	Kind    Kind
	Key     string // the OrderKey involved, if any
	Field   string // the offending wire-tag name, for KindParse
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Message, e.Field)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Kind, e.Message, e.Key)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, riskerr.KindX) style checks by comparing Kind
// against a sentinel constructed with New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a bare Error of the given kind — also usable as an
// errors.Is sentinel (e.g. errors.Is(err, riskerr.New(riskerr.KindDuplicateKey, ""))).
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithKey attaches the offending order key.
func (e *Error) WithKey(key string) *Error {
	cp := *e
	cp.Key = key
	return &cp
}

// WithField attaches the offending wire-tag name (parse errors).
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// DuplicateKey builds a KindDuplicateKey error for key.
func DuplicateKey(key string) *Error {
	return New(KindDuplicateKey, "order key already tracked").WithKey(key)
}

// UnknownKey builds a KindUnknownKey error for key.
func UnknownKey(key string) *Error {
	return New(KindUnknownKey, "order key not found").WithKey(key)
}

// InvalidTransition builds a KindInvalidTransition error describing the
// attempted transition.
func InvalidTransition(key, message string) *Error {
	return New(KindInvalidTransition, message).WithKey(key)
}

// ProtocolViolation builds a KindProtocolViolation error (e.g. a fill that
// overruns leaves_qty). It is non-fatal: the book remains in a valid state.
func ProtocolViolation(key, message string) *Error {
	return New(KindProtocolViolation, message).WithKey(key)
}

// Parse builds a KindParse error naming the offending wire tag.
func Parse(field, message string) *Error {
	return New(KindParse, message).WithField(field)
}

// Config builds a KindConfig error.
func Config(message string) *Error {
	return New(KindConfig, message)
}
