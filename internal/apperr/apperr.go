// Package apperr defines the failure taxonomy shared by the conversion
// pipeline.
//
// Every failure leaving the core carries exactly one Kind so that the
// transport layers can tell a bad upload from a broken deployment:
//
//   - KindValidation: a request parameter is out of bounds
//   - KindDecode: the uploaded bytes are not a usable image
//   - KindConfiguration: the palette descriptor or its textures are broken
//   - KindTimeout: the conversion did not finish inside its time budget
//
// Callers test for a kind with errors.Is against the sentinel values:
//
//	if errors.Is(err, apperr.ErrTimeout) {
//	    // retry with a smaller width
//	}
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindDecode
	KindConfiguration
	KindTimeout
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrValidation    = errors.New("validation error")
	ErrDecode        = errors.New("decode error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindDecode:
		return ErrDecode
	case KindConfiguration:
		return ErrConfiguration
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// Error is a classified failure. Op names the operation that failed
// (e.g. "palette.load"), Msg is safe to show to end users.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New creates a classified error without a cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap classifies err. The cause stays reachable through errors.Unwrap.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Validationf creates a KindValidation error with a formatted message.
func Validationf(op, format string, args ...interface{}) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

// Configurationf creates a KindConfiguration error with a formatted message.
func Configurationf(op, format string, args ...interface{}) *Error {
	return New(KindConfiguration, op, fmt.Sprintf(format, args...))
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Message returns the user-facing message of the first *Error in err's
// chain, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
