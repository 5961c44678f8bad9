// Package uerrors implements the platform's own structured error type, for
// host-process failures (boot, transport, bundle loading, protocol framing)
// as opposed to the applet-ABI errors internal/abierr packs across the host
// boundary. Grounded on the teacher's root Error type: an operation name, a
// high-level code, and an optionally wrapped cause.
package uerrors

import "fmt"

// Error is a structured platform error with enough context to log and to
// compare against a Code without string matching.
type Error struct {
	Op    string // Operation that failed (e.g. "boot", "load bundle")
	Code  Code   // High-level error category
	Msg   string // Human-readable message
	Inner error  // Wrapped error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("wfcore: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("wfcore: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison by Code, ignoring Op/Msg/Inner, mirroring
// the teacher's UblkErrorCode-based Is.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// Code is a high-level error category.
type Code string

const (
	CodeNotImplemented  Code = "not implemented"
	CodeAlreadyBooted   Code = "platform already booted"
	CodeNotBooted       Code = "platform not booted"
	CodeInvalidBundle   Code = "invalid bundle"
	CodeInvalidParams   Code = "invalid parameters"
	CodeInvalidState    Code = "invalid state"
	CodeTransportFailed Code = "transport failed"
	CodeAppletTrapped   Code = "applet trapped"
	CodeIOError         Code = "I/O error"
	CodeTimeout         Code = "timeout"
)

// New creates a structured error.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap wraps inner with op and code. Returns nil if inner is nil, mirroring
// the teacher's WrapError nil-passthrough.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ue, ok := inner.(*Error); ok && ue.Op == op {
		return ue
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error (anywhere in its chain) with code.
func IsCode(err error, code Code) bool {
	for err != nil {
		if ue, ok := err.(*Error); ok {
			return ue.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
