package wasefire

import (
	"errors"

	"github.com/wasefire/wfcore/internal/scheduler"
	"github.com/wasefire/wfcore/internal/uerrors"
)

// Error is the platform's structured host-process error, re-exported so
// callers of Boot/Run can type-assert or errors.As without reaching into
// internal/uerrors directly — the same re-export shape the teacher uses
// for its root Error type over errors.go's own constructors.
type Error = uerrors.Error

// ErrorCode is the high-level error category carried on Error.
type ErrorCode = uerrors.Code

// Re-exported codes Boot/Run can return.
const (
	CodeInvalidParams   = uerrors.CodeInvalidParams
	CodeInvalidState    = uerrors.CodeInvalidState
	CodeTransportFailed = uerrors.CodeTransportFailed
	CodeIOError         = uerrors.CodeIOError
)

// ErrTrapped is returned by Platform.Run when the applet traps, re-exported
// from internal/scheduler so callers don't need that import just to check
// errors.Is(err, wasefire.ErrTrapped).
var ErrTrapped = scheduler.ErrTrapped

// IsCode reports whether err is a *Error (anywhere in its chain) carrying code.
func IsCode(err error, code ErrorCode) bool {
	return uerrors.IsCode(err, code)
}

// IsTrapped reports whether err is, or wraps, ErrTrapped.
func IsTrapped(err error) bool {
	return errors.Is(err, ErrTrapped)
}
