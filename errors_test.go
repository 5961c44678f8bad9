package wasefire

import (
	"errors"
	"testing"

	"github.com/wasefire/wfcore/internal/scheduler"
)

func TestStructuredError(t *testing.T) {
	err := &Error{Op: "boot", Code: CodeInvalidParams, Msg: "EngineInterpreted requires WasmBytes"}

	expected := "wfcore: boot: EngineInterpreted requires WasmBytes"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}

func TestErrorWrapsInner(t *testing.T) {
	inner := errors.New("bind: address already in use")
	err := &Error{Op: "boot", Code: CodeTransportFailed, Msg: inner.Error(), Inner: inner}

	if !errors.Is(err, inner) {
		t.Error("expected wrapped error to satisfy errors.Is for the inner cause")
	}
}

func TestIsCode(t *testing.T) {
	err := &Error{Op: "run", Code: CodeInvalidState, Msg: "platform already running"}

	if !IsCode(err, CodeInvalidState) {
		t.Error("IsCode should return true for a matching code")
	}
	if IsCode(err, CodeIOError) {
		t.Error("IsCode should return false for a non-matching code")
	}
	if IsCode(nil, CodeInvalidState) {
		t.Error("IsCode should return false for a nil error")
	}
}

func TestIsCodeSeesThroughWrapping(t *testing.T) {
	inner := &Error{Op: "bind", Code: CodeIOError, Msg: "connection refused"}
	wrapped := &Error{Op: "boot", Code: CodeTransportFailed, Msg: inner.Error(), Inner: inner}

	if !IsCode(wrapped, CodeTransportFailed) {
		t.Error("IsCode should match the outer error's own code")
	}
}

func TestIsTrapped(t *testing.T) {
	if !IsTrapped(ErrTrapped) {
		t.Error("IsTrapped should return true for ErrTrapped itself")
	}

	wrapped := errors.New("applet fault")
	if IsTrapped(wrapped) {
		t.Error("IsTrapped should return false for an unrelated error")
	}

	if ErrTrapped != scheduler.ErrTrapped {
		t.Error("ErrTrapped should be the same sentinel as internal/scheduler.ErrTrapped")
	}
}
