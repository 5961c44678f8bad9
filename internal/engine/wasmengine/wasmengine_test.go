package wasmengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/engine"
)

// trivialModule exports one page of memory and a zero-arg, zero-result
// function "run" that does nothing. Hand-assembled (no wasm toolchain is
// available in this exercise) from the WebAssembly binary format spec:
// type section (() -> ()), a function section referencing it, a one-page
// memory, exports for "memory" and "run", and a code section with an empty
// body (0 locals, then `end`).
var trivialModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: 1 type, () -> ()
	0x03, 0x02, 0x01, 0x00, // function section: 1 func, type 0
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page
	0x07, 0x10, 0x02, // export section: 2 exports
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // "memory" -> memory 0
	0x03, 'r', 'u', 'n', 0x00, 0x00, // "run" -> func 0
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // code section: 1 body, 0 locals, end
}

func TestSingleInstanceInvariant(t *testing.T) {
	ctx := context.Background()
	e1, err := New(ctx, trivialModule, 1, nil, nil)
	require.NoError(t, err)
	defer e1.Close()

	_, err = New(ctx, trivialModule, 1, nil, nil)
	require.ErrorIs(t, err, engine.ErrAlreadyRunning)

	require.NoError(t, e1.Close())

	e2, err := New(ctx, trivialModule, 1, nil, nil)
	require.NoError(t, err)
	defer e2.Close()
}

func TestInvokeRunToCompletion(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, trivialModule, 1, nil, nil)
	require.NoError(t, err)
	defer e.Close()

	outcome, err := e.Invoke(ctx, "run", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusDone, outcome.Status)
	assert.Empty(t, outcome.Results)

	_, ok := e.LastCall()
	assert.False(t, ok)
}

func TestResumeWithoutPendingCallErrors(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, trivialModule, 1, nil, nil)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Resume(ctx, 0)
	assert.Error(t, err)
}

func TestMemoryReturnsOnePageView(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, trivialModule, 1, nil, nil)
	require.NoError(t, err)
	defer e.Close()

	view := e.Memory()
	require.NotNil(t, view)
	assert.Equal(t, 65536, view.Len())
}
