package memboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasefire/wfcore/internal/board/fingerprint"
)

func TestStoreInsertFindRemove(t *testing.T) {
	s := &Store{data: make(map[uint16][]byte)}
	require.NoError(t, s.Insert(1, []byte("hello")))
	v, ok, err := s.Find(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)

	require.NoError(t, s.Remove(1))
	_, ok, err = s.Find(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreKeysSorted(t *testing.T) {
	s := &Store{data: make(map[uint16][]byte)}
	require.NoError(t, s.Insert(5, []byte("a")))
	require.NoError(t, s.Insert(1, []byte("b")))
	require.NoError(t, s.Insert(3, []byte("c")))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 3, 5}, keys)
}

func TestUartInjectPushesEvent(t *testing.T) {
	b := New(1, 4)
	u := b.Uart(0)
	require.NoError(t, u.Start())
	u.Inject([]byte("hi"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), e.ID)

	buf := make([]byte, 8)
	n, err := u.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))
}

func TestFingerprintEnrollThenIdentify(t *testing.T) {
	b := New(0, 4)
	f := b.Fingerprint()

	doneCh := make(chan []byte, 1)
	require.NoError(t, f.Enroll(func(fingerprint.EnrollProgress) {}, func(template []byte, err error) {
		require.NoError(t, err)
		doneCh <- template
	}))
	var template []byte
	select {
	case template = <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("enroll never completed")
	}
	require.Len(t, template, 4)

	matchCh := make(chan bool, 1)
	require.NoError(t, f.Identify(nil, func(matched bool, _ []byte, err error) {
		require.NoError(t, err)
		matchCh <- matched
	}))
	select {
	case matched := <-matchCh:
		assert.True(t, matched)
	case <-time.After(time.Second):
		t.Fatal("identify never completed")
	}
}

func TestFingerprintRejectsConcurrentEnroll(t *testing.T) {
	b := New(0, 4)
	f := b.Fingerprint()
	require.NoError(t, f.Enroll(func(fingerprint.EnrollProgress) {}, func([]byte, error) {}))
	err := f.Enroll(func(fingerprint.EnrollProgress) {}, func([]byte, error) {})
	assert.Error(t, err)
}
