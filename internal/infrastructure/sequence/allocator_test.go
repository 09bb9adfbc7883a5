package sequence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coresequence "codemint/internal/core/sequence"
)

// fakeStore records calls and plays back canned results.
type fakeStore struct {
	counter    coresequence.Counter
	getErr     error
	setOK      bool
	setErr     error
	confirmOK  bool
	confirmErr error

	gotSnapshot  coresequence.Counter
	gotCandidate uint64
}

func (f *fakeStore) GetOrCreateForUpdate(ctx context.Context, key coresequence.Key) (coresequence.Counter, error) {
	return f.counter, f.getErr
}

func (f *fakeStore) SetPending(ctx context.Context, snapshot coresequence.Counter, candidate uint64) (bool, error) {
	f.gotSnapshot = snapshot
	f.gotCandidate = candidate
	return f.setOK, f.setErr
}

func (f *fakeStore) ConfirmPending(ctx context.Context, key coresequence.Key, value uint64) (bool, error) {
	return f.confirmOK, f.confirmErr
}

func testKey() coresequence.Key {
	return coresequence.Key{DateKey: "250609", Type: "ORD", Location: "HQ"}
}

func TestReserveCandidateIsMaxPlusOne(t *testing.T) {
	pending := uint64(7)
	store := &fakeStore{
		counter: coresequence.Counter{Confirmed: 3, Pending: &pending},
		setOK:   true,
	}
	alloc := NewAllocator(store)

	out, err := alloc.Reserve(context.Background(), testKey())
	require.NoError(t, err)
	assert.False(t, out.Conflict)
	assert.Equal(t, uint64(8), out.Value)
	assert.Equal(t, uint64(8), store.gotCandidate)
	assert.Equal(t, store.counter, store.gotSnapshot, "write must be guarded by the locked snapshot")
}

func TestReserveFreshCounterStartsAtOne(t *testing.T) {
	store := &fakeStore{setOK: true}
	alloc := NewAllocator(store)

	out, err := alloc.Reserve(context.Background(), testKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Value)
}

func TestReserveConflictIsNotAnError(t *testing.T) {
	store := &fakeStore{
		counter: coresequence.Counter{Confirmed: 3},
		setOK:   false,
	}
	alloc := NewAllocator(store)

	out, err := alloc.Reserve(context.Background(), testKey())
	require.NoError(t, err)
	assert.True(t, out.Conflict)
	assert.Zero(t, out.Value)
}

func TestReservePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")

	alloc := NewAllocator(&fakeStore{getErr: boom})
	_, err := alloc.Reserve(context.Background(), testKey())
	require.ErrorIs(t, err, boom)

	alloc = NewAllocator(&fakeStore{setErr: boom})
	_, err = alloc.Reserve(context.Background(), testKey())
	require.ErrorIs(t, err, boom)
}

func TestConfirmReportsMiss(t *testing.T) {
	alloc := NewAllocator(&fakeStore{confirmOK: false})

	ok, err := alloc.Confirm(context.Background(), testKey(), 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmReportsCommit(t *testing.T) {
	alloc := NewAllocator(&fakeStore{confirmOK: true})

	ok, err := alloc.Confirm(context.Background(), testKey(), 5)
	require.NoError(t, err)
	assert.True(t, ok)
}
