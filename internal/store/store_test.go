package store

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/andresmejia3/kiosk/internal/kv"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// usedSlots counts slots directly, bypassing Count.
func usedSlots(s *FaceStore) int {
	n := 0
	for i := 0; i < s.Capacity(); i++ {
		if _, ok := s.Get(i); ok {
			n++
		}
	}
	return n
}

func TestLoad_MissingBlobIsEmpty(t *testing.T) {
	s := New(kv.NewMemory(), MaxFaces)
	require.NoError(t, s.Load(context.Background()))
	assert.Zero(t, s.Count())
	assert.False(t, s.IsFull())
}

func TestEnrollDelete_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := New(backend, MaxFaces)
	require.NoError(t, s.Load(ctx))

	var feat types.Feature
	feat[0], feat[127] = 0.5, -1.25
	slot, err := s.EnrollWithFeature(ctx, "Alice", feat)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	assert.Equal(t, 1, s.Count())

	rec, ok := s.Get(0)
	require.True(t, ok)
	assert.Equal(t, "Alice", rec.Name)

	blob, err := backend.Get(ctx, BlobKey)
	require.NoError(t, err)
	assert.Len(t, blob, BlobSize(MaxFaces))

	reloaded := New(backend, MaxFaces)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, s.Entries(), reloaded.Entries())

	require.NoError(t, s.Delete(ctx, 0))
	assert.Zero(t, s.Count())
	_, ok = s.Get(0)
	assert.False(t, ok)

	require.NoError(t, reloaded.Load(ctx))
	assert.Zero(t, reloaded.Count())
}

func TestEnroll_FullOverwritesFirstUsed(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), MaxFaces)
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := s.Enroll(ctx, name)
		require.NoError(t, err)
	}
	require.True(t, s.IsFull())

	slot, err := s.Enroll(ctx, "Dana")
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	assert.Equal(t, MaxFaces, s.Count())

	var names []string
	for _, e := range s.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Dana", "Bob", "Carol"}, names)
}

func TestEnroll_FillsFirstFreeSlot(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), MaxFaces)
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := s.Enroll(ctx, name)
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, 1))

	slot, err := s.Enroll(ctx, "Dana")
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
}

func TestEnroll_Names(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), MaxFaces)

	_, err := s.Enroll(ctx, "   ")
	assert.Error(t, err)
	assert.Zero(t, s.Count())

	long := strings.Repeat("x", 40)
	slot, err := s.Enroll(ctx, long)
	require.NoError(t, err)
	rec, _ := s.Get(slot)
	assert.Len(t, rec.Name, MaxNameLen)
}

func TestEnroll_TruncatesOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := New(backend, MaxFaces)

	// The two-byte é straddles the name limit.
	name := strings.Repeat("a", MaxNameLen-1) + "é"
	slot, err := s.Enroll(ctx, name)
	require.NoError(t, err)

	rec, _ := s.Get(slot)
	assert.True(t, utf8.ValidString(rec.Name), "stored name %q", rec.Name)
	assert.Equal(t, strings.Repeat("a", MaxNameLen-1), rec.Name)

	reloaded := New(backend, MaxFaces)
	require.NoError(t, reloaded.Load(ctx))
	back, ok := reloaded.Get(slot)
	require.True(t, ok)
	assert.Equal(t, rec.Name, back.Name)
}

func TestDelete_InvalidIndex(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), MaxFaces)
	_, err := s.Enroll(ctx, "Alice")
	require.NoError(t, err)

	for _, i := range []int{-1, 1, MaxFaces, 99} {
		assert.ErrorIs(t, s.Delete(ctx, i), ErrInvalidIndex, "slot %d", i)
	}
	assert.Equal(t, 1, s.Count())
}

func TestPersistFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	backend.FailCommit = errors.New("nvs commit failed")
	s := New(backend, MaxFaces)

	_, err := s.Enroll(ctx, "Alice")
	require.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, 1, s.Count())

	_, err = backend.Get(ctx, BlobKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestLoad_WrongSizeIgnored(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, BlobKey, []byte{1, 2, 3}))
	require.NoError(t, backend.Commit(ctx))

	s := New(backend, MaxFaces)
	require.NoError(t, s.Load(ctx))
	assert.Zero(t, s.Count())
}

func TestCountInvariant_RandomOps(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	s := New(kv.NewMemory(), MaxFaces)

	for step := 0; step < 500; step++ {
		if rng.Intn(2) == 0 {
			_, _ = s.Enroll(ctx, "face")
		} else {
			_ = s.Delete(ctx, rng.Intn(MaxFaces+2)-1)
		}
		require.Equal(t, usedSlots(s), s.Count(), "step %d", step)
		require.LessOrEqual(t, s.Count(), MaxFaces, "step %d", step)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	s := New(backend, MaxFaces)
	_, err := s.Enroll(ctx, "Alice")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	assert.Zero(t, s.Count())

	reloaded := New(backend, MaxFaces)
	require.NoError(t, reloaded.Load(ctx))
	assert.Zero(t, reloaded.Count())
}
