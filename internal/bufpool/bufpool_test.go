package bufpool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyAllocator fails every call whose sequence number is in failOn.
type flakyAllocator struct {
	calls  int
	failOn map[int]bool
	live   int
}

func (f *flakyAllocator) AlignedAlloc(align, size int) ([]byte, error) {
	f.calls++
	if f.failOn[f.calls] {
		return nil, ErrOutOfMemory
	}
	f.live++
	return make([]byte, size), nil
}

func (f *flakyAllocator) Free(buf []byte) { f.live-- }

func TestAcquire_FullCount(t *testing.T) {
	heap := NewHeap(0)
	pool, err := Acquire(heap, 4, 1024, 64)
	require.NoError(t, err)
	defer pool.Release()

	assert.Equal(t, 4, pool.Count())
	assert.Equal(t, 1024, pool.Size())
	for i := 0; i < pool.Count(); i++ {
		buf := pool.Buffer(i)
		assert.Len(t, buf, 1024)
		assert.Zero(t, uintptr(unsafe.Pointer(&buf[0]))%64, "buffer %d not aligned", i)
	}
}

func TestAcquire_DegradesUnderPressure(t *testing.T) {
	// Room for exactly two buffers.
	heap := NewHeap(2 * 1000)
	pool, err := Acquire(heap, 4, 1000, 16)
	require.NoError(t, err)

	assert.Equal(t, 2, pool.Count(), "achieved count must reflect the degraded allocation")
	_, live := heap.InUse()
	assert.Equal(t, 2, live, "failed attempts must not leak buffers")

	pool.Release()
	used, live := heap.InUse()
	assert.Zero(t, used)
	assert.Zero(t, live)
}

func TestAcquire_FloorFailureLeavesNothing(t *testing.T) {
	heap := NewHeap(1500)
	pool, err := Acquire(heap, 3, 1000, 16)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Nil(t, pool)

	used, live := heap.InUse()
	assert.Zero(t, used)
	assert.Zero(t, live)
}

func TestAcquire_MidAttemptFailureReleasesPartial(t *testing.T) {
	// 3-buffer attempt fails on its third call; the 2-buffer retry succeeds.
	alloc := &flakyAllocator{failOn: map[int]bool{3: true}}
	pool, err := Acquire(alloc, 3, 64, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Count())
	assert.Equal(t, 2, alloc.live)

	pool.Release()
	pool.Release()
	assert.Zero(t, alloc.live)
}

func TestAcquire_AllSizesFail(t *testing.T) {
	for _, max := range []int{2, 3, 5, 8} {
		fail := map[int]bool{}
		for i := 1; i <= 64; i++ {
			fail[i] = i%2 == 0
		}
		alloc := &flakyAllocator{failOn: fail}
		_, err := Acquire(alloc, max, 64, 1)
		require.ErrorIs(t, err, ErrExhausted, "max=%d", max)
		assert.Zero(t, alloc.live, "max=%d leaked buffers", max)
	}
}

func TestAcquire_InvalidSize(t *testing.T) {
	_, err := Acquire(NewHeap(0), 3, 0, 1)
	assert.Error(t, err)
}
