// Package bufpool acquires the camera capture buffers.
//
// Acquisition degrades instead of failing: when any single allocation of a
// K-buffer attempt fails, everything allocated for that attempt is released
// and the attempt is retried with K-1 buffers, down to MinBuffers. Callers
// must use Pool.Count, never the requested maximum.
package bufpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// MinBuffers is the floor of the degrade loop.
const MinBuffers = 2

var (
	// ErrExhausted is returned when even MinBuffers buffers cannot be allocated.
	ErrExhausted = errors.New("camera buffer allocation exhausted")
	// ErrOutOfMemory is returned by an Allocator that cannot satisfy a request.
	ErrOutOfMemory = errors.New("out of memory")
)

// Allocator hands out aligned buffers from a restricted heap region.
type Allocator interface {
	AlignedAlloc(align, size int) ([]byte, error)
	Free(buf []byte)
}

// Pool is a set of equally sized capture buffers.
type Pool struct {
	alloc Allocator
	bufs  [][]byte
	size  int
}

// Acquire allocates up to max buffers of size bytes each, aligned to align.
func Acquire(alloc Allocator, max, size, align int) (*Pool, error) {
	if max < MinBuffers {
		max = MinBuffers
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}

	for k := max; k >= MinBuffers; k-- {
		bufs, err := tryAlloc(alloc, k, size, align)
		if err == nil {
			if k < max {
				log.Warn().Int("requested", max).Int("buffers", k).Msg("Camera buffers degraded under memory pressure")
			}
			return &Pool{alloc: alloc, bufs: bufs, size: size}, nil
		}
		log.Debug().Int("buffers", k).Err(err).Msg("Buffer attempt failed, retrying with fewer")
	}

	return nil, fmt.Errorf("%w: tried %d..%d buffers of %d bytes", ErrExhausted, max, MinBuffers, size)
}

// tryAlloc is all-or-nothing: on failure nothing from this attempt stays allocated.
func tryAlloc(alloc Allocator, k, size, align int) ([][]byte, error) {
	bufs := make([][]byte, 0, k)
	for i := 0; i < k; i++ {
		b, err := alloc.AlignedAlloc(align, size)
		if err != nil {
			for _, prev := range bufs {
				alloc.Free(prev)
			}
			return nil, err
		}
		bufs = append(bufs, b)
	}
	return bufs, nil
}

// Count is the number of buffers actually allocated.
func (p *Pool) Count() int { return len(p.bufs) }

// Size is the byte size of each buffer.
func (p *Pool) Size() int { return p.size }

// Buffers returns the buffers. The slice itself must not be modified.
func (p *Pool) Buffers() [][]byte { return p.bufs }

// Buffer returns buffer i.
func (p *Pool) Buffer(i int) []byte { return p.bufs[i] }

// Release frees every buffer. Safe to call more than once.
func (p *Pool) Release() {
	if p == nil {
		return
	}
	for _, b := range p.bufs {
		p.alloc.Free(b)
	}
	p.bufs = nil
}

// Heap is an Allocator over a fixed byte budget, standing in for the
// capability-restricted (external RAM) heap of the device.
type Heap struct {
	mu     sync.Mutex
	budget int
	used   int
	live   int
}

// NewHeap returns a Heap that can hand out at most budget bytes in total.
// A budget of zero or less means unlimited.
func NewHeap(budget int) *Heap {
	return &Heap{budget: budget}
}

// AlignedAlloc returns a size-byte slice whose first byte is aligned to align.
func (h *Heap) AlignedAlloc(align, size int) ([]byte, error) {
	if align <= 0 {
		align = 1
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d", size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.budget > 0 && h.used+size > h.budget {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrOutOfMemory, size, h.used, h.budget)
	}
	raw := make([]byte, size+align-1)
	off := alignOffset(raw, align)
	h.used += size
	h.live++
	return raw[off : off+size : off+size], nil
}

// Free returns buf to the budget.
func (h *Heap) Free(buf []byte) {
	if buf == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.used -= cap(buf)
	h.live--
}

// InUse reports bytes and buffers currently allocated.
func (h *Heap) InUse() (bytes, buffers int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used, h.live
}
