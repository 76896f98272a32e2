// Package ring implements the HFT ring (spec.md §4.3): a fixed-capacity
// single-producer/single-consumer ring of packet handles. Enqueue and
// dequeue never block; Go's memory model guarantees the release/acquire
// ordering spec.md calls for through the same atomic index operations
// the teacher's latency tracker uses for its own lock-free ring.
package ring

import (
	"sync/atomic"

	"aero-gateway/internal/dataplane/pktpool"
)

// Ring is a bounded SPSC queue of packet handles. capacity must be a
// power of two; New rounds up if it is not.
type Ring struct {
	buf  []*pktpool.Handle
	mask uint64

	// head is the next slot the consumer will read; tail is the next
	// slot the producer will write. Both only ever move forward and are
	// read by the opposite side via Load, giving the acquire half of the
	// release/acquire pair spec.md §4.3 requires.
	head uint64
	tail uint64
}

// New returns an empty ring whose capacity is the smallest power of two
// >= capacity (reference capacity 2048).
func New(capacity int) *Ring {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		buf:  make([]*pktpool.Handle, size),
		mask: uint64(size - 1),
	}
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// EnqueueSP publishes h to the ring. Returns false if the ring is full;
// the caller (the dataplane worker) owns the single producer role.
func (r *Ring) EnqueueSP(h *pktpool.Handle) bool {
	head := atomic.LoadUint64(&r.head)
	tail := r.tail
	if tail-head >= uint64(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask] = h
	atomic.StoreUint64(&r.tail, tail+1) // release: publishes buf[...] write
	return true
}

// DequeueSC returns the next handle, or ok=false if the ring is empty.
// The caller (the single downstream consumer) owns the single consumer
// role; the ring itself does not release the handle's refcount — the
// consumer must call pool.Free once it has finished processing.
func (r *Ring) DequeueSC() (h *pktpool.Handle, ok bool) {
	tail := atomic.LoadUint64(&r.tail) // acquire: syncs with EnqueueSP's release
	head := r.head
	if head >= tail {
		return nil, false
	}
	h = r.buf[head&r.mask]
	r.buf[head&r.mask] = nil
	atomic.StoreUint64(&r.head, head+1)
	return h, true
}

// Len returns the number of handles currently queued, for diagnostics.
func (r *Ring) Len() int {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	return int(tail - head)
}
