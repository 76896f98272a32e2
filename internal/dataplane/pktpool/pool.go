// Package pktpool implements the packet-buffer pool (spec.md §3 "Packet
// handle", §6 "Packet-buffer pool interface"): a pre-sized slab of
// fixed-size buffers handed out as refcounted handles and reclaimed when
// the last reference is released. Grounded on the teacher's latency
// tracker's ring-buffer sizing style (fixed capacity computed at
// construction, no dynamic growth on the hot path).
package pktpool

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned by Alloc when the pool has no free buffer.
var ErrExhausted = errors.New("pktpool: exhausted")

// Handle is an opaque reference to a pool-owned buffer: a contiguous byte
// range, a length, an atomic refcount, and a fixed metadata slot holding
// a 64-bit arrival timestamp (spec.md §3).
type Handle struct {
	// Data is the handle's backing buffer, sized to bufSize at
	// construction and reused across its lifetime.
	Data []byte
	// Length is the number of valid bytes in Data (the L2 frame length).
	Length int
	// TimestampNs is the metadata slot: a high-resolution arrival
	// timestamp stamped by the forwarder at ingress.
	TimestampNs int64

	refcount int32
	pool     *Pool
}

// Refcount returns the handle's current reference count.
func (h *Handle) Refcount() int32 {
	return atomic.LoadInt32(&h.refcount)
}

// Pool is a pre-sized collection of buffers handed out via Alloc and
// reclaimed via Free. A Pool is safe for concurrent use; in this gateway
// Alloc and RefcountInc are called by the single dataplane worker, and a
// ring consumer on another goroutine releases its references with Free.
type Pool struct {
	free    chan *Handle
	bufSize int
}

// New preallocates count buffers of bufSize bytes each.
func New(count, bufSize int) *Pool {
	p := &Pool{
		free:    make(chan *Handle, count),
		bufSize: bufSize,
	}
	for i := 0; i < count; i++ {
		h := &Handle{Data: make([]byte, bufSize), pool: p}
		p.free <- h
	}
	return p
}

// Alloc returns a free handle with refcount 1, or ErrExhausted if the
// pool has none available. Non-blocking, matching spec.md §7's
// "resource exhaustion... drop the packet by not attempting duplication".
func (p *Pool) Alloc() (*Handle, error) {
	select {
	case h := <-p.free:
		atomic.StoreInt32(&h.refcount, 1)
		h.Length = 0
		h.TimestampNs = 0
		return h, nil
	default:
		return nil, ErrExhausted
	}
}

// RefcountInc atomically adjusts h's refcount by n and returns the new
// value. Used to duplicate a reference (n = +1) before a handle is handed
// to a second consumer (e.g. the HFT ring) without copying bytes.
func (p *Pool) RefcountInc(h *Handle, n int32) int32 {
	return atomic.AddInt32(&h.refcount, n)
}

// Free releases one reference to h; when the refcount reaches zero the
// buffer is returned to the pool. A handle whose refcount has reached
// zero must never be observable from any queue or port ring again
// (spec.md §3 invariant); callers are responsible for not re-using h
// after the reference they held is the one that drove the count to zero.
func (p *Pool) Free(h *Handle) {
	if atomic.AddInt32(&h.refcount, -1) == 0 {
		select {
		case p.free <- h:
		default:
			// Pool was over-provisioned relative to count; drop rather
			// than block on the hot path.
		}
	}
}

// Available reports how many buffers are currently free, for diagnostics
// and tests.
func (p *Pool) Available() int {
	return len(p.free)
}
