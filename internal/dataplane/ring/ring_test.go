package ring

import (
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"aero-gateway/internal/dataplane/pktpool"
)

func TestRing_CapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := New(2000)
	if r.Cap() != 2048 {
		t.Errorf("Cap() = %d, want 2048", r.Cap())
	}
}

func TestRing_EnqueueDequeueFIFO(t *testing.T) {
	r := New(4)
	pool := pktpool.New(4, 16)

	var handles []*pktpool.Handle
	for i := 0; i < 4; i++ {
		h, _ := pool.Alloc()
		h.TimestampNs = int64(i)
		handles = append(handles, h)
		if !r.EnqueueSP(h) {
			t.Fatalf("enqueue %d unexpectedly failed", i)
		}
	}

	if r.EnqueueSP(handles[0]) {
		t.Error("enqueue into a full ring must fail")
	}

	for i := 0; i < 4; i++ {
		h, ok := r.DequeueSC()
		if !ok {
			t.Fatalf("dequeue %d unexpectedly empty", i)
		}
		if h.TimestampNs != int64(i) {
			t.Errorf("dequeue order broken: got %d, want %d", h.TimestampNs, i)
		}
	}

	if _, ok := r.DequeueSC(); ok {
		t.Error("dequeue from an empty ring must report empty")
	}
}

func TestRing_ConcurrentSPSCPreservesOrderAndCount(t *testing.T) {
	const n = 100_000
	r := New(64)
	pool := pktpool.New(n, 8)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			h, err := pool.Alloc()
			if err != nil {
				t.Errorf("alloc %d: %v", i, err)
				return
			}
			h.TimestampNs = int64(i)
			for !r.EnqueueSP(h) {
			}
		}
	}()

	var mismatches int
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			var h *pktpool.Handle
			var ok bool
			for !ok {
				h, ok = r.DequeueSC()
			}
			if h.TimestampNs != int64(i) {
				mismatches++
			}
			pool.Free(h)
		}
	}()

	wg.Wait()
	if mismatches != 0 {
		t.Errorf("%d out-of-order deliveries across %d items", mismatches, n)
	}
}

// TestRing_NeverExceedsCapacity checks the invariant a bounded SPSC ring
// must hold regardless of the enqueue/dequeue interleaving a caller
// chooses: Len() never exceeds Cap().
func TestRing_NeverExceedsCapacity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ring length never exceeds capacity", prop.ForAll(
		func(ops []bool) bool {
			r := New(8)
			pool := pktpool.New(64, 8)
			for _, enqueue := range ops {
				if enqueue {
					if h, err := pool.Alloc(); err == nil {
						if !r.EnqueueSP(h) {
							pool.Free(h)
						}
					}
				} else {
					if h, ok := r.DequeueSC(); ok {
						pool.Free(h)
					}
				}
				if r.Len() > r.Cap() {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(200, gen.Bool()),
	))

	properties.TestingRun(t)
}
