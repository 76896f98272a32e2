// Package forwarder implements the forwarding dataplane (spec.md §4.2):
// a single busy-poll worker that classifies packets from the physical
// port, duplicates FAST-verdict handles onto the HFT ring while still
// unconditionally forwarding the original to the kernel-facing virtual
// port, and mirrors the virtual port's output back onto the wire.
// Grounded line-for-line on original_source/src/core/forwarding.cpp's
// lcore_forward_loop, translated from DPDK's mbuf/ring API to the
// pktpool/port/ring packages.
package forwarder

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"aero-gateway/internal/dataplane/classifier"
	"aero-gateway/internal/dataplane/pktpool"
	"aero-gateway/internal/dataplane/port"
	"aero-gateway/internal/dataplane/ring"
)

// burstSize is the reference N from spec.md §4.2.
const burstSize = 32

// statsInterval is the reference ≥5-second cadence for periodic counters.
const statsInterval = 5 * time.Second

// ringFailLogStride throttles "ring enqueue failed" logging to every
// 100th failure, per original_source's fail_count++ % 100 == 0 and
// SPEC_FULL.md's ring-full-failure-sampling supplement.
const ringFailLogStride = 100

// Stats are the periodic counters spec.md §4.2 step 5 requires.
type Stats struct {
	RxPhy  uint64
	TxVirt uint64
	RxVirt uint64
	TxPhy  uint64
}

// Forwarder owns the single dataplane worker loop.
type Forwarder struct {
	phy    port.Port
	virt   port.Port
	pool   *pktpool.Pool
	ring   *ring.Ring
	clsf   *classifier.Tracer
	logger *zap.Logger

	stop int32

	rxPhyTotal  uint64
	txVirtTotal uint64
	rxVirtTotal uint64
	txPhyTotal  uint64
	ringDropped uint64
}

// New constructs a forwarder over the given physical/virtual ports,
// packet pool, and HFT ring. tracer may be nil to disable classifier
// debug tracing.
func New(phy, virt port.Port, pool *pktpool.Pool, r *ring.Ring, tracer *classifier.Tracer, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		phy:    phy,
		virt:   virt,
		pool:   pool,
		ring:   r,
		clsf:   tracer,
		logger: logger,
	}
}

// Stop requests the next loop iteration to exit. Idempotent.
func (f *Forwarder) Stop() {
	atomic.StoreInt32(&f.stop, 1)
}

func (f *Forwarder) stopped() bool {
	return atomic.LoadInt32(&f.stop) == 1
}

// Stats returns a snapshot of the forwarder's cumulative counters.
func (f *Forwarder) Stats() Stats {
	return Stats{
		RxPhy:  atomic.LoadUint64(&f.rxPhyTotal),
		TxVirt: atomic.LoadUint64(&f.txVirtTotal),
		RxVirt: atomic.LoadUint64(&f.rxVirtTotal),
		TxPhy:  atomic.LoadUint64(&f.txPhyTotal),
	}
}

// Run busy-polls until Stop is called. It must run on its own goroutine;
// the caller is responsible for pinning it to a dedicated core via the
// platform's affinity mechanism if that matters for the deployment.
func (f *Forwarder) Run() {
	f.logLinkState()

	pktBurst := make([]*pktpool.Handle, burstSize)
	kernelTxBurst := make([]*pktpool.Handle, burstSize)
	virtRxBurst := make([]*pktpool.Handle, burstSize)

	lastStats := time.Now()

	for !f.stopped() {
		f.step(pktBurst, kernelTxBurst, virtRxBurst)

		if time.Since(lastStats) >= statsInterval {
			f.logStats()
			lastStats = time.Now()
		}
	}
}

// step performs one full forwarding iteration: physical ingress +
// classify + kernel egress, then virtual ingress + physical egress,
// matching forwarding.cpp's lcore_forward_loop body exactly.
func (f *Forwarder) step(pktBurst, kernelTxBurst, virtRxBurst []*pktpool.Handle) {
	// 1. Ingress burst (physical) + classify + dispatch.
	nRx, err := f.phy.RxBurst(0, pktBurst, burstSize)
	if err != nil && f.logger != nil {
		f.logger.Warn("physical rx_burst error", zap.Error(err))
	}
	atomic.AddUint64(&f.rxPhyTotal, uint64(nRx))

	kIdx := 0
	if nRx > 0 {
		nowNs := time.Now().UnixNano()
		for i := 0; i < nRx; i++ {
			h := pktBurst[i]
			h.TimestampNs = nowNs

			verdict := classifier.Classify(h, f.clsf)
			if verdict == classifier.Fast {
				f.pool.RefcountInc(h, 1)
				if !f.ring.EnqueueSP(h) {
					f.pool.Free(h)
					f.countRingDrop()
				}
			}
			kernelTxBurst[kIdx] = h
			kIdx++
		}
	}

	// 2. Egress to kernel (virtual port).
	if kIdx > 0 {
		accepted, err := f.virt.TxBurst(0, kernelTxBurst[:kIdx])
		if err != nil && f.logger != nil {
			f.logger.Warn("virtual tx_burst error", zap.Error(err))
		}
		atomic.AddUint64(&f.txVirtTotal, uint64(accepted))
		for i := accepted; i < kIdx; i++ {
			f.pool.Free(kernelTxBurst[i])
		}
	}

	// 3. Ingress burst (virtual).
	nVirtRx, err := f.virt.RxBurst(0, virtRxBurst, burstSize)
	if err != nil && f.logger != nil {
		f.logger.Warn("virtual rx_burst error", zap.Error(err))
	}
	atomic.AddUint64(&f.rxVirtTotal, uint64(nVirtRx))

	// 4. Egress to physical.
	if nVirtRx > 0 {
		accepted, err := f.phy.TxBurst(0, virtRxBurst[:nVirtRx])
		if err != nil && f.logger != nil {
			f.logger.Warn("physical tx_burst error", zap.Error(err))
		}
		atomic.AddUint64(&f.txPhyTotal, uint64(accepted))
		for i := accepted; i < nVirtRx; i++ {
			f.pool.Free(virtRxBurst[i])
		}
	}
}

func (f *Forwarder) countRingDrop() {
	n := atomic.AddUint64(&f.ringDropped, 1)
	if n%ringFailLogStride == 0 && f.logger != nil {
		f.logger.Warn("hft ring enqueue failed", zap.Uint64("total_dropped", n))
	}
}

func (f *Forwarder) logLinkState() {
	if f.logger == nil {
		return
	}
	f.logger.Info("forwarder starting",
		zap.Bool("physical_link_up", f.phy.LinkState()),
		zap.Bool("virtual_link_up", f.virt.LinkState()))
}

func (f *Forwarder) logStats() {
	if f.logger == nil {
		return
	}
	s := f.Stats()
	f.logger.Info("forwarding stats",
		zap.Uint64("rx_phy", s.RxPhy),
		zap.Uint64("tx_virt", s.TxVirt),
		zap.Uint64("rx_virt", s.RxVirt),
		zap.Uint64("tx_phy", s.TxPhy))
}
