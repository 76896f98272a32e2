// Package port defines the network port abstraction the forwarder drives
// (spec.md §6 "Port interface (provided)"): burst receive/transmit plus a
// link-state accessor, with a simple in-memory implementation used by
// tests and as the orchestrator's default for the user/kernel virtual
// side when no real NIC binding is wired in.
package port

import (
	"sync"

	"aero-gateway/internal/dataplane/pktpool"
)

// Port is the burst RX/TX contract the forwarding loop drives once per
// iteration per direction. The caller is responsible for freeing any
// handles TxBurst did not accept.
type Port interface {
	// RxBurst receives up to max handles from queue into out, returning
	// how many were filled.
	RxBurst(queue int, out []*pktpool.Handle, max int) (n int, err error)
	// TxBurst transmits handles to queue, returning how many were
	// accepted; unaccepted handles remain the caller's to free.
	TxBurst(queue int, handles []*pktpool.Handle) (accepted int, err error)
	// LinkState reports whether the port currently considers its link up.
	LinkState() bool
	// SetPromiscuous toggles promiscuous mode, a no-op for non-NIC-backed
	// implementations.
	SetPromiscuous(enabled bool) error
	// Close releases any resources the port holds.
	Close() error
}

// QueuePort is an in-memory Port backed by one bounded channel per queue,
// standing in for a real NIC/TAP binding. TxBurst and RxBurst on the same
// queue number share one channel, so a QueuePort's RxBurst returns the
// handles it was injected with and the handles it transmitted. The
// orchestrator also uses it as the default port implementation when no
// platform-specific binding is configured.
type QueuePort struct {
	mu        sync.Mutex
	linkUp    bool
	queues    map[int]chan *pktpool.Handle
	queueCap  int
	closed    bool
}

// NewQueuePort constructs a QueuePort with the given per-queue channel
// capacity; queues are created lazily on first use.
func NewQueuePort(queueCap int) *QueuePort {
	return &QueuePort{
		linkUp:   true,
		queues:   make(map[int]chan *pktpool.Handle),
		queueCap: queueCap,
	}
}

func (p *QueuePort) queue(n int) chan *pktpool.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queues[n]
	if !ok {
		q = make(chan *pktpool.Handle, p.queueCap)
		p.queues[n] = q
	}
	return q
}

// Inject pushes a handle directly into queue n's RX side, for tests that
// need to simulate an inbound packet without a peer port.
func (p *QueuePort) Inject(queueNum int, h *pktpool.Handle) bool {
	select {
	case p.queue(queueNum) <- h:
		return true
	default:
		return false
	}
}

// RxBurst drains up to max handles already queued on queue n.
func (p *QueuePort) RxBurst(queueNum int, out []*pktpool.Handle, max int) (int, error) {
	q := p.queue(queueNum)
	n := 0
	for n < max {
		select {
		case h := <-q:
			out[n] = h
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// TxBurst enqueues handles onto queue n, accepting as many as fit without
// blocking.
func (p *QueuePort) TxBurst(queueNum int, handles []*pktpool.Handle) (int, error) {
	q := p.queue(queueNum)
	accepted := 0
	for _, h := range handles {
		select {
		case q <- h:
			accepted++
		default:
			return accepted, nil
		}
	}
	return accepted, nil
}

// LinkState reports the port's simulated link state, settable via
// SetLinkState for tests of the link-state banner.
func (p *QueuePort) LinkState() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linkUp
}

// SetLinkState is a test/diagnostic hook simulating a link flap.
func (p *QueuePort) SetLinkState(up bool) {
	p.mu.Lock()
	p.linkUp = up
	p.mu.Unlock()
}

// SetPromiscuous is a no-op for the in-memory port; it exists only to
// satisfy the Port interface.
func (p *QueuePort) SetPromiscuous(bool) error { return nil }

// Close marks the port closed; further Rx/Tx calls still operate on the
// underlying channels but a closed port should not be driven again by a
// well-behaved caller.
func (p *QueuePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
