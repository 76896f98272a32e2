package udpfeed

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"aero-gateway/internal/orderbook"
	"aero-gateway/internal/venueid"
)

// publishBaseTime/publishBaseUnixNs anchor a monotonic-clock-plus-offset
// timestamp (baseUnixNs + time.Since(baseTime)) instead of calling
// time.Now().UnixNano() directly, so a wall-clock jump (NTP step, manual
// adjustment) mid-process cannot make one frame's timestamp appear to
// precede an earlier frame's.
var (
	publishBaseTime   = time.Now()
	publishBaseUnixNs = publishBaseTime.UnixNano()
)

// nowNano returns the current Unix nanosecond timestamp via the
// monotonic-clock-anchored scheme above.
func nowNano() int64 {
	return publishBaseUnixNs + time.Since(publishBaseTime).Nanoseconds()
}

// Publisher owns one non-blocking IPv4 UDP socket and serializes every
// publish into a single sendto, reusing a per-publisher buffer the way
// the original's thread_local buffer avoided per-call allocation. A
// Publisher is safe for concurrent use; the reusable buffer is guarded
// by mu since, unlike the original's one-thread-per-exchange model, this
// gateway may call Publish from more than one venue connection. Frame
// timestamps come from nowNano, immune to wall-clock jumps.
type Publisher struct {
	conn   *net.UDPConn
	logger *zap.Logger

	mu  sync.Mutex
	buf []byte

	sent       uint64
	dropped    uint64
	errorCount uint64
}

// New dials a non-blocking UDP socket targeting address:port. Disabled
// feeds should simply not construct a Publisher; callers check a nil
// Publisher before calling Publish.
func New(address string, port int, logger *zap.Logger) (*Publisher, error) {
	raddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, fmt.Errorf("udpfeed: resolve %s:%d: %w", address, port, err)
	}

	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("udpfeed: dial %s:%d: %w", address, port, err)
	}
	if err := setNonblock(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("udpfeed: set nonblocking %s:%d: %w", address, port, err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger,
		buf:    make([]byte, 1024),
	}, nil
}

// Publish serializes book as one datagram and sends it with a single
// sendto. EAGAIN/EWOULDBLOCK are silently dropped (the consumer is
// responsible for pacing); other errors are counted and returned.
func (p *Publisher) Publish(venue venueid.ID, book *orderbook.ParsedOrderBook) error {
	p.mu.Lock()
	p.buf = Encode(p.buf, book, venue, nowNano())
	frame := p.buf
	err := p.writeNonblock(frame)
	p.mu.Unlock()

	if err == nil {
		atomic.AddUint64(&p.sent, 1)
		return nil
	}

	if isWouldBlock(err) {
		atomic.AddUint64(&p.dropped, 1)
		return nil
	}

	atomic.AddUint64(&p.errorCount, 1)
	if p.logger != nil {
		p.logger.Warn("udp publish failed", zap.String("venue", venue.String()), zap.Error(err))
	}
	return err
}

// writeNonblock issues a single raw sendto against the socket's fd,
// bypassing net.UDPConn.Write's default behavior of parking the caller on
// the runtime netpoller until the socket is writable. Matching the
// original's fcntl(O_NONBLOCK) contract requires the EAGAIN from that one
// attempt to reach the caller instead of being retried transparently.
func (p *Publisher) writeNonblock(frame []byte) error {
	rc, err := p.conn.SyscallConn()
	if err != nil {
		return err
	}

	var writeErr error
	ctrlErr := rc.Write(func(fd uintptr) bool {
		_, writeErr = syscall.Write(int(fd), frame)
		return true
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return writeErr
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// setNonblock puts the socket's fd into O_NONBLOCK, matching the original's
// explicit fcntl(socket_fd_, F_SETFL, flags | O_NONBLOCK) call. Go's
// runtime already manages the fd non-blocking internally for netpoller
// integration, but this keeps the socket's own flag consistent with the
// non-blocking contract writeNonblock relies on.
func setNonblock(conn *net.UDPConn) error {
	rc, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	ctrlErr := rc.Control(func(fd uintptr) {
		sockErr = syscall.SetNonblock(int(fd), true)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// Stats returns cumulative send/drop/error counters for diagnostics.
type Stats struct {
	Sent    uint64
	Dropped uint64
	Errors  uint64
}

// Stats returns a snapshot of the publisher's cumulative counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Sent:    atomic.LoadUint64(&p.sent),
		Dropped: atomic.LoadUint64(&p.dropped),
		Errors:  atomic.LoadUint64(&p.errorCount),
	}
}

// Close releases the underlying socket.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
