// Package session implements the venue-agnostic WebSocket session (spec.md
// §4.5): one TLS-over-TCP-over-WebSocket stream, a single driver goroutine
// doing all socket reads and reconnect dials, a bounded inbound queue
// drained by the application poller, and a backoff-driven reconnect state
// machine. The initial dial runs on Connect's caller, and Send writes on
// its caller's goroutine, serialized by a mutex rather than by the driver.
// Grounded on the teacher's internal/exchange/okx.Client readLoop/
// heartbeatLoop/reconnect split, generalized away from one fixed venue.
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aero-gateway/internal/util/backoff"
)

// inboundQueueCap is the reference cap from spec.md §4.5: messages beyond
// this are dropped, not blocked on.
const inboundQueueCap = 10_000

// dropLogStride logs a warning every Nth drop rather than on every drop.
const dropLogStride = 1_000

// State is a reconnect state-machine state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	WaitingRetry
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case WaitingRetry:
		return "waiting_retry"
	default:
		return "disconnected"
	}
}

// Session owns exactly one WebSocket connection to a venue endpoint.
type Session struct {
	url    string
	origin string
	logger *zap.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	state int32 // State, accessed atomically

	inbound chan []byte
	dropped uint64

	backoff      *backoff.Backoff
	retryEnabled bool

	onReconnectMu sync.Mutex
	onReconnect   func()

	closed int32

	cancelDriver context.CancelFunc
}

// New constructs a session bound to url. origin is sent as the WebSocket
// handshake's Origin header; pass "" to omit it.
func New(url, origin string, logger *zap.Logger) *Session {
	return &Session{
		url:          url,
		origin:       origin,
		logger:       logger,
		inbound:      make(chan []byte, inboundQueueCap),
		backoff:      backoff.NewDefault(),
		retryEnabled: true,
	}
}

// SetBackoff overrides the default reconnect backoff policy. Must be
// called before Connect; the driver reads it without further locking.
func (s *Session) SetBackoff(bo *backoff.Backoff) {
	s.backoff = bo
}

// SetRetryEnabled toggles automatic reconnection. When disabled, the
// session gives up and stays DISCONNECTED after the first failure,
// mirroring WS_RETRY_ENABLED=false. Must be called before Connect.
func (s *Session) SetRetryEnabled(enabled bool) {
	s.retryEnabled = enabled
}

// SetOnReconnect registers the callback invoked every time the session
// transitions into CONNECTED as the result of a reconnect (not the
// initial connect).
func (s *Session) SetOnReconnect(fn func()) {
	s.onReconnectMu.Lock()
	s.onReconnect = fn
	s.onReconnectMu.Unlock()
}

// IsConnected reports whether the session currently believes it has a
// live connection.
func (s *Session) IsConnected() bool {
	return State(atomic.LoadInt32(&s.state)) == Connected
}

// State returns the session's current reconnect state-machine state.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Connect performs the initial dial and starts the driver's read loop.
// If the dial fails, the error is returned and the driver retries in the
// background under the backoff policy. ctx governs the lifetime of the
// driver; cancelling it is equivalent to Close.
func (s *Session) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return fmt.Errorf("session: closed")
	}
	driverCtx, cancel := context.WithCancel(ctx)
	s.cancelDriver = cancel

	if err := s.dial(driverCtx); err != nil {
		atomic.StoreInt32(&s.state, int32(Disconnected))
		go s.readLoop(driverCtx)
		return err
	}

	go s.readLoop(driverCtx)
	return nil
}

func (s *Session) dial(ctx context.Context) error {
	atomic.StoreInt32(&s.state, int32(Connecting))

	header := http.Header{}
	if s.origin != "" {
		header.Set("Origin", s.origin)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("session: dial %s: %w", s.url, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	atomic.StoreInt32(&s.state, int32(Connected))
	s.backoff.Reset()
	return nil
}

// readLoop is the driver: it owns conn, reposts reads, and feeds the
// inbound queue until ctx is cancelled or Close is called.
func (s *Session) readLoop(ctx context.Context) {
	wasReconnect := false

	for {
		if atomic.LoadInt32(&s.closed) == 1 {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.scheduleReconnect(ctx, true) {
				return
			}
			wasReconnect = true
			continue
		}

		if wasReconnect {
			s.fireOnReconnect()
			wasReconnect = false
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("session read error", zap.String("url", s.url), zap.Error(err))
			}
			s.closeConn()
			if !s.scheduleReconnect(ctx, true) {
				return
			}
			wasReconnect = true
			continue
		}

		select {
		case s.inbound <- data:
		default:
			s.countDrop()
		}
	}
}

func (s *Session) countDrop() {
	n := atomic.AddUint64(&s.dropped, 1)
	if n%dropLogStride == 0 && s.logger != nil {
		s.logger.Warn("session inbound queue full, dropping messages",
			zap.String("url", s.url), zap.Uint64("total_dropped", n))
	}
}

// scheduleReconnect waits out the backoff delay and reconnects. It returns
// false if the context was cancelled or max_attempts was exhausted (the
// session gives up and remains DISCONNECTED).
func (s *Session) scheduleReconnect(ctx context.Context, countAttempt bool) bool {
	atomic.StoreInt32(&s.state, int32(WaitingRetry))

	if !s.retryEnabled || s.backoff.Exhausted() {
		atomic.StoreInt32(&s.state, int32(Disconnected))
		if s.logger != nil {
			s.logger.Error("session exhausted max reconnect attempts, giving up",
				zap.String("url", s.url))
		}
		return false
	}

	delay := s.backoff.Next()
	if s.logger != nil {
		s.logger.Info("session scheduling reconnect",
			zap.String("url", s.url), zap.Duration("delay", delay))
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
	}

	if err := s.dial(ctx); err != nil {
		if s.logger != nil {
			s.logger.Warn("session reconnect failed", zap.String("url", s.url), zap.Error(err))
		}
		return true
	}
	return true
}

func (s *Session) fireOnReconnect() {
	s.onReconnectMu.Lock()
	fn := s.onReconnect
	s.onReconnectMu.Unlock()
	if fn != nil {
		fn()
	}
}

// Send writes a text frame, serialized against concurrent writers by
// connMu (gorilla/websocket forbids concurrent writers on one conn). A
// write failure schedules a reconnect the next time the driver notices
// conn is unusable; here it simply closes the stale connection.
func (s *Session) Send(data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("session: not connected")
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

// NextInbound returns the next queued message, or ok=false if the queue
// is currently empty. Non-blocking, matching the C5 poller contract.
func (s *Session) NextInbound() (data []byte, ok bool) {
	select {
	case data = <-s.inbound:
		return data, true
	default:
		return nil, false
	}
}

// DroppedCount reports how many inbound messages have been dropped for
// exceeding the queue cap.
func (s *Session) DroppedCount() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// SimulateNetworkFailure closes the underlying connection as if the
// network had failed, exercising the identical retry path a real failure
// would take. Test seam only.
func (s *Session) SimulateNetworkFailure() {
	s.closeConn()
}

func (s *Session) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Close terminates the driver; further Send/Connect calls do nothing and
// return an error.
func (s *Session) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if s.cancelDriver != nil {
		s.cancelDriver()
	}
	s.closeConn()
	atomic.StoreInt32(&s.state, int32(Disconnected))
	return nil
}
