// Package orchestrator implements the gateway's process owner (spec.md
// §4.9, C9): it wires the packet-buffer pool, the HFT ring, the two
// ports, the forwarding loop, the venue adapters/sessions/connections,
// the order-book manager, and the UDP publisher, then drives startup and
// graceful shutdown. Grounded on the teacher's cmd/validator/main.go:
// the same newLogger → construct components → Connect/Subscribe → launch
// worker goroutines → signal-driven graceful-shutdown-with-timeout shape,
// generalized from three exchange clients to the venue-adapter set and
// from an aggregation loop to the dataplane forwarder.
package orchestrator

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"aero-gateway/internal/config"
	"aero-gateway/internal/dataplane/classifier"
	"aero-gateway/internal/dataplane/forwarder"
	"aero-gateway/internal/dataplane/pktpool"
	"aero-gateway/internal/dataplane/port"
	"aero-gateway/internal/dataplane/ring"
	"aero-gateway/internal/logging"
	"aero-gateway/internal/orderbook"
	"aero-gateway/internal/udpfeed"
	"aero-gateway/internal/util/backoff"
	"aero-gateway/internal/venue/adapter"
	"aero-gateway/internal/venue/adapter/bybit"
	"aero-gateway/internal/venue/adapter/okx"
	"aero-gateway/internal/venue/connection"
	"aero-gateway/internal/venue/session"
	"aero-gateway/internal/venueid"
)

// poolSize / poolBufSize size the packet-buffer pool. ringCapacity is the
// spec.md §3 reference HFT ring capacity. queueDepth is the spec.md §4.9
// reference RX/TX descriptor ring depth passed to QueuePort when the
// deployment layer hands the orchestrator no platform-specific port.
const (
	poolSize      = 8192
	poolBufSize   = 2048
	ringCapacity  = 2048
	queueDepth    = 1024
	pollInterval  = 50 * time.Millisecond
	heartbeatTick = 20 * time.Second
)

// shutdownTimeout bounds how long graceful shutdown waits for the
// forwarder worker and venue pollers to notice the stop signal, mirroring
// the teacher's 10-second shutdown deadline in cmd/validator/main.go.
const shutdownTimeout = 10 * time.Second

// venueBinding pairs one venue's adapter with its configured instrument
// list and the market-data channel to subscribe on.
type venueBinding struct {
	id          venueid.ID
	adapter     adapter.Adapter
	instruments []string
	channel     string
}

// Orchestrator owns every long-lived component of a running gateway
// process and sequences their startup and shutdown.
type Orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger
	sinks  *logging.Sinks

	phy  port.Port
	virt port.Port

	pool   *pktpool.Pool
	ring   *ring.Ring
	tracer *classifier.Tracer
	fwd    *forwarder.Forwarder

	publisher *udpfeed.Publisher
	books     *orderbook.Manager

	connections []*connection.Connection

	pollerWG sync.WaitGroup
	pollStop chan struct{}
}

// Options carries everything the deployment layer is responsible for
// handing the core (spec.md §1 "Out of scope: external collaborators"):
// the physical port handle and the user/kernel virtual port handle. If
// either is nil, the orchestrator falls back to an in-memory QueuePort,
// which is adequate for tests and for environments with no bound NIC.
type Options struct {
	Phy  port.Port
	Virt port.Port
}

// New constructs an orchestrator from a loaded configuration and base
// logger. It does not start anything; call Run to execute the full
// startup sequence.
func New(cfg *config.Config, logger *zap.Logger, sinks *logging.Sinks, opts Options) *Orchestrator {
	phy := opts.Phy
	if phy == nil {
		phy = port.NewQueuePort(queueDepth)
	}
	virt := opts.Virt
	if virt == nil {
		virt = port.NewQueuePort(queueDepth)
	}

	var tracer *classifier.Tracer
	if cfg.Logging.DebugLogEnabled {
		tracer = classifier.NewTracer(logger.Named("classifier"))
	}

	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		sinks:    sinks,
		phy:      phy,
		virt:     virt,
		pool:     pktpool.New(poolSize, poolBufSize),
		ring:     ring.New(ringCapacity),
		tracer:   tracer,
		books:    orderbook.NewManager(),
		pollStop: make(chan struct{}),
	}
}

// Run executes spec.md §4.9's full startup sequence, blocks until ctx is
// cancelled or a SIGINT/SIGTERM arrives, then runs the mirrored shutdown
// sequence. It returns the first fatal startup error, if any; a clean
// shutdown returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.cfg.UDP.Enabled {
		pub, err := udpfeed.New(o.cfg.UDP.Address, o.cfg.UDP.Port, o.logger.Named("udpfeed"))
		if err != nil {
			return fmt.Errorf("orchestrator: construct udp publisher: %w", err)
		}
		o.publisher = pub
	}

	if err := o.phy.SetPromiscuous(true); err != nil {
		return fmt.Errorf("orchestrator: enable promiscuous mode: %w", err)
	}

	o.fwd = forwarder.New(o.phy, o.virt, o.pool, o.ring, o.tracer, o.logger.Named("forwarder"))

	bindings := o.buildBindings()
	if err := o.connectVenues(ctx, bindings); err != nil {
		return err
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	var fwdDone sync.WaitGroup
	fwdDone.Add(1)
	go func() {
		defer fwdDone.Done()
		o.fwd.Run()
	}()

	o.pollerWG.Add(1)
	go o.runPollers()

	o.logger.Info("orchestrator started",
		zap.Int("venues", len(o.connections)),
		zap.Bool("udp_feed_enabled", o.cfg.UDP.Enabled))

	<-sigCtx.Done()
	o.logger.Info("orchestrator received shutdown signal")

	return o.shutdown(&fwdDone)
}

// buildBindings resolves spec.md §4.9's "register instruments from
// configuration" step into one venueBinding per venue, each with its
// reference market-data channel (spec.md §4.4's OKX books5 / Bybit
// orderbook.50 defaults).
func (o *Orchestrator) buildBindings() []venueBinding {
	return []venueBinding{
		{id: venueid.OKX, adapter: okx.New(), instruments: o.cfg.OKXInstruments, channel: "books5"},
		{id: venueid.Bybit, adapter: bybit.New(), instruments: o.cfg.BybitInstruments, channel: "orderbook.50"},
	}
}

// connectVenues constructs one session+connection per venue, applies the
// configured retry policy, initiates the connection non-blocking (a
// failed initial dial simply enters the reconnect state machine rather
// than failing startup, per spec.md §4.9's "initiate connections
// (non-blocking)"), and registers every configured instrument.
func (o *Orchestrator) connectVenues(ctx context.Context, bindings []venueBinding) error {
	for _, b := range bindings {
		venueLogger := o.logger.Named(b.id.String())

		sess := session.New(b.adapter.EndpointURL(), "", venueLogger)
		sess.SetRetryEnabled(o.cfg.Retry.Enabled)
		sess.SetBackoff(backoff.New(
			time.Duration(o.cfg.Retry.InitialDelayMs)*time.Millisecond,
			time.Duration(o.cfg.Retry.MaxDelayMs)*time.Millisecond,
			o.cfg.Retry.BackoffMultiplier,
			0,
		).WithMaxAttempts(o.cfg.Retry.MaxAttempts))

		var pub connection.Publisher
		if o.publisher != nil {
			pub = o.publisher
		}
		conn := connection.New(b.id, b.adapter, sess, pub, venueLogger)
		if o.sinks != nil {
			conn.SetSinks(o.sinks.Price, o.sinks.System)
		}

		for _, instrument := range b.instruments {
			if err := conn.Subscribe(instrument, b.channel); err != nil {
				venueLogger.Warn("subscribe recorded but not yet sent", zap.String("instrument", instrument), zap.Error(err))
			}
		}

		if err := conn.Connect(ctx); err != nil {
			venueLogger.Warn("initial connect failed, reconnect scheduled", zap.Error(err))
		}

		o.connections = append(o.connections, conn)
	}
	return nil
}

// runPollers is the orchestrator's own context (spec.md §4.9
// "Scheduling model: the orchestrator runs on a separate context and
// periodically drains venue inbound queues"): it polls every connection's
// inbound queue, applies parsed books to the order-book manager, and
// sends the periodic client heartbeat, until Close requests a stop.
func (o *Orchestrator) runPollers() {
	defer o.pollerWG.Done()

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	heartbeatTicker := time.NewTicker(heartbeatTick)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-o.pollStop:
			return
		case <-pollTicker.C:
			for _, conn := range o.connections {
				conn.Poll(o.onBook(conn))
			}
		case <-heartbeatTicker.C:
			for _, conn := range o.connections {
				if err := conn.SendHeartbeat(); err != nil {
					o.logger.Debug("heartbeat send skipped", zap.Error(err))
				}
			}
		}
	}
}

// onBook closures a connection's venue identity into an Apply call
// against the shared order-book manager; kept as a per-connection
// closure so Poll's callback signature stays venue-agnostic.
func (o *Orchestrator) onBook(conn *connection.Connection) func(*orderbook.ParsedOrderBook) {
	return func(book *orderbook.ParsedOrderBook) {
		o.books.Apply(conn.Venue(), book)
	}
}

// Books exposes the order-book manager for read-only diagnostics (e.g. a
// future stats endpoint); the manager itself is concurrency-safe.
func (o *Orchestrator) Books() *orderbook.Manager { return o.books }

// shutdown mirrors spec.md §4.9's shutdown sequence: exit the forwarding
// loop, close all sessions, stop and close ports, close logging sinks,
// release the pool (the pool has no explicit release beyond letting it be
// garbage collected once every handle drains, matching pktpool.Pool's
// no-op Close-less lifecycle).
func (o *Orchestrator) shutdown(fwdDone *sync.WaitGroup) error {
	o.fwd.Stop()
	close(o.pollStop)

	for _, conn := range o.connections {
		if err := conn.Session().Close(); err != nil {
			o.logger.Warn("session close failed", zap.String("venue", conn.Venue().String()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		fwdDone.Wait()
		o.pollerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		o.logger.Warn("shutdown timed out waiting for workers to exit")
	}

	if err := o.virt.Close(); err != nil {
		o.logger.Warn("virtual port close failed", zap.Error(err))
	}
	if err := o.phy.Close(); err != nil {
		o.logger.Warn("physical port close failed", zap.Error(err))
	}

	if o.publisher != nil {
		if err := o.publisher.Close(); err != nil {
			o.logger.Warn("udp publisher close failed", zap.Error(err))
		}
	}

	if o.sinks != nil {
		if err := o.sinks.Close(); err != nil {
			o.logger.Warn("logging sinks close failed", zap.Error(err))
		}
	}

	o.logger.Info("orchestrator shutdown complete")
	_ = o.logger.Sync()
	return nil
}
