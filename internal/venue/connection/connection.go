// Package connection implements the venue connection (spec.md §4.6): the
// glue between one WebSocket session, one venue adapter, and the set of
// subscriptions that must survive a reconnect. Grounded on the teacher's
// Client.Run/readLoop dispatch loop, split out of the per-venue client so
// the dispatch logic is shared across adapters.
package connection

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"aero-gateway/internal/logging"
	"aero-gateway/internal/orderbook"
	"aero-gateway/internal/venue/adapter"
	"aero-gateway/internal/venue/session"
	"aero-gateway/internal/venueid"
)

// subscription is one (instrument, channel) pair recorded by Subscribe.
type subscription struct {
	instrument string
	channel    string
}

// Publisher is the narrow UDP-publisher capability a connection needs;
// satisfied by udpfeed.Publisher.
type Publisher interface {
	Publish(venue venueid.ID, book *orderbook.ParsedOrderBook) error
}

// Connection owns exactly one session/adapter pair plus the subscriptions
// that must be replayed whenever the session reconnects.
type Connection struct {
	venue   venueid.ID
	adapter adapter.Adapter
	session *session.Session
	logger  *zap.Logger
	pub     Publisher

	priceSink  *logging.Sink
	systemSink *logging.Sink

	mu            sync.Mutex
	subscriptions []subscription
}

// New constructs a connection and binds the session's reconnect callback
// to Resubscribe, matching spec.md §4.6: "the session's reconnect
// callback is bound, at construction, to resubscribe()".
func New(venue venueid.ID, a adapter.Adapter, sess *session.Session, pub Publisher, logger *zap.Logger) *Connection {
	c := &Connection{
		venue:   venue,
		adapter: a,
		session: sess,
		pub:     pub,
		logger:  logger,
	}
	sess.SetOnReconnect(c.Resubscribe)
	return c
}

// Session exposes the underlying session, mainly for the orchestrator to
// call Close.
func (c *Connection) Session() *session.Session { return c.session }

// Venue reports which venue this connection is bound to, for callers that
// key off venue identity (e.g. the order-book manager, logging).
func (c *Connection) Venue() venueid.ID { return c.venue }

// SetSinks wires the named price/system logging sinks this connection
// writes to. Either may be nil, in which case the corresponding record is
// simply skipped; a Connection built without SetSinks writes nothing,
// matching Publisher's optional-collaborator pattern.
func (c *Connection) SetSinks(price, system *logging.Sink) {
	c.priceSink = price
	c.systemSink = system
}

// systemRecord is one LOG_SYSTEM-equivalent line: a venue connection
// lifecycle event (connect, reconnect, subscribe failure), grounded on the
// teacher's exchange clients driving LOG_SYSTEM on the same events.
type systemRecord struct {
	Venue  string `json:"venue"`
	Event  string `json:"event"`
	Detail string `json:"detail,omitempty"`
}

func (c *Connection) writeSystem(event, detail string) {
	if c.systemSink == nil {
		return
	}
	_ = c.systemSink.Write(systemRecord{Venue: c.venue.String(), Event: event, Detail: detail})
}

// priceRecord is one LOG_PRICE-equivalent line: a successfully parsed
// order-book update, grounded on the teacher's exchange adapters driving
// LOG_PRICE on every parse.
type priceRecord struct {
	Venue       string `json:"venue"`
	Instrument  string `json:"instrument"`
	Bids        int    `json:"bids"`
	Asks        int    `json:"asks"`
	IsSnapshot  bool   `json:"is_snapshot"`
	TimestampMs uint64 `json:"timestamp_ms"`
}

func (c *Connection) writePrice(book *orderbook.ParsedOrderBook) {
	if c.priceSink == nil {
		return
	}
	_ = c.priceSink.Write(priceRecord{
		Venue:       c.venue.String(),
		Instrument:  book.Instrument,
		Bids:        len(book.Bids),
		Asks:        len(book.Asks),
		IsSnapshot:  book.IsSnapshot,
		TimestampMs: book.TimestampMs,
	})
}

// Connect dials the underlying session and records the attempt on the
// system sink before and, on failure, after dialing, the way the teacher's
// OkxConnection::connect logs around the dial.
func (c *Connection) Connect(ctx context.Context) error {
	c.writeSystem("connecting", c.adapter.EndpointURL())
	if err := c.session.Connect(ctx); err != nil {
		c.writeSystem("connect_failed", err.Error())
		return err
	}
	return nil
}

// Subscribe records the subscription and, if currently connected, sends
// the subscribe frame immediately; otherwise it relies on Resubscribe to
// drain the list once the session reconnects.
func (c *Connection) Subscribe(instrument, channel string) error {
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, subscription{instrument: instrument, channel: channel})
	c.mu.Unlock()

	if !c.session.IsConnected() {
		return nil
	}
	return c.sendSubscribe(instrument, channel)
}

func (c *Connection) sendSubscribe(instrument, channel string) error {
	msg, err := c.adapter.SubscribeMsg(instrument, channel)
	if err != nil {
		c.writeSystem("subscribe_failed", instrument+"/"+channel+": "+err.Error())
		return err
	}
	if err := c.session.Send(msg); err != nil {
		c.writeSystem("subscribe_failed", instrument+"/"+channel+": "+err.Error())
		return err
	}
	return nil
}

// Resubscribe re-sends every recorded subscription. Bound as the
// session's on-reconnect callback, matching the teacher's connection
// classes logging "Reconnection detected. Resubscribing..." before
// replaying the subscription list.
func (c *Connection) Resubscribe() {
	c.writeSystem("reconnected", "resubscribing")

	c.mu.Lock()
	subs := make([]subscription, len(c.subscriptions))
	copy(subs, c.subscriptions)
	c.mu.Unlock()

	for _, s := range subs {
		if err := c.sendSubscribe(s.instrument, s.channel); err != nil && c.logger != nil {
			c.logger.Warn("resubscribe failed",
				zap.String("venue", c.venue.String()),
				zap.String("instrument", s.instrument),
				zap.String("channel", s.channel),
				zap.Error(err))
		}
	}
}

// SendHeartbeat sends the venue-specific client ping.
func (c *Connection) SendHeartbeat() error {
	return c.session.Send(c.adapter.PingMsg())
}

// Poll drains the session's inbound queue once, dispatching each message
// in order: ping → pong reply, subscription ack → log, otherwise attempt
// an order-book parse. On a successful parse the book is published over
// UDP (if a publisher is configured) and onBook is invoked.
func (c *Connection) Poll(onBook func(*orderbook.ParsedOrderBook)) {
	for {
		raw, ok := c.session.NextInbound()
		if !ok {
			return
		}
		c.dispatch(raw, onBook)
	}
}

func (c *Connection) dispatch(raw []byte, onBook func(*orderbook.ParsedOrderBook)) {
	switch {
	case c.adapter.IsPing(raw):
		if err := c.session.Send(c.adapter.PongMsg(raw)); err != nil && c.logger != nil {
			c.logger.Warn("pong reply failed", zap.String("venue", c.venue.String()), zap.Error(err))
		}
		return
	case c.adapter.IsSubscriptionAck(raw):
		if c.logger != nil {
			c.logger.Debug("subscription ack", zap.String("venue", c.venue.String()), zap.ByteString("raw", raw))
		}
		return
	}

	book, ok := c.adapter.ParseOrderBook(raw)
	if !ok {
		return
	}

	c.writePrice(book)

	if c.pub != nil {
		if err := c.pub.Publish(c.venue, book); err != nil && c.logger != nil {
			c.logger.Warn("udp publish failed", zap.String("venue", c.venue.String()), zap.Error(err))
		}
	}
	if onBook != nil {
		onBook(book)
	}
}
