// Package adapter defines the venue-adapter capability set (spec.md §4.4):
// the small surface each exchange's wire format must be translated through
// so that the session and connection layers stay venue-agnostic, grounded
// on the teacher's per-exchange client/parser split
// (internal/exchange/okx, internal/exchange/bittap).
package adapter

import "aero-gateway/internal/orderbook"

// Adapter is implemented once per venue. None of its methods touch the
// network; they translate between the venue's wire bytes and the
// gateway's venue-neutral types.
type Adapter interface {
	// EndpointURL is the WebSocket URL the session dials.
	EndpointURL() string
	// SubscribeMsg builds the text frame that subscribes to one
	// (instrument, channel) pair.
	SubscribeMsg(instrument, channel string) ([]byte, error)
	// UnsubscribeMsg builds the text frame that cancels a subscription.
	UnsubscribeMsg(instrument, channel string) ([]byte, error)
	// PongMsg builds the reply frame for an inbound ping. pingPayload is
	// the raw bytes of the ping message, for venues whose pong must echo
	// it; venues with a fixed pong literal ignore it.
	PongMsg(pingPayload []byte) []byte
	// PingMsg builds the client-initiated heartbeat frame this gateway
	// sends to the venue (spec.md §4.6 send_heartbeat).
	PingMsg() []byte
	// IsPing reports whether raw is a server-initiated ping.
	IsPing(raw []byte) bool
	// IsSubscriptionAck reports whether raw is a subscribe/unsubscribe
	// confirmation (or error) rather than market data.
	IsSubscriptionAck(raw []byte) bool
	// ParseOrderBook attempts to interpret raw as an order-book message.
	// The second return value is false when raw is not an order-book
	// message at all; a malformed order-book message is a non-fatal
	// parse failure reported the same way.
	ParseOrderBook(raw []byte) (*orderbook.ParsedOrderBook, bool)
}
