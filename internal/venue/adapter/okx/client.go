package okx

import (
	"fmt"
	"math"
	"strconv"

	"github.com/sugawarayuuta/sonnet"

	"aero-gateway/internal/orderbook"
	"aero-gateway/internal/venueid"
)

const endpointURL = "wss://ws.okx.com:8443/ws/v5/public"

// channelDefaultsSnapshot lists channels whose push messages omit the
// top-level "action" field and must be treated as full snapshots
// (spec.md §4.4 "default to snapshot for channel books5 when absent").
var channelDefaultsSnapshot = map[string]bool{
	"books5": true,
}

// Adapter implements adapter.Adapter for OKX's public market-data feed.
type Adapter struct{}

// New constructs the OKX adapter. It carries no state; all behaviour is
// pure translation between wire bytes and venue-neutral types.
func New() *Adapter {
	return &Adapter{}
}

// VenueID identifies this adapter's venue for UDP wire encoding.
func (a *Adapter) VenueID() venueid.ID { return venueid.OKX }

// EndpointURL returns the fixed OKX public WebSocket endpoint.
func (a *Adapter) EndpointURL() string { return endpointURL }

// SubscribeMsg builds {"op":"subscribe","args":[{"channel":C,"instId":I}]}.
func (a *Adapter) SubscribeMsg(instrument, channel string) ([]byte, error) {
	return a.opMsg("subscribe", instrument, channel)
}

// UnsubscribeMsg builds the matching unsubscribe frame.
func (a *Adapter) UnsubscribeMsg(instrument, channel string) ([]byte, error) {
	return a.opMsg("unsubscribe", instrument, channel)
}

func (a *Adapter) opMsg(op, instrument, channel string) ([]byte, error) {
	req := subscribeRequest{
		Op:   op,
		Args: []subscribeArg{{Channel: channel, InstId: instrument}},
	}
	b, err := sonnet.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("okx: marshal %s request: %w", op, err)
	}
	return b, nil
}

// PongMsg returns the plain-text "pong" literal; the payload is ignored
// since OKX's ping has no echo content.
func (a *Adapter) PongMsg(_ []byte) []byte {
	return []byte("pong")
}

// PingMsg returns the plain-text "ping" literal this gateway sends as its
// own client-initiated heartbeat.
func (a *Adapter) PingMsg() []byte {
	return []byte("ping")
}

// IsPing reports whether raw is exactly the four-byte literal "ping".
func (a *Adapter) IsPing(raw []byte) bool {
	return string(raw) == "ping"
}

// IsSubscriptionAck reports whether raw carries a subscribe/unsubscribe/
// error event, or an op=subscribe echo.
func (a *Adapter) IsSubscriptionAck(raw []byte) bool {
	var ack subscriptionAck
	if err := sonnet.Unmarshal(raw, &ack); err != nil {
		return false
	}
	switch ack.Event {
	case "subscribe", "unsubscribe", "error":
		return true
	}
	return ack.Op == "subscribe"
}

// ParseOrderBook decodes a books-l2-tbt / books5 / books push into the
// venue-neutral order-book shape.
func (a *Adapter) ParseOrderBook(raw []byte) (*orderbook.ParsedOrderBook, bool) {
	var msg booksMessage
	if err := sonnet.Unmarshal(raw, &msg); err != nil {
		return nil, false
	}

	switch msg.Arg.Channel {
	case "books-l2-tbt", "books5", "books":
	default:
		return nil, false
	}
	if len(msg.Data) == 0 {
		return nil, false
	}

	isSnapshot := msg.Action == "snapshot"
	if msg.Action == "" && channelDefaultsSnapshot[msg.Arg.Channel] {
		isSnapshot = true
	}

	d := msg.Data[0]
	bids, err := convertLevels(d.Bids)
	if err != nil {
		return nil, false
	}
	asks, err := convertLevels(d.Asks)
	if err != nil {
		return nil, false
	}

	tsMs, _ := strconv.ParseUint(d.Ts, 10, 64)

	return &orderbook.ParsedOrderBook{
		Instrument:  msg.Arg.InstId,
		Bids:        bids,
		Asks:        asks,
		IsSnapshot:  isSnapshot,
		TimestampMs: tsMs,
	}, true
}

// convertLevels converts OKX's [priceStr, sizeStr, _, _] rows into
// PriceInt/Size level pairs.
func convertLevels(rows [][]string) ([]orderbook.Level, error) {
	out := make([]orderbook.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("okx: level row has %d fields, want >= 2", len(row))
		}
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("okx: parse price %q: %w", row[0], err)
		}
		size, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("okx: parse size %q: %w", row[1], err)
		}
		out = append(out, orderbook.Level{
			PriceInt: uint64(math.Round(price * orderbook.PriceScale)),
			Size:     size,
		})
	}
	return out, nil
}
