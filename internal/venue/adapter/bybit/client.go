package bybit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sugawarayuuta/sonnet"

	"aero-gateway/internal/orderbook"
	"aero-gateway/internal/venueid"
)

const endpointURL = "wss://stream.bybit.com/v5/public/linear"

// Adapter implements adapter.Adapter for Bybit's public linear
// market-data feed.
type Adapter struct{}

// New constructs the Bybit adapter.
func New() *Adapter {
	return &Adapter{}
}

// VenueID identifies this adapter's venue for UDP wire encoding.
func (a *Adapter) VenueID() venueid.ID { return venueid.Bybit }

// EndpointURL returns the linear public WebSocket endpoint, which the
// orchestrator dials for every Bybit instrument; the spot endpoint is not
// used.
func (a *Adapter) EndpointURL() string { return endpointURL }

// SubscribeMsg builds {"op":"subscribe","args":["C.I"]}: channel and
// instrument joined by a dot.
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
		Args: []string{channel + "." + instrument},
	}
	b, err := sonnet.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("bybit: marshal %s request: %w", op, err)
	}
	return b, nil
}

// PongMsg returns {"op":"pong"}; the payload is ignored.
func (a *Adapter) PongMsg(_ []byte) []byte {
	return []byte(`{"op":"pong"}`)
}

// PingMsg returns {"op":"ping"}, this gateway's own client-initiated
// heartbeat frame.
func (a *Adapter) PingMsg() []byte {
	return []byte(`{"op":"ping"}`)
}

// IsPing reports op=ping with no success field, distinguishing a
// server-sent ping from a server-confirmed outbound ping ack.
func (a *Adapter) IsPing(raw []byte) bool {
	var m pingOrAck
	if err := sonnet.Unmarshal(raw, &m); err != nil {
		return false
	}
	return m.Op == "ping" && m.Success == nil
}

// IsSubscriptionAck reports a decoded success flag alongside
// op ∈ {subscribe, unsubscribe}.
func (a *Adapter) IsSubscriptionAck(raw []byte) bool {
	var m pingOrAck
	if err := sonnet.Unmarshal(raw, &m); err != nil {
		return false
	}
	if m.Success == nil {
		return false
	}
	return m.Op == "subscribe" || m.Op == "unsubscribe"
}

// ParseOrderBook decodes an orderbook.N.SYMBOL push into the venue-neutral
// order-book shape.
func (a *Adapter) ParseOrderBook(raw []byte) (*orderbook.ParsedOrderBook, bool) {
	var msg topicMessage
	if err := sonnet.Unmarshal(raw, &msg); err != nil {
		return nil, false
	}
	if !strings.Contains(msg.Topic, "orderbook") {
		return nil, false
	}

	lastDot := strings.LastIndexByte(msg.Topic, '.')
	if lastDot < 0 {
		return nil, false
	}
	instrument := msg.Topic[lastDot+1:]

	bids, err := convertLevels(msg.Data.B)
	if err != nil {
		return nil, false
	}
	asks, err := convertLevels(msg.Data.A)
	if err != nil {
		return nil, false
	}

	return &orderbook.ParsedOrderBook{
		Instrument:  instrument,
		Bids:        bids,
		Asks:        asks,
		IsSnapshot:  msg.Type == "snapshot",
		TimestampMs: msg.Data.Ts,
	}, true
}

// convertLevels converts Bybit's [priceStr, sizeStr] rows into
// PriceInt/Size level pairs.
func convertLevels(rows [][]string) ([]orderbook.Level, error) {
	out := make([]orderbook.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("bybit: level row has %d fields, want >= 2", len(row))
		}
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bybit: parse price %q: %w", row[0], err)
		}
		size, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bybit: parse size %q: %w", row[1], err)
		}
		out = append(out, orderbook.Level{
			PriceInt: uint64(math.Round(price * orderbook.PriceScale)),
			Size:     size,
		})
	}
	return out, nil
}
