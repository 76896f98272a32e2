// Package orderbook maintains per-(venue, instrument) price-ordered order
// books and the manager that owns them, grounded on the teacher's
// internal/core/model.BookEvent shape but restructured around an ordered
// red-black-tree map per side (spec.md §3 "Order book") instead of a flat
// snapshot struct.
package orderbook

import "math"

// PriceScale is the fixed-point scale applied to real prices to produce
// price_int: price_int = round(price_real * PriceScale).
const PriceScale = 1e8

// ToPriceInt converts a real price to the book's fixed-point integer key.
func ToPriceInt(price float64) uint64 {
	return uint64(math.Round(price * PriceScale))
}

// Side identifies which side of the book a level belongs to.
type Side uint8

const (
	// Bid is the buy side.
	Bid Side = iota
	// Ask is the sell side.
	Ask
)

// Level is a single price level: (price_int, size). A level with Size <= 0
// denotes deletion of that price from the book.
type Level struct {
	// PriceInt is price_real * PriceScale, rounded to the nearest integer.
	PriceInt uint64
	// Size is the level's outstanding size. Size <= 0 means "delete".
	Size float64
}

// Update is a single instruction to apply to one side of a book.
type Update struct {
	Side  Side
	Level Level
}

// ParsedOrderBook is the venue-agnostic result of adapter parsing
// (spec.md §3 "Parsed order book"), independent of any specific venue's
// wire format.
type ParsedOrderBook struct {
	// Instrument is the venue's instrument identifier.
	Instrument string
	// Bids are the update instructions for the buy side.
	Bids []Level
	// Asks are the update instructions for the sell side.
	Asks []Level
	// IsSnapshot is true when the venue delivered a full replacement.
	IsSnapshot bool
	// TimestampMs is the venue's event timestamp in Unix milliseconds.
	TimestampMs uint64
}

// Updates flattens Bids and Asks into a single ordered instruction list
// suitable for Book.ApplyUpdates.
func (p *ParsedOrderBook) Updates() []Update {
	out := make([]Update, 0, len(p.Bids)+len(p.Asks))
	for _, lvl := range p.Bids {
		out = append(out, Update{Side: Bid, Level: lvl})
	}
	for _, lvl := range p.Asks {
		out = append(out, Update{Side: Ask, Level: lvl})
	}
	return out
}

// BBO is the top-of-book snapshot returned by Book.BBO. Empty is true when
// either side has no levels, in which case the price/size fields are zero.
type BBO struct {
	BidPrice uint64
	BidSize  float64
	AskPrice uint64
	AskSize  float64
	Empty    bool
}
