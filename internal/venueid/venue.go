// Package venueid defines the small, stable venue-identity enumeration
// shared across the adapter, order-book, and UDP-publisher packages. The
// numeric encoding is part of the UDP wire contract (spec.md §4.8) and
// must never be renumbered once shipped.
package venueid

// ID identifies a trading venue. The zero value is Unknown.
type ID uint8

const (
	// Unknown is the zero value; never produced by a real adapter.
	Unknown ID = iota
	// OKX identifies the OKX exchange.
	OKX
	// Bybit identifies the Bybit exchange.
	Bybit
	// Binance identifies the Binance exchange. No adapter ships in this
	// release; the identity exists so the wire encoding has a stable slot.
	Binance
	// Gate identifies the Gate.io exchange. No adapter ships in this release.
	Gate
	// Bitget identifies the Bitget exchange. No adapter ships in this release.
	Bitget
	// MEXC identifies the MEXC exchange. No adapter ships in this release.
	MEXC
)

// String renders the venue identity for logging.
func (v ID) String() string {
	switch v {
	case OKX:
		return "okx"
	case Bybit:
		return "bybit"
	case Binance:
		return "binance"
	case Gate:
		return "gate"
	case Bitget:
		return "bitget"
	case MEXC:
		return "mexc"
	default:
		return "unknown"
	}
}
