// Package udpfeed implements the UDP publisher (spec.md §4.8): a
// non-blocking datagram socket that serializes one fixed binary frame
// per published book. Grounded on
// original_source/src/modules/network/udp_publisher.cpp's header layout
// and wire byte order, translated from DPDK's rte_cpu_to_be helpers to
// encoding/binary.
package udpfeed

import (
	"encoding/binary"
	"fmt"
	"math"

	"aero-gateway/internal/orderbook"
	"aero-gateway/internal/venueid"
)

// Magic is the fixed frame magic ("HFTD" as a big-endian u32).
const Magic uint32 = 0x48465444

// Version is the current wire format version.
const Version uint16 = 1

// MsgType distinguishes a full snapshot from an incremental delta frame.
type MsgType uint8

const (
	// MsgSnapshot marks a full order-book replacement.
	MsgSnapshot MsgType = 1
	// MsgDelta marks an incremental update.
	MsgDelta MsgType = 2
)

// headerLen is the fixed-size portion of the frame, before the variable-
// length symbol and level arrays.
const headerLen = 4 + 2 + 1 + 1 + 8 + 4 + 2 + 2

// levelLen is the encoded size of one (price_int, quantity) pair.
const levelLen = 8 + 8

// Encode serializes book into the fixed binary frame described by
// spec.md §4.8, using timestampNs as the frame's monotonic-clock
// publish timestamp. dst is grown and reused by the caller across calls
// to avoid per-publish allocation; the returned slice aliases dst.
func Encode(dst []byte, book *orderbook.ParsedOrderBook, venue venueid.ID, timestampNs int64) []byte {
	msgType := MsgDelta
	if book.IsSnapshot {
		msgType = MsgSnapshot
	}

	total := headerLen + len(book.Instrument) + levelLen*(len(book.Bids)+len(book.Asks))
	dst = growTo(dst, total)

	off := 0
	binary.BigEndian.PutUint32(dst[off:], Magic)
	off += 4
	binary.BigEndian.PutUint16(dst[off:], Version)
	off += 2
	dst[off] = byte(msgType)
	off++
	dst[off] = byte(venue)
	off++
	binary.BigEndian.PutUint64(dst[off:], uint64(timestampNs))
	off += 8
	binary.BigEndian.PutUint32(dst[off:], uint32(len(book.Instrument)))
	off += 4
	binary.BigEndian.PutUint16(dst[off:], uint16(len(book.Bids)))
	off += 2
	binary.BigEndian.PutUint16(dst[off:], uint16(len(book.Asks)))
	off += 2

	off += copy(dst[off:], book.Instrument)

	for _, lvl := range book.Bids {
		off = putLevel(dst, off, lvl)
	}
	for _, lvl := range book.Asks {
		off = putLevel(dst, off, lvl)
	}

	return dst[:off]
}

func putLevel(dst []byte, off int, lvl orderbook.Level) int {
	binary.BigEndian.PutUint64(dst[off:], lvl.PriceInt)
	off += 8
	binary.BigEndian.PutUint64(dst[off:], math.Float64bits(lvl.Size))
	off += 8
	return off
}

func growTo(dst []byte, n int) []byte {
	if cap(dst) >= n {
		return dst[:n]
	}
	return make([]byte, n)
}

// Frame is the decoded form of a UDP feed datagram, used by test clients
// and the round-trip property tests.
type Frame struct {
	Version     uint16
	MsgType     MsgType
	Venue       venueid.ID
	TimestampNs int64
	Book        orderbook.ParsedOrderBook
}

// Decode parses a datagram produced by Encode. It does not validate the
// magic against any expected value beyond checking it matches Magic.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) < headerLen {
		return nil, fmt.Errorf("udpfeed: frame too short: %d bytes", len(raw))
	}

	off := 0
	magic := binary.BigEndian.Uint32(raw[off:])
	off += 4
	if magic != Magic {
		return nil, fmt.Errorf("udpfeed: bad magic %#x", magic)
	}

	version := binary.BigEndian.Uint16(raw[off:])
	off += 2
	msgType := MsgType(raw[off])
	off++
	venue := venueid.ID(raw[off])
	off++
	tsNs := int64(binary.BigEndian.Uint64(raw[off:]))
	off += 8
	symbolLen := binary.BigEndian.Uint32(raw[off:])
	off += 4
	bidCount := binary.BigEndian.Uint16(raw[off:])
	off += 2
	askCount := binary.BigEndian.Uint16(raw[off:])
	off += 2

	if len(raw) < off+int(symbolLen)+int(bidCount+askCount)*levelLen {
		return nil, fmt.Errorf("udpfeed: frame truncated")
	}

	symbol := string(raw[off : off+int(symbolLen)])
	off += int(symbolLen)

	bids, off, err := getLevels(raw, off, int(bidCount))
	if err != nil {
		return nil, err
	}
	asks, _, err := getLevels(raw, off, int(askCount))
	if err != nil {
		return nil, err
	}

	return &Frame{
		Version:     version,
		MsgType:     msgType,
		Venue:       venue,
		TimestampNs: tsNs,
		Book: orderbook.ParsedOrderBook{
			Instrument:  symbol,
			Bids:        bids,
			Asks:        asks,
			IsSnapshot:  msgType == MsgSnapshot,
			TimestampMs: 0,
		},
	}, nil
}

func getLevels(raw []byte, off, count int) ([]orderbook.Level, int, error) {
	out := make([]orderbook.Level, count)
	for i := 0; i < count; i++ {
		price := binary.BigEndian.Uint64(raw[off:])
		off += 8
		qty := math.Float64frombits(binary.BigEndian.Uint64(raw[off:]))
		off += 8
		out[i] = orderbook.Level{PriceInt: price, Size: qty}
	}
	return out, off, nil
}
