package orderbook

import (
	"sync"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
)

func ascending(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func descending(a, b uint64) int {
	return ascending(b, a)
}

// Book is a single venue/instrument order book, grounded on
// original_source/src/modules/market_data/order_book.h's OrderBook class:
// bids held in descending price order, asks in ascending price order, both
// behind one reader/writer lock (spec.md §4.7 "each book's internal rwlock
// serializes reads and writes").
type Book struct {
	mu   sync.RWMutex
	bids *rbt.Tree[uint64, float64]
	asks *rbt.Tree[uint64, float64]
}

// NewBook constructs an empty book for one venue/instrument pair.
func NewBook() *Book {
	return &Book{
		bids: rbt.NewWith[uint64, float64](descending),
		asks: rbt.NewWith[uint64, float64](ascending),
	}
}

func (b *Book) treeFor(side Side) *rbt.Tree[uint64, float64] {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

// ApplySnapshot replaces both sides wholesale with the given levels, as
// dictated by a venue's full-book message.
func (b *Book) ApplySnapshot(bids, asks []Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids.Clear()
	b.asks.Clear()
	for _, lvl := range bids {
		if lvl.Size > 0 {
			b.bids.Put(lvl.PriceInt, lvl.Size)
		}
	}
	for _, lvl := range asks {
		if lvl.Size > 0 {
			b.asks.Put(lvl.PriceInt, lvl.Size)
		}
	}
}

// ApplyUpdate merges a single price-level instruction into one side of the
// book: size <= 0 erases the price, otherwise the level is inserted or
// overwritten (spec.md §4.7 merge rule).
func (b *Book) ApplyUpdate(side Side, lvl Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applyUpdateLocked(side, lvl)
}

func (b *Book) applyUpdateLocked(side Side, lvl Level) {
	tree := b.treeFor(side)
	if lvl.Size <= 0 {
		tree.Remove(lvl.PriceInt)
		return
	}
	tree.Put(lvl.PriceInt, lvl.Size)
}

// ApplyUpdates merges a batch of instructions under a single lock
// acquisition, used for incremental delta messages that touch many levels
// at once.
func (b *Book) ApplyUpdates(updates []Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range updates {
		b.applyUpdateLocked(u.Side, u.Level)
	}
}

// Apply dispatches a fully parsed venue message: a snapshot replaces both
// sides, otherwise the updates are merged incrementally.
func (b *Book) Apply(p *ParsedOrderBook) {
	if p.IsSnapshot {
		b.ApplySnapshot(p.Bids, p.Asks)
		return
	}
	b.ApplyUpdates(p.Updates())
}

// BBO returns the best bid and offer currently on the book. Empty is true
// if either side has no levels.
func (b *Book) BBO() BBO {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.bids.Empty() || b.asks.Empty() {
		return BBO{Empty: true}
	}

	bidNode := b.bids.Left()
	askNode := b.asks.Left()
	return BBO{
		BidPrice: bidNode.Key,
		BidSize:  bidNode.Value,
		AskPrice: askNode.Key,
		AskSize:  askNode.Value,
	}
}

// Clear empties both sides of the book.
func (b *Book) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids.Clear()
	b.asks.Clear()
}

// Depth returns the number of distinct price levels on each side, mainly
// for tests and diagnostics.
func (b *Book) Depth() (bids, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.Size(), b.asks.Size()
}
