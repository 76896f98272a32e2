package orderbook

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBook_SnapshotThenBBO(t *testing.T) {
	b := NewBook()
	b.ApplySnapshot(
		[]Level{{PriceInt: 10000, Size: 1.5}, {PriceInt: 9990, Size: 2.0}},
		[]Level{{PriceInt: 10010, Size: 0.8}, {PriceInt: 10020, Size: 3.0}},
	)

	bbo := b.BBO()
	if bbo.Empty {
		t.Fatal("BBO reported empty after a non-empty snapshot")
	}
	if bbo.BidPrice != 10000 || bbo.BidSize != 1.5 {
		t.Errorf("best bid = (%d, %v), want (10000, 1.5)", bbo.BidPrice, bbo.BidSize)
	}
	if bbo.AskPrice != 10010 || bbo.AskSize != 0.8 {
		t.Errorf("best ask = (%d, %v), want (10010, 0.8)", bbo.AskPrice, bbo.AskSize)
	}
}

func TestBook_EmptyBookReportsEmptyBBO(t *testing.T) {
	b := NewBook()
	if bbo := b.BBO(); !bbo.Empty {
		t.Error("fresh book should report an empty BBO")
	}
}

func TestBook_UpdateDeletesOnNonPositiveSize(t *testing.T) {
	b := NewBook()
	b.ApplySnapshot([]Level{{PriceInt: 100, Size: 1}}, nil)

	b.ApplyUpdate(Bid, Level{PriceInt: 100, Size: 0})

	bids, _ := b.Depth()
	if bids != 0 {
		t.Errorf("bids depth = %d, want 0 after a zero-size update", bids)
	}
}

func TestBook_UpdateOverwritesExistingLevel(t *testing.T) {
	b := NewBook()
	b.ApplySnapshot([]Level{{PriceInt: 100, Size: 1}}, nil)
	b.ApplyUpdate(Bid, Level{PriceInt: 100, Size: 5})

	bbo := b.BBO()
	_ = bbo // asks side empty, BBO() reports Empty true; check depth instead
	bids, _ := b.Depth()
	if bids != 1 {
		t.Fatalf("bids depth = %d, want 1", bids)
	}
}

func TestBook_SnapshotReplacesPriorState(t *testing.T) {
	b := NewBook()
	b.ApplySnapshot([]Level{{PriceInt: 100, Size: 1}, {PriceInt: 90, Size: 1}}, nil)
	b.ApplySnapshot([]Level{{PriceInt: 50, Size: 1}}, nil)

	bids, _ := b.Depth()
	if bids != 1 {
		t.Fatalf("bids depth = %d after replacing snapshot, want 1", bids)
	}
}

func TestBook_ApplyParsedOrderBookDelta(t *testing.T) {
	b := NewBook()
	b.Apply(&ParsedOrderBook{
		Instrument: "BTC-USDT",
		Bids:       []Level{{PriceInt: 100, Size: 1}},
		Asks:       []Level{{PriceInt: 110, Size: 1}},
		IsSnapshot: true,
	})
	b.Apply(&ParsedOrderBook{
		Instrument: "BTC-USDT",
		Bids:       []Level{{PriceInt: 100, Size: 0}},
		IsSnapshot: false,
	})

	bids, asks := b.Depth()
	if bids != 0 {
		t.Errorf("bids depth = %d, want 0 after deletion delta", bids)
	}
	if asks != 1 {
		t.Errorf("asks depth = %d, want 1", asks)
	}
}

// TestBook_BidsDescendingAsksAscending checks the ordering invariant that
// distinguishes the two sides regardless of insertion order.
func TestBook_BidsDescendingAsksAscending(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("best bid is the maximum inserted price, best ask is the minimum", prop.ForAll(
		func(prices []uint64) bool {
			if len(prices) == 0 {
				return true
			}
			b := NewBook()
			var maxPrice, minPrice uint64
			for i, p := range prices {
				price := p%1_000_000 + 1
				b.ApplyUpdate(Bid, Level{PriceInt: price, Size: 1})
				b.ApplyUpdate(Ask, Level{PriceInt: price, Size: 1})
				if i == 0 || price > maxPrice {
					maxPrice = price
				}
				if i == 0 || price < minPrice {
					minPrice = price
				}
			}
			bbo := b.BBO()
			return bbo.BidPrice == maxPrice && bbo.AskPrice == minPrice
		},
		gen.SliceOf(gen.UInt64()),
	))

	properties.TestingRun(t)
}

func TestToPriceInt(t *testing.T) {
	cases := []struct {
		price float64
		want  uint64
	}{
		{0, 0},
		{1, 100000000},
		{27123.45, 2712345000000},
		{0.00000001, 1},
	}
	for _, c := range cases {
		if got := ToPriceInt(c.price); got != c.want {
			t.Errorf("ToPriceInt(%v) = %d, want %d", c.price, got, c.want)
		}
	}
}
