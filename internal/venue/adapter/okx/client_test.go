package okx

import (
	"encoding/json"
	"testing"
)

func TestAdapter_SubscribeMsg(t *testing.T) {
	a := New()
	data, err := a.SubscribeMsg("BTC-USDT", "books5")
	if err != nil {
		t.Fatalf("SubscribeMsg: %v", err)
	}

	var req subscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Op != "subscribe" {
		t.Errorf("op = %q, want subscribe", req.Op)
	}
	if len(req.Args) != 1 || req.Args[0].Channel != "books5" || req.Args[0].InstId != "BTC-USDT" {
		t.Errorf("args = %+v, want one {books5 BTC-USDT}", req.Args)
	}
}

func TestAdapter_PingMsg(t *testing.T) {
	a := New()
	if string(a.PingMsg()) != "ping" {
		t.Errorf("PingMsg = %q, want ping", a.PingMsg())
	}
}

func TestAdapter_IsPing(t *testing.T) {
	a := New()
	if !a.IsPing([]byte("ping")) {
		t.Error("literal ping must be detected")
	}
	if a.IsPing([]byte(`{"op":"ping"}`)) {
		t.Error("OKX ping is the bare literal, not a JSON envelope")
	}
}

func TestAdapter_IsSubscriptionAck(t *testing.T) {
	a := New()
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"event":"subscribe","arg":{"channel":"books5","instId":"BTC-USDT"}}`, true},
		{`{"event":"error","code":"60012","msg":"bad"}`, true},
		{`{"arg":{"channel":"books5"},"action":"snapshot","data":[]}`, false},
	}
	for _, c := range cases {
		if got := a.IsSubscriptionAck([]byte(c.raw)); got != c.want {
			t.Errorf("IsSubscriptionAck(%s) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestAdapter_ParseOrderBook_Books5DefaultsToSnapshot(t *testing.T) {
	a := New()
	raw := []byte(`{
		"arg":{"channel":"books5","instId":"BTC-USDT"},
		"data":[{
			"bids":[["27123.4","1.5","0","2"]],
			"asks":[["27123.5","0.8","0","1"]],
			"ts":"1700000000000"
		}]
	}`)

	book, ok := a.ParseOrderBook(raw)
	if !ok {
		t.Fatal("expected a parsed order book")
	}
	if !book.IsSnapshot {
		t.Error("books5 with no action field must default to a snapshot")
	}
	if book.Instrument != "BTC-USDT" {
		t.Errorf("instrument = %q", book.Instrument)
	}
	if len(book.Bids) != 1 || book.Bids[0].PriceInt != 2712340000000 {
		t.Errorf("bids = %+v", book.Bids)
	}
	if book.TimestampMs != 1700000000000 {
		t.Errorf("timestamp = %d", book.TimestampMs)
	}
}

func TestAdapter_ParseOrderBook_ExplicitUpdateAction(t *testing.T) {
	a := New()
	raw := []byte(`{
		"arg":{"channel":"books-l2-tbt","instId":"ETH-USDT"},
		"action":"update",
		"data":[{"bids":[["2000.0","0"]],"asks":[],"ts":"1700000000001"}]
	}`)

	book, ok := a.ParseOrderBook(raw)
	if !ok {
		t.Fatal("expected a parsed order book")
	}
	if book.IsSnapshot {
		t.Error("explicit update action must not be treated as a snapshot")
	}
	if len(book.Bids) != 1 || book.Bids[0].Size != 0 {
		t.Errorf("bids = %+v, want a single zero-size deletion level", book.Bids)
	}
}

func TestAdapter_ParseOrderBook_NonBooksChannelIgnored(t *testing.T) {
	a := New()
	_, ok := a.ParseOrderBook([]byte(`{"arg":{"channel":"trades","instId":"BTC-USDT"},"data":[{}]}`))
	if ok {
		t.Error("a non-books channel must not be parsed as an order book")
	}
}

func TestAdapter_ParseOrderBook_MalformedIsNonFatal(t *testing.T) {
	a := New()
	_, ok := a.ParseOrderBook([]byte(`not json`))
	if ok {
		t.Error("malformed JSON must report ok=false, not panic or error")
	}
}
