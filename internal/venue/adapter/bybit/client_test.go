package bybit

import (
	"encoding/json"
	"testing"
)

func TestAdapter_SubscribeMsg(t *testing.T) {
	a := New()
	data, err := a.SubscribeMsg("BTCUSDT", "orderbook.50")
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
	if len(req.Args) != 1 || req.Args[0] != "orderbook.50.BTCUSDT" {
		t.Errorf("args = %v, want [orderbook.50.BTCUSDT]", req.Args)
	}
}

func TestAdapter_PingMsg(t *testing.T) {
	a := New()
	if string(a.PingMsg()) != `{"op":"ping"}` {
		t.Errorf("PingMsg = %q, want {\"op\":\"ping\"}", a.PingMsg())
	}
}

func TestAdapter_IsPing(t *testing.T) {
	a := New()
	if !a.IsPing([]byte(`{"op":"ping","ts":123}`)) {
		t.Error("op=ping with no success field must be a ping")
	}
	if a.IsPing([]byte(`{"op":"ping","success":true}`)) {
		t.Error("a success-bearing op=ping is the server's pong ack to our outbound ping, not an inbound ping")
	}
	if a.IsPing([]byte(`{"op":"pong"}`)) {
		t.Error("op=pong must never be classified as a ping")
	}
}

func TestAdapter_IsSubscriptionAck(t *testing.T) {
	a := New()
	if !a.IsSubscriptionAck([]byte(`{"success":true,"op":"subscribe"}`)) {
		t.Error("success+op=subscribe must be an ack")
	}
	if a.IsSubscriptionAck([]byte(`{"op":"ping"}`)) {
		t.Error("a ping with no success field must not be an ack")
	}
}

func TestAdapter_ParseOrderBook_SnapshotAndInstrumentExtraction(t *testing.T) {
	a := New()
	raw := []byte(`{
		"topic":"orderbook.50.BTCUSDT",
		"type":"snapshot",
		"data":{"b":[["27123.4","1.5"]],"a":[["27123.5","0.8"]],"ts":1700000000000}
	}`)

	book, ok := a.ParseOrderBook(raw)
	if !ok {
		t.Fatal("expected a parsed order book")
	}
	if book.Instrument != "BTCUSDT" {
		t.Errorf("instrument = %q, want BTCUSDT", book.Instrument)
	}
	if !book.IsSnapshot {
		t.Error("type=snapshot must set IsSnapshot")
	}
	if book.TimestampMs != 1700000000000 {
		t.Errorf("timestamp = %d", book.TimestampMs)
	}
}

func TestAdapter_ParseOrderBook_DeltaType(t *testing.T) {
	a := New()
	raw := []byte(`{"topic":"orderbook.50.ETHUSDT","type":"delta","data":{"b":[],"a":[]}}`)
	book, ok := a.ParseOrderBook(raw)
	if !ok {
		t.Fatal("expected a parsed order book")
	}
	if book.IsSnapshot {
		t.Error("type=delta must not be treated as a snapshot")
	}
}

func TestAdapter_ParseOrderBook_NonOrderbookTopicIgnored(t *testing.T) {
	a := New()
	_, ok := a.ParseOrderBook([]byte(`{"topic":"trade.BTCUSDT","type":"snapshot","data":{}}`))
	if ok {
		t.Error("a non-orderbook topic must not be parsed as an order book")
	}
}
