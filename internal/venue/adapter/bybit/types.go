// Package bybit implements the Bybit variant of the venue adapter
// capability set (spec.md §4.4), grounded on
// original_source/src/modules/exchange/bybit_adapter.cpp, adapted to the
// teacher's client/parser split and using raw-field presence checks in
// place of simdjson's error-as-value idiom.
package bybit

// subscribeRequest is the {"op":"subscribe","args":["C.I"]} wire frame.
type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// pingOrAck is decoded loosely to distinguish a server ping (op=ping, no
// success field) from a subscription ack (success present, op=subscribe
// or unsubscribe). Success is a pointer so that an absent field decodes to
// nil and stays distinguishable from an explicit false.
type pingOrAck struct {
	Op      string `json:"op"`
	Success *bool  `json:"success"`
}

// topicMessage is the generic orderbook.N.SYMBOL push envelope.
type topicMessage struct {
	Topic string       `json:"topic"`
	Type  string       `json:"type"`
	Data  topicPayload `json:"data"`
}

type topicPayload struct {
	B  [][]string `json:"b"`
	A  [][]string `json:"a"`
	Ts uint64     `json:"ts"`
}
