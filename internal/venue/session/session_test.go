package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer accepts one WebSocket connection and echoes every text
// message it receives back to the client, tracking how many connections
// it has accepted.
func echoServer(t *testing.T) (*httptest.Server, *int32) {
	var conns int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&conns, 1)
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestSession_ConnectSendReceive(t *testing.T) {
	srv, _ := echoServer(t)
	s := New(wsURL(srv.URL), "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.IsConnected() {
		t.Fatal("session should report connected after a successful dial")
	}

	if err := s.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, ok := s.NextInbound(); ok {
			if string(data) != "hello" {
				t.Fatalf("echoed message = %q, want hello", data)
			}
			s.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for echoed message")
}

func TestSession_NextInboundEmptyIsNonBlocking(t *testing.T) {
	s := New("ws://unused", "", nil)
	if _, ok := s.NextInbound(); ok {
		t.Error("a session with no traffic must report an empty inbound queue")
	}
}

func TestSession_CloseIsIdempotentAndStopsDriver(t *testing.T) {
	srv, _ := echoServer(t)
	s := New(wsURL(srv.URL), "", nil)

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.IsConnected() {
		t.Error("session must not report connected after Close")
	}
}

func TestSession_OnReconnectFiresAfterSimulatedFailure(t *testing.T) {
	srv, conns := echoServer(t)
	s := New(wsURL(srv.URL), "", nil)

	var reconnected atomic.Bool
	s.SetOnReconnect(func() { reconnected.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	s.SimulateNetworkFailure()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reconnected.Load() && atomic.LoadInt32(conns) >= 2 {
			s.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for reconnect callback after simulated failure")
}

func TestSession_StateString(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		WaitingRetry: "waiting_retry",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
