// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tabline/internal/fanout"
	"github.com/tomtom215/tabline/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	hub    *Hub
	fanout *fanout.Fanout
	server *httptest.Server
}

func newHarness(t *testing.T, identity Identity) *harness {
	t.Helper()
	registry := fanout.NewRegistry()
	f, err := fanout.New(registry, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub(registry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Serve(ctx) }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, identity)
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
		f.Close()
	})
	return &harness{hub: hub, fanout: f, server: server}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return f
}

func TestHelloRequiresRefetch(t *testing.T) {
	h := newHarness(t, Identity{VenueID: "v1", TerminalID: "t1", Role: "server"})
	conn := h.dial(t)

	f := readFrame(t, conn)
	if f.Type != MessageTypeHello {
		t.Fatalf("first frame = %q, want hello", f.Type)
	}
	var hello HelloData
	if err := json.Unmarshal(f.Data, &hello); err != nil {
		t.Fatal(err)
	}
	if !hello.RefetchRequired {
		t.Error("hello must require a refetch")
	}
	want := []string{"venue:v1", "venue:v1:terminal:t1"}
	if len(hello.Scopes) != 2 || hello.Scopes[0] != want[0] || hello.Scopes[1] != want[1] {
		t.Errorf("Scopes = %v, want %v", hello.Scopes, want)
	}
}

func TestSubscribeAndRefresh(t *testing.T) {
	h := newHarness(t, Identity{VenueID: "v1", TerminalID: "kds-1", Role: "kitchen"})
	conn := h.dial(t)
	readFrame(t, conn) // hello

	if err := conn.WriteJSON(Inbound{Type: MessageTypeSubscribe, Scope: "venue:v1:station:grill"}); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Type != MessageTypeSubscribed {
		t.Fatalf("reply = %q, want subscribed", f.Type)
	}

	if err := conn.WriteJSON(Inbound{Type: MessageTypeSubscribe, Scope: "venue:v2"}); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, conn)
	if f.Type != MessageTypeError || !strings.Contains(string(f.Data), "outside") {
		t.Fatalf("cross-venue reply = %s %s, want error", f.Type, f.Data)
	}

	h.fanout.Publish("venue:v1:station:grill", fanout.Event{OrderID: "o1", Version: 5})
	f = readFrame(t, conn)
	if f.Type != MessageTypeRefresh {
		t.Fatalf("frame = %q, want refresh", f.Type)
	}
	var n fanout.Notification
	if err := json.Unmarshal(f.Data, &n); err != nil {
		t.Fatal(err)
	}
	if n.Scope != "venue:v1:station:grill" || n.Versions["o1"] != 5 {
		t.Errorf("notification = %+v", n)
	}
}

func TestDisconnectLeavesScopes(t *testing.T) {
	h := newHarness(t, Identity{VenueID: "v1", TerminalID: "t1"})
	conn := h.dial(t)
	readFrame(t, conn)

	if got := len(h.hub.registry.Members("venue:v1")); got != 1 {
		t.Fatalf("members = %d, want 1", got)
	}
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.hub.GetClientCount() == 0 && len(h.hub.registry.Members("venue:v1")) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("client still registered after disconnect")
}

func TestKickClosesTerminal(t *testing.T) {
	h := newHarness(t, Identity{VenueID: "v1", TerminalID: "t1"})
	conn := h.dial(t)
	readFrame(t, conn)

	if n := h.hub.Kick("v1", "t1"); n != 1 {
		t.Fatalf("Kick() = %d, want 1", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after kick")
	}
}

func TestClientNotifyAfterCloseIsDropped(t *testing.T) {
	c := NewClient(nil, nil, Identity{VenueID: "v1"})
	c.close()
	if c.Notify(fanout.Notification{Scope: "venue:v1"}) {
		t.Error("Notify on a closed client reported delivery")
	}
}
