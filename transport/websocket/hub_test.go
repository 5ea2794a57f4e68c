package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
)

func testUniverse(t *testing.T) *engine.Universe {
	t.Helper()
	layout, err := engine.ParseLayout("######\n#0 . #\n#.  1#\n######", 2)
	if err != nil {
		t.Fatalf("ParseLayout failed: %v", err)
	}
	u, err := layout.Universe()
	if err != nil {
		t.Fatalf("Universe failed: %v", err)
	}
	return u
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

// dialViewer connects a viewer and waits for the greeting ServeWS queues
// before registering, so the viewer is registered on return
func dialViewer(t *testing.T, hub *Hub, matchID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("match"), &Message{MatchID: r.URL.Query().Get("match"), Event: "hello"})
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?match=" + matchID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if msg := readMessage(t, conn); msg.Event != "hello" {
		t.Fatalf("Expected greeting, got %q", msg.Event)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return message
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub.matches == nil {
		t.Error("Hub matches map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialised")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil)

	client1 := &Client{hub: hub, matchID: "m1", send: make(chan []byte, 1)}
	client2 := &Client{hub: hub, matchID: "m1", send: make(chan []byte, 1)}

	hub.registerClient(client1)
	hub.registerClient(client2)
	if len(hub.matches["m1"]) != 2 {
		t.Fatalf("Expected 2 viewers, got %d", len(hub.matches["m1"]))
	}

	hub.unregisterClient(client1)
	if !hub.matches["m1"][client2] {
		t.Error("client2 should still be registered")
	}
	if _, ok := <-client1.send; ok {
		t.Error("Expected the send channel of client1 to be closed")
	}

	hub.unregisterClient(client2)
	if _, exists := hub.matches["m1"]; exists {
		t.Error("Match should have been cleaned up after the last viewer left")
	}

	// Unregistering twice is harmless
	hub.unregisterClient(client2)
}

func TestHubBroadcastDropsSlowClients(t *testing.T) {
	hub := NewHub(nil)

	fast := &Client{hub: hub, matchID: "m1", send: make(chan []byte, 4)}
	slow := &Client{hub: hub, matchID: "m1", send: make(chan []byte)}
	other := &Client{hub: hub, matchID: "m2", send: make(chan []byte, 4)}
	hub.registerClient(fast)
	hub.registerClient(slow)
	hub.registerClient(other)

	hub.broadcastMessage(&Message{MatchID: "m1", Event: "custom"})

	if len(fast.send) != 1 {
		t.Errorf("Expected fast viewer to get the message, has %d", len(fast.send))
	}
	if hub.matches["m1"][slow] {
		t.Error("Expected the slow viewer to be dropped")
	}
	if len(other.send) != 0 {
		t.Error("Viewers of other matches should not get the message")
	}
}

func TestHubPublishDoesNotBlock(t *testing.T) {
	// Nothing drains the queue
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.BroadcastEvent("m1", "custom", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	if hub.Dropped() != 10 {
		t.Errorf("Expected 10 dropped messages, got %d", hub.Dropped())
	}
}

func TestHubObserver(t *testing.T) {
	hub := startHub(t)
	conn := dialViewer(t, hub, "obs")

	observer := hub.Observer("obs")
	u := testUniverse(t)
	observer.Observe(master.Snapshot{Round: 1, Turn: 0, State: master.StateRunning, Universe: u})

	msg := readMessage(t, conn)
	if msg.Event != EventSnapshot || msg.MatchID != "obs" {
		t.Fatalf("Unexpected message %+v", msg)
	}
	if msg.Snapshot == nil || msg.Snapshot.Round != 1 || len(msg.Snapshot.Universe.Bots) != 2 {
		t.Errorf("Snapshot not correctly transmitted: %+v", msg.Snapshot)
	}

	finisher, ok := observer.(master.Finisher)
	if !ok {
		t.Fatal("Expected the match observer to receive results")
	}
	winner := 0
	finisher.Finish(master.Result{Reason: master.ReasonWin, Winner: &winner, Scores: []int{1, 0}})

	msg = readMessage(t, conn)
	if msg.Event != EventFinished || msg.Result == nil || msg.Result.Reason != master.ReasonWin {
		t.Errorf("Unexpected result message %+v", msg)
	}
}

func TestHubViewerLeaves(t *testing.T) {
	hub := startHub(t)
	conn := dialViewer(t, hub, "gone")
	conn.Close()

	// The hub keeps serving other matches once the viewer is gone
	other := dialViewer(t, hub, "stay")
	hub.BroadcastEvent("gone", "custom", "nobody")
	hub.BroadcastEvent("stay", "custom", "data")

	msg := readMessage(t, other)
	if msg.MatchID != "stay" || msg.Data != "data" {
		t.Errorf("Unexpected message %+v", msg)
	}
}

func TestHubRunStops(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
