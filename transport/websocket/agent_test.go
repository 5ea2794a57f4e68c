package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
)

// agentServer accepts one team and hands its proxy to the test
func agentServer(t *testing.T, timeout time.Duration) (string, <-chan *AgentConn) {
	t.Helper()
	conns := make(chan *AgentConn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := AcceptAgent(w, r, timeout, nil)
		if err != nil {
			t.Logf("AcceptAgent failed: %v", err)
			return
		}
		conns <- conn
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), conns
}

func waitConn(t *testing.T, conns <-chan *AgentConn) *AgentConn {
	t.Helper()
	select {
	case conn := <-conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("agent never connected")
		return nil
	}
}

func TestAgentConn_RoundTrip(t *testing.T) {
	url, conns := agentServer(t, time.Second)
	team := agent.NewSimpleTeam("remote", agent.BFSPlayer{})

	runErr := make(chan error, 1)
	go func() { runErr <- RunAgent(context.Background(), url, team, nil) }()
	proxy := waitConn(t, conns)

	if proxy.TeamName() != "remote" {
		t.Errorf("Expected team name from hello, got %q", proxy.TeamName())
	}

	u := testUniverse(t)
	ctx := context.Background()
	if err := proxy.AssignBotIDs(ctx, []int{1}); err != nil {
		t.Fatalf("AssignBotIDs failed: %v", err)
	}
	if err := proxy.ProvideInitialState(ctx, u); err != nil {
		t.Fatalf("ProvideInitialState failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		dir, err := proxy.RequestMove(ctx, 1, u)
		if err != nil {
			t.Fatalf("RequestMove failed: %v", err)
		}
		if _, ok := u.LegalMoves(u.Bots[1].CurrentPos)[dir]; !ok {
			t.Errorf("Expected a legal move, got %s", dir)
		}
	}

	if err := proxy.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Expected RunAgent to end cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunAgent did not return after close")
	}

	if _, err := proxy.RequestMove(ctx, 1, u); !errors.Is(err, agent.ErrDisconnected) {
		t.Errorf("Expected ErrDisconnected after close, got %v", err)
	}
}

func TestAgentConn_HandshakeError(t *testing.T) {
	url, conns := agentServer(t, time.Second)
	team := agent.NewSimpleTeam("two", agent.StoppingPlayer{}, agent.StoppingPlayer{})
	go RunAgent(context.Background(), url, team, nil)
	proxy := waitConn(t, conns)

	if err := proxy.AssignBotIDs(context.Background(), []int{1}); !errors.Is(err, agent.ErrMalformedReply) {
		t.Errorf("Expected ErrMalformedReply, got %v", err)
	}
}

// rawAgent speaks the wire protocol by hand
func rawAgent(t *testing.T, url string, handle func(conn *websocket.Conn, req agent.Request)) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(agent.Hello{Team: "raw"}); err != nil {
		t.Fatalf("Failed to send hello: %v", err)
	}
	go func() {
		for {
			var req agent.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			handle(conn, req)
		}
	}()
}

func TestAgentConn_Timeout(t *testing.T) {
	url, conns := agentServer(t, 30*time.Millisecond)
	rawAgent(t, url, func(conn *websocket.Conn, req agent.Request) {})
	proxy := waitConn(t, conns)

	start := time.Now()
	if _, err := proxy.RequestMove(context.Background(), 0, testUniverse(t)); !errors.Is(err, agent.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Timeout took too long: %v", elapsed)
	}
}

func TestAgentConn_LateReplyDropped(t *testing.T) {
	url, conns := agentServer(t, 50*time.Millisecond)
	requests := make(chan agent.Request, 4)
	var agentConn *websocket.Conn
	ready := make(chan struct{})
	rawAgent(t, url, func(conn *websocket.Conn, req agent.Request) {
		if agentConn == nil {
			agentConn = conn
			close(ready)
		}
		requests <- req
	})
	proxy := waitConn(t, conns)
	u := testUniverse(t)

	if _, err := proxy.RequestMove(context.Background(), 0, u); !errors.Is(err, agent.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	<-ready
	first := <-requests

	result := make(chan engine.Direction, 1)
	go func() {
		d, _ := proxy.RequestMove(context.Background(), 0, u)
		result <- d
	}()
	second := <-requests

	// Answer the stale request first, then the live one
	agentConn.WriteJSON(agent.Reply{Seq: first.Seq, Move: agent.EncodeMove(engine.East)})
	agentConn.WriteJSON(agent.Reply{Seq: second.Seq, Move: agent.EncodeMove(engine.South)})

	select {
	case d := <-result:
		if d != engine.South {
			t.Errorf("Expected the reply to the second request, got %q", d)
		}
	case <-time.After(time.Second):
		t.Fatal("RequestMove did not return")
	}
}

func TestAgentConn_Disconnected(t *testing.T) {
	url, conns := agentServer(t, time.Second)
	rawAgent(t, url, func(conn *websocket.Conn, req agent.Request) {
		conn.Close()
	})
	proxy := waitConn(t, conns)

	if _, err := proxy.RequestMove(context.Background(), 0, testUniverse(t)); !errors.Is(err, agent.ErrDisconnected) {
		t.Fatalf("Expected ErrDisconnected, got %v", err)
	}
	select {
	case <-proxy.Done():
	case <-time.After(time.Second):
		t.Fatal("Expected the proxy to notice the disconnect")
	}
}

func TestAcceptAgent_NoHello(t *testing.T) {
	errs := make(chan error, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := AcceptAgent(w, r, 30*time.Millisecond, nil)
		errs <- err
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("Expected an error when the team never says hello")
		}
	case <-time.After(time.Second):
		t.Fatal("AcceptAgent did not give up")
	}
}

func TestRunAgent_DialFails(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	err := RunAgent(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), agent.NewSimpleTeam("x", agent.StoppingPlayer{}), nil)
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Errorf("Expected a rejection error, got %v", err)
	}
}

func TestRunAgent_Cancelled(t *testing.T) {
	url, conns := agentServer(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- RunAgent(ctx, url, agent.NewSimpleTeam("x", agent.StoppingPlayer{}), nil) }()
	proxy := waitConn(t, conns)

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunAgent did not stop")
	}
	select {
	case <-proxy.Done():
	case <-time.After(time.Second):
		t.Fatal("Expected the server side to notice the agent left")
	}
}
