package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/wricardo/capture-maze/game/engine"
)

// HTTPProxy reaches a team served by Handler over plain HTTP request/reply
type HTTPProxy struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     log15.Logger
	seq        uint64

	mu     sync.Mutex
	name   string
	closed bool
}

// NewHTTPProxy creates a proxy posting requests to url
func NewHTTPProxy(url string, timeout time.Duration) *HTTPProxy {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProxy{
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     log15.New("module", "agent", "url", url),
	}
}

func (p *HTTPProxy) do(ctx context.Context, req Request) (Reply, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return Reply{}, ErrDisconnected
	}

	req.Seq = atomic.AddUint64(&p.seq, 1)
	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Reply{}, ErrTimeout
		}
		if ctx.Err() != nil {
			return Reply{}, ctx.Err()
		}
		p.logger.Warn("team unreachable", "method", req.Method, "err", err)
		return Reply{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Reply{}, ErrTimeout
		}
		return Reply{}, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Reply{}, fmt.Errorf("%w: status %d: %s", ErrMalformedReply, resp.StatusCode, bytes.TrimSpace(data))
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if reply.Seq != req.Seq {
		return Reply{}, fmt.Errorf("%w: reply for seq %d, expected %d", ErrMalformedReply, reply.Seq, req.Seq)
	}
	return reply, nil
}

// AssignBotIDs sends the bot ids and records the team name from the reply
func (p *HTTPProxy) AssignBotIDs(ctx context.Context, ids []int) error {
	reply, err := p.do(ctx, Request{Method: MethodSetBotIDs, BotIDs: ids})
	if err != nil {
		return err
	}
	if err := ErrorFromReply(reply); err != nil {
		return err
	}
	p.mu.Lock()
	p.name = reply.Team
	p.mu.Unlock()
	return nil
}

// ProvideInitialState sends the starting universe
func (p *HTTPProxy) ProvideInitialState(ctx context.Context, u *engine.Universe) error {
	reply, err := p.do(ctx, Request{Method: MethodSetInitial, Universe: u})
	if err != nil {
		return err
	}
	return ErrorFromReply(reply)
}

// RequestMove asks the remote team for a move
func (p *HTTPProxy) RequestMove(ctx context.Context, botIndex int, u *engine.Universe) (engine.Direction, error) {
	reply, err := p.do(ctx, Request{Method: MethodPlayNow, BotIndex: botIndex, Universe: u})
	if err != nil {
		return "", err
	}
	return MoveFromReply(reply)
}

// TeamName returns the name reported during the handshake
func (p *HTTPProxy) TeamName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// Close stops the proxy from issuing further requests
func (p *HTTPProxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.httpClient.CloseIdleConnections()
	return nil
}

// Handler serves a team to an HTTPProxy. Requests are handled one at a time.
func Handler(team Team) http.Handler {
	var mu sync.Mutex
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		reply := Dispatch(team, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	})
}
