package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/inconshreveable/log15"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
)

// Maximum message size accepted from a remote team
const maxAgentMessageSize = 64 * 1024

// AgentConn is an agent.Proxy for a team connected over a websocket.
// Requests are matched to replies by sequence number; replies that arrive
// after their deadline are dropped.
type AgentConn struct {
	conn    *websocket.Conn
	timeout time.Duration
	logger  log15.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan agent.Reply
	name    string

	done      chan struct{}
	closeOnce sync.Once
}

var _ agent.Proxy = (*AgentConn)(nil)

// AcceptAgent upgrades r and waits for the team's Hello
func AcceptAgent(w http.ResponseWriter, r *http.Request, timeout time.Duration, logger log15.Logger) (*AgentConn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade failed: %w", err)
	}
	if timeout <= 0 {
		timeout = agent.DefaultTimeout
	}

	var hello agent.Hello
	conn.SetReadDeadline(time.Now().Add(timeout))
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	return NewAgentConn(conn, hello, timeout, logger), nil
}

// NewAgentConn wraps an established connection and starts reading replies
func NewAgentConn(conn *websocket.Conn, hello agent.Hello, timeout time.Duration, logger log15.Logger) *AgentConn {
	if timeout <= 0 {
		timeout = agent.DefaultTimeout
	}
	if logger == nil {
		logger = log15.New("module", "websocket")
	}
	c := &AgentConn{
		conn:    conn,
		timeout: timeout,
		logger:  logger.New("team", hello.Team, "remote", conn.RemoteAddr().String()),
		pending: make(map[uint64]chan agent.Reply),
		name:    hello.Team,
		done:    make(chan struct{}),
	}
	conn.SetReadLimit(maxAgentMessageSize)
	go c.readLoop()
	return c
}

func (c *AgentConn) readLoop() {
	defer c.shutdown()
	for {
		var reply agent.Reply
		if err := c.conn.ReadJSON(&reply); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.logger.Info("team closed connection", "code", closeErr.Code)
			} else {
				c.logger.Debug("team connection lost", "err", err)
			}
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[reply.Seq]
		delete(c.pending, reply.Seq)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("dropping unexpected reply", "seq", reply.Seq)
			continue
		}
		ch <- reply
	}
}

func (c *AgentConn) do(ctx context.Context, req agent.Request) (agent.Reply, error) {
	select {
	case <-c.done:
		return agent.Reply{}, agent.ErrDisconnected
	default:
	}

	ch := make(chan agent.Reply, 1)
	c.mu.Lock()
	c.seq++
	req.Seq = c.seq
	c.pending[req.Seq] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.Seq)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.write(req); err != nil {
		c.shutdown()
		return agent.Reply{}, fmt.Errorf("%w: %v", agent.ErrDisconnected, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-c.done:
		return agent.Reply{}, agent.ErrDisconnected
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return agent.Reply{}, agent.ErrTimeout
		}
		return agent.Reply{}, ctx.Err()
	}
}

func (c *AgentConn) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// AssignBotIDs sends the bot ids. A team name in the reply replaces the one
// from the hello.
func (c *AgentConn) AssignBotIDs(ctx context.Context, ids []int) error {
	reply, err := c.do(ctx, agent.Request{Method: agent.MethodSetBotIDs, BotIDs: ids})
	if err != nil {
		return err
	}
	if err := agent.ErrorFromReply(reply); err != nil {
		return err
	}
	if reply.Team != "" {
		c.mu.Lock()
		c.name = reply.Team
		c.mu.Unlock()
	}
	return nil
}

// ProvideInitialState sends the starting universe
func (c *AgentConn) ProvideInitialState(ctx context.Context, u *engine.Universe) error {
	reply, err := c.do(ctx, agent.Request{Method: agent.MethodSetInitial, Universe: u})
	if err != nil {
		return err
	}
	return agent.ErrorFromReply(reply)
}

// RequestMove asks the team for the move of one of its bots
func (c *AgentConn) RequestMove(ctx context.Context, botIndex int, u *engine.Universe) (engine.Direction, error) {
	reply, err := c.do(ctx, agent.Request{Method: agent.MethodPlayNow, BotIndex: botIndex, Universe: u})
	if err != nil {
		return "", err
	}
	return agent.MoveFromReply(reply)
}

func (c *AgentConn) TeamName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Done is closed once the connection is gone
func (c *AgentConn) Done() <-chan struct{} {
	return c.done
}

// Close says goodbye to the team and releases the connection
func (c *AgentConn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	c.shutdown()
	return nil
}

func (c *AgentConn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
