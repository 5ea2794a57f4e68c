package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/inconshreveable/log15"
	"github.com/jpillora/backoff"

	"github.com/wricardo/capture-maze/game/agent"
)

// DialAttempts bounds how often RunAgent tries to reach the server
const DialAttempts = 5

// RunAgent connects team to the agent endpoint at url and answers the
// referee until the match ends or ctx is done. A normal close by the server
// returns nil.
func RunAgent(ctx context.Context, url string, team agent.Team, logger log15.Logger) error {
	if logger == nil {
		logger = log15.New("module", "websocket")
	}
	logger = logger.New("team", team.Name())

	conn, err := dial(ctx, url, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "agent stopped"),
			time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	if err := conn.WriteJSON(agent.Hello{Team: team.Name()}); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}
	logger.Info("connected", "url", url)

	for {
		var req agent.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Info("match over")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		reply := agent.Dispatch(team, req)
		if reply.Error != "" {
			logger.Warn("request failed", "method", req.Method, "err", reply.Error)
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to send reply: %w", err)
		}
	}
}

func dial(ctx context.Context, url string, logger log15.Logger) (*websocket.Conn, error) {
	b := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= DialAttempts; attempt++ {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// The server refused this team, retrying will not help
			return nil, fmt.Errorf("server rejected agent: %s", resp.Status)
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, ctx.Err()
		}

		wait := b.Duration()
		logger.Warn("dial failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", DialAttempts, lastErr)
}
