package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/wricardo/capture-maze/game/engine"
)

// LocalProxy runs an in-process Team under a deadline. Each call works on
// a private copy of the universe; replies that arrive after their call
// expired are dropped.
type LocalProxy struct {
	team    Team
	timeout time.Duration
	logger  log15.Logger

	// teamMu serializes calls into the team, including late ones
	teamMu sync.Mutex

	generation  uint64
	expired     uint64
	lateReplies uint64

	mu     sync.Mutex
	closed bool
	name   string
}

// LocalOption configures a LocalProxy
type LocalOption func(*LocalProxy)

// WithTimeout sets the per-call deadline
func WithTimeout(d time.Duration) LocalOption {
	return func(p *LocalProxy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the proxy logger
func WithLogger(l log15.Logger) LocalOption {
	return func(p *LocalProxy) {
		p.logger = l
	}
}

// NewLocalProxy wraps team with the default deadline
func NewLocalProxy(team Team, opts ...LocalOption) *LocalProxy {
	p := &LocalProxy{
		team:    team,
		timeout: DefaultTimeout,
		logger:  log15.New("module", "agent", "team", team.Name()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type localResult struct {
	dir engine.Direction
	err error
}

func (p *LocalProxy) call(ctx context.Context, method string, fn func() (engine.Direction, error)) (engine.Direction, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return "", ErrDisconnected
	}

	gen := atomic.AddUint64(&p.generation, 1)
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan localResult, 1)
	go func() {
		p.teamMu.Lock()
		defer p.teamMu.Unlock()
		if atomic.LoadUint64(&p.expired) >= gen {
			// expired while waiting for a previous late call
			return
		}
		var res localResult
		func() {
			defer func() {
				if r := recover(); r != nil {
					res = localResult{err: fmt.Errorf("%w: team panicked: %v", ErrMalformedReply, r)}
				}
			}()
			res.dir, res.err = fn()
		}()
		if atomic.LoadUint64(&p.expired) >= gen {
			atomic.AddUint64(&p.lateReplies, 1)
			p.logger.Debug("dropping late reply", "method", method, "generation", gen)
			return
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res.dir, classify(res.err)
	case <-ctx.Done():
		atomic.StoreUint64(&p.expired, gen)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.logger.Warn("team timed out", "method", method, "timeout", p.timeout)
			return "", ErrTimeout
		}
		return "", ctx.Err()
	}
}

// AssignBotIDs tells the team which bots it controls
func (p *LocalProxy) AssignBotIDs(ctx context.Context, ids []int) error {
	ids = append([]int(nil), ids...)
	_, err := p.call(ctx, MethodSetBotIDs, func() (engine.Direction, error) {
		return "", p.team.SetBotIDs(ids)
	})
	if err == nil {
		p.mu.Lock()
		p.name = p.team.Name()
		p.mu.Unlock()
	}
	return err
}

// ProvideInitialState hands the starting universe to the team
func (p *LocalProxy) ProvideInitialState(ctx context.Context, u *engine.Universe) error {
	cp := u.Copy()
	_, err := p.call(ctx, MethodSetInitial, func() (engine.Direction, error) {
		return "", p.team.SetInitial(cp)
	})
	return err
}

// RequestMove asks the team for the next move of a bot
func (p *LocalProxy) RequestMove(ctx context.Context, botIndex int, u *engine.Universe) (engine.Direction, error) {
	cp := u.Copy()
	dir, err := p.call(ctx, MethodPlayNow, func() (engine.Direction, error) {
		return p.team.GetMove(botIndex, cp)
	})
	if err != nil {
		return "", err
	}
	return checkDirection(dir)
}

// TeamName returns the team's name once bot ids were assigned
func (p *LocalProxy) TeamName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// LateReplies counts replies dropped because their deadline had passed
func (p *LocalProxy) LateReplies() uint64 {
	return atomic.LoadUint64(&p.lateReplies)
}

// Close marks the proxy disconnected. Further calls fail with ErrDisconnected.
func (p *LocalProxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
