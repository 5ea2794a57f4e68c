package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/capture-maze/game/engine"
)

// DefaultTimeout bounds every call a proxy makes to its team
const DefaultTimeout = 3 * time.Second

var (
	// ErrTimeout is returned when a team does not answer before the deadline
	ErrTimeout = errors.New("agent: reply timed out")
	// ErrDisconnected is returned once a team can no longer be reached
	ErrDisconnected = errors.New("agent: disconnected")
	// ErrMalformedReply is returned for replies that do not carry a direction
	ErrMalformedReply = errors.New("agent: malformed reply")
)

// Proxy is the referee's view of one team, local or remote. Every call is
// bounded by the proxy's own deadline on top of ctx. Proxies never retry.
type Proxy interface {
	AssignBotIDs(ctx context.Context, ids []int) error
	ProvideInitialState(ctx context.Context, u *engine.Universe) error
	RequestMove(ctx context.Context, botIndex int, u *engine.Universe) (engine.Direction, error)
	// TeamName is the name the team reported, or "" before the handshake
	TeamName() string
	Close() error
}

// Team is a decision function for the bots of one team
type Team interface {
	Name() string
	SetBotIDs(ids []int) error
	SetInitial(u *engine.Universe) error
	GetMove(botIndex int, u *engine.Universe) (engine.Direction, error)
}

// classify maps an error coming back from a team onto the proxy errors
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrDisconnected), errors.Is(err, ErrMalformedReply):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
}

// checkDirection rejects values that are not one of the five directions
func checkDirection(d engine.Direction) (engine.Direction, error) {
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown direction %q", ErrMalformedReply, d)
	}
	return d, nil
}
