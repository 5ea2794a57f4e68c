package master

import (
	"time"

	"github.com/wricardo/capture-maze/game/engine"
)

// Default game master settings
const (
	DefaultMaxRounds        = 300
	DefaultTimeoutThreshold = 5
	DefaultConnectAttempts  = 3
	DefaultBackoffMin       = 100 * time.Millisecond
	DefaultBackoffMax       = 2 * time.Second
)

// Config controls the length of a match and how failures are handled
type Config struct {
	MaxRounds int
	// TimeoutThreshold is the number of timeouts a team may accumulate;
	// one more forfeits the match. Zero means DefaultTimeoutThreshold.
	TimeoutThreshold int
	// ConnectAttempts bounds the handshake attempts per team
	ConnectAttempts int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
}

// DefaultConfig returns the default settings
func DefaultConfig() Config {
	return Config{
		MaxRounds:        DefaultMaxRounds,
		TimeoutThreshold: DefaultTimeoutThreshold,
		ConnectAttempts:  DefaultConnectAttempts,
		BackoffMin:       DefaultBackoffMin,
		BackoffMax:       DefaultBackoffMax,
	}
}

// ConfigFromGame takes the match settings of a layout config, keeping
// defaults for everything it leaves unset
func ConfigFromGame(gc *engine.GameConfig) Config {
	cfg := DefaultConfig()
	if gc == nil {
		return cfg
	}
	if gc.MaxRounds > 0 {
		cfg.MaxRounds = gc.MaxRounds
	}
	if gc.TimeoutThreshold > 0 {
		cfg.TimeoutThreshold = gc.TimeoutThreshold
	}
	return cfg
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRounds <= 0 {
		c.MaxRounds = d.MaxRounds
	}
	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = d.TimeoutThreshold
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = d.ConnectAttempts
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = d.BackoffMin
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = c.BackoffMin
	}
	return c
}
