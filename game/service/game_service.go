package service

import (
	"context"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
)

// GameService defines all match-related operations
type GameService interface {
	// Match Management
	CreateMatch(ctx context.Context, configName string) (*MatchInfo, error)
	GetMatch(ctx context.Context, matchID string) (*MatchInfo, error)
	ListMatches(ctx context.Context) ([]*MatchInfo, error)
	DeleteMatch(ctx context.Context, matchID string) error

	// Teams
	AddLocalTeam(ctx context.Context, matchID, teamName, strategy string) (*MatchInfo, error)
	JoinMatch(ctx context.Context, matchID string, proxy agent.Proxy, kind string) (int, error)

	// Match State
	GetUniverse(ctx context.Context, matchID string) (*engine.Universe, error)
	GetLegalMoves(ctx context.Context, matchID string, botIndex int) (*LegalMovesResponse, error)
	GetHistory(ctx context.Context, matchID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error
}

// SessionManager defines match storage operations
type SessionManager interface {
	Create(id, configName string, config *engine.GameConfig) (*Match, error)
	Get(id string) (*Match, error)
	List() []*Match
	Delete(id string) error
	// Join registers proxy for the next free team slot and starts the
	// match once every slot is taken
	Join(id string, proxy agent.Proxy, info TeamInfo) (int, error)
	UpdateLastAccessed(id string) error
}

// ConfigManager handles layout configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}
