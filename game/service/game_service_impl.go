package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
)

// ErrInvalidArgument marks requests that name something that cannot exist
var ErrInvalidArgument = errors.New("invalid argument")

// Team slot kinds
const (
	KindLocal     = "local"
	KindWebsocket = "websocket"
	KindHTTP      = "http"
)

// DefaultStrategy is used for local teams added without one
const DefaultStrategy = "bfs"

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// CreateMatch creates a match waiting for its teams
func (s *gameServiceImpl) CreateMatch(ctx context.Context, configName string) (*MatchInfo, error) {
	var config *engine.GameConfig
	var err error
	configID := configName
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			return nil, s.configError(configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.getConfigID(config.Name)
	}

	match, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	return match.Info(), nil
}

// configError adds the available config ids to a failed lookup
func (s *gameServiceImpl) configError(configName string, err error) error {
	available, listErr := s.configs.ListConfigs()
	if listErr != nil || len(available) == 0 {
		return fmt.Errorf("failed to load config %s: %w", configName, err)
	}
	ids := make([]string, 0, len(available))
	for _, cfg := range available {
		ids = append(ids, cfg.ConfigID)
	}
	return fmt.Errorf("failed to load config %s (available: %v): %w", configName, ids, err)
}

// getConfigID returns the config_id for a display name
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

// GetMatch retrieves match information
func (s *gameServiceImpl) GetMatch(ctx context.Context, matchID string) (*MatchInfo, error) {
	match, err := s.get(matchID)
	if err != nil {
		return nil, err
	}
	return match.Info(), nil
}

// ListMatches returns all known matches, oldest first
func (s *gameServiceImpl) ListMatches(ctx context.Context) ([]*MatchInfo, error) {
	matches := s.sessions.List()
	result := make([]*MatchInfo, 0, len(matches))
	for _, m := range matches {
		result = append(result, m.Info())
	}
	return result, nil
}

// DeleteMatch removes a match, cancelling it when it is still running
func (s *gameServiceImpl) DeleteMatch(ctx context.Context, matchID string) error {
	return s.sessions.Delete(matchID)
}

// AddLocalTeam fills the next team slot with a reference strategy
func (s *gameServiceImpl) AddLocalTeam(ctx context.Context, matchID, teamName, strategy string) (*MatchInfo, error) {
	match, err := s.get(matchID)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = DefaultStrategy
	}
	if teamName == "" {
		teamName = strategy
	}

	u := match.Master.Universe()
	bots := u.NumberBots() / u.NumberTeams()
	team, err := agent.NewStrategyTeam(teamName, strategy, bots, time.Now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	proxy := agent.NewLocalProxy(team, agent.WithTimeout(match.Config.MoveTimeout(agent.DefaultTimeout)))

	if _, err := s.sessions.Join(match.ID, proxy, TeamInfo{Name: teamName, Kind: KindLocal, Strategy: strategy}); err != nil {
		proxy.Close()
		return nil, err
	}
	return match.Info(), nil
}

// JoinMatch fills the next team slot with a remote agent
func (s *gameServiceImpl) JoinMatch(ctx context.Context, matchID string, proxy agent.Proxy, kind string) (int, error) {
	match, err := s.get(matchID)
	if err != nil {
		return -1, err
	}
	return s.sessions.Join(match.ID, proxy, TeamInfo{Name: proxy.TeamName(), Kind: kind})
}

// GetUniverse returns a copy of the match universe
func (s *gameServiceImpl) GetUniverse(ctx context.Context, matchID string) (*engine.Universe, error) {
	match, err := s.get(matchID)
	if err != nil {
		return nil, err
	}
	return match.Master.Universe(), nil
}

// GetLegalMoves lists the moves a bot could make now
func (s *gameServiceImpl) GetLegalMoves(ctx context.Context, matchID string, botIndex int) (*LegalMovesResponse, error) {
	match, err := s.get(matchID)
	if err != nil {
		return nil, err
	}
	u := match.Master.Universe()
	if botIndex < 0 || botIndex >= u.NumberBots() {
		return nil, fmt.Errorf("%w: bot %d does not exist", ErrInvalidArgument, botIndex)
	}

	bot := u.Bots[botIndex]
	resp := &LegalMovesResponse{
		Bot:      botIndex,
		Team:     bot.TeamIndex,
		Position: bot.CurrentPos,
		Role:     "harvester",
		Moves:    []LegalMove{},
	}
	if bot.IsDestroyer() {
		resp.Role = "destroyer"
	}
	moves := u.LegalMoves(bot.CurrentPos)
	for _, dir := range u.LegalDirections(bot.CurrentPos) {
		resp.Moves = append(resp.Moves, LegalMove{Direction: dir, To: moves[dir]})
	}
	return resp, nil
}

// GetHistory returns paginated turn history
func (s *gameServiceImpl) GetHistory(ctx context.Context, matchID string, opts HistoryOptions) (*HistoryResponse, error) {
	match, err := s.get(matchID)
	if err != nil {
		return nil, err
	}

	history := match.Master.History()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	// Pages past the end start at total so the offset cannot overflow
	start := total
	if opts.Page-1 <= total/opts.Limit {
		start = (opts.Page - 1) * opts.Limit
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	page := []master.TurnRecord{}
	if start < total {
		if opts.Order == "desc" {
			// Most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				page = append(page, history[i])
			}
		} else {
			page = append(page, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Turns:       page,
		TotalTurns:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available layout configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific layout configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a layout configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

func (s *gameServiceImpl) get(matchID string) (*Match, error) {
	match, err := s.sessions.Get(matchID)
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", matchID, err)
	}
	s.sessions.UpdateLastAccessed(match.ID)
	return match, nil
}
