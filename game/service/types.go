package service

import (
	"sync"
	"time"

	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
)

// TeamInfo describes who plays a team slot
type TeamInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Kind  string `json:"kind"` // "local", "websocket" or "http"
	// Strategy is set for local teams
	Strategy string `json:"strategy,omitempty"`
}

// MatchInfo provides information about a match
type MatchInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	State          master.State       `json:"state"`
	Round          int                `json:"round"`
	Turn           int                `json:"turn"`
	Teams          []TeamInfo         `json:"teams"`
	Scores         []int              `json:"scores"`
	NumberTeams    int                `json:"number_teams"`
	NumberBots     int                `json:"number_bots"`
	Result         *master.Result     `json:"result,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameConfig     *engine.GameConfig `json:"game_config,omitempty"`
}

// LegalMove is one possible move of a bot
type LegalMove struct {
	Direction engine.Direction `json:"direction"`
	To        engine.Position  `json:"to"`
}

// LegalMovesResponse lists the moves a bot may make right now
type LegalMovesResponse struct {
	Bot      int             `json:"bot"`
	Team     int             `json:"team"`
	Position engine.Position `json:"position"`
	Role     string          `json:"role"` // "destroyer" or "harvester"
	Moves    []LegalMove     `json:"moves"`
}

// HistoryOptions configures turn history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated turn history
type HistoryResponse struct {
	Turns       []master.TurnRecord `json:"turns"`
	TotalTurns  int                 `json:"total_turns"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalPages  int                 `json:"total_pages"`
	HasNext     bool                `json:"has_next"`
	HasPrevious bool                `json:"has_previous"`
}

// ConfigInfo provides information about a layout configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for match creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	NumberBots  int    `json:"number_bots"`
	MaxRounds   int    `json:"max_rounds"`
	Food        int    `json:"food"`
}

// Match is a game master together with its bookkeeping
type Match struct {
	ID         string
	ConfigName string
	Config     *engine.GameConfig
	Master     *master.GameMaster
	CreatedAt  time.Time

	mu             sync.RWMutex
	teams          []TeamInfo
	lastAccessedAt time.Time
}

// NewMatch creates a match record around gm
func NewMatch(id, configName string, config *engine.GameConfig, gm *master.GameMaster) *Match {
	now := time.Now()
	return &Match{
		ID:             id,
		ConfigName:     configName,
		Config:         config,
		Master:         gm,
		CreatedAt:      now,
		lastAccessedAt: now,
	}
}

// AddTeam records the player of a team slot
func (m *Match) AddTeam(info TeamInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams = append(m.teams, info)
}

// Teams returns the recorded team slots
func (m *Match) Teams() []TeamInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TeamInfo(nil), m.teams...)
}

// Touch updates the last access time
func (m *Match) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAccessedAt = time.Now()
}

// SetLastAccessed overrides the last access time, used when restoring
func (m *Match) SetLastAccessed(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAccessedAt = t
}

// LastAccessedAt returns the last access time
func (m *Match) LastAccessedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAccessedAt
}

// Info builds the API view of the match
func (m *Match) Info() *MatchInfo {
	u := m.Master.Universe()
	round, turn := m.Master.Round()
	teams := m.Teams()
	for i := range teams {
		if teams[i].Index >= 0 && teams[i].Index < len(u.Teams) {
			teams[i].Name = u.Teams[teams[i].Index].Name
		}
	}
	return &MatchInfo{
		ID:             m.ID,
		ConfigName:     m.ConfigName,
		State:          m.Master.State(),
		Round:          round,
		Turn:           turn,
		Teams:          teams,
		Scores:         u.Scores(),
		NumberTeams:    u.NumberTeams(),
		NumberBots:     u.NumberBots(),
		Result:         m.Master.Result(),
		CreatedAt:      m.CreatedAt,
		LastAccessedAt: m.LastAccessedAt(),
		GameConfig:     m.Config,
	}
}
