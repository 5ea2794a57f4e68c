package session

import (
	"time"

	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
)

// SessionPersistence defines the interface for persisting finished matches
type SessionPersistence interface {
	// Save persists a finished match to storage
	Save(match *service.Match) error

	// Load retrieves a match from storage by ID
	Load(id string) (*service.Match, error)

	// Delete removes a match from storage
	Delete(id string) error

	// ListAll returns all persisted match IDs
	ListAll() ([]string, error)

	// Exists checks if a match exists in storage
	Exists(id string) bool
}

// PersistedMatchData represents the JSON structure for persisted matches
type PersistedMatchData struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	Config         *engine.GameConfig  `json:"config"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	Teams          []service.TeamInfo  `json:"teams"`
	Result         *master.Result      `json:"result"`
	Universe       *engine.Universe    `json:"universe"`
	History        []master.TurnRecord `json:"history"`
}
