package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GameConfig is a maze layout plus the match settings stored as JSON
type GameConfig struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Layout           []string `json:"layout"`
	NumberBots       int      `json:"number_bots"`
	TeamNames        []string `json:"team_names,omitempty"`
	MaxRounds        int      `json:"max_rounds"`
	MoveTimeoutMs    int      `json:"move_timeout_ms,omitempty"`
	TimeoutThreshold int      `json:"timeout_threshold,omitempty"`
}

// MoveTimeout returns the per-request deadline, or fallback when unset
func (c *GameConfig) MoveTimeout(fallback time.Duration) time.Duration {
	if c.MoveTimeoutMs <= 0 {
		return fallback
	}
	return time.Duration(c.MoveTimeoutMs) * time.Millisecond
}

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	if config.NumberBots <= 0 || config.NumberBots > MaxNumberBots {
		return fmt.Errorf("config validation: number_bots must be between 1 and %d, got %d", MaxNumberBots, config.NumberBots)
	}
	if config.NumberBots%DefaultNumberTeams != 0 {
		return fmt.Errorf("config validation: number_bots must be a multiple of %d, got %d", DefaultNumberTeams, config.NumberBots)
	}
	if config.MaxRounds < MinMaxRounds || config.MaxRounds > MaxMaxRounds {
		return fmt.Errorf("config validation: max_rounds must be between %d and %d, got %d", MinMaxRounds, MaxMaxRounds, config.MaxRounds)
	}
	if config.MoveTimeoutMs < 0 {
		return fmt.Errorf("config validation: move_timeout_ms cannot be negative, got %d", config.MoveTimeoutMs)
	}
	if config.TimeoutThreshold < 0 {
		return fmt.Errorf("config validation: timeout_threshold cannot be negative, got %d", config.TimeoutThreshold)
	}
	if len(config.TeamNames) > DefaultNumberTeams {
		return fmt.Errorf("config validation: at most %d team_names allowed, got %d", DefaultNumberTeams, len(config.TeamNames))
	}

	if len(config.Layout) < MinLayoutSize || len(config.Layout) > MaxLayoutSize {
		return fmt.Errorf("config validation: layout must have between %d and %d rows, got %d", MinLayoutSize, MaxLayoutSize, len(config.Layout))
	}
	layout, err := CheckLayout(config.Layout, config.NumberBots)
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if layout.Width < MinLayoutSize || layout.Width > MaxLayoutSize {
		return fmt.Errorf("config validation: layout width must be between %d and %d, got %d", MinLayoutSize, MaxLayoutSize, layout.Width)
	}

	u, err := layout.Universe(config.TeamNames...)
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	// The maze must be closed so no bot walks off the edge through the
	// bounds check alone, and every team needs food to defend.
	for y, row := range config.Layout {
		for x := 0; x < len(row); x++ {
			edge := y == 0 || y == len(config.Layout)-1 || x == 0 || x == len(row)-1
			if edge && row[x] != WallChar {
				return fmt.Errorf("config validation: border cell (%d, %d) must be a wall", x, y)
			}
		}
	}
	for _, t := range u.Teams {
		if len(u.TeamFood(t.Index)) == 0 {
			return fmt.Errorf("config validation: zone of team %d contains no food", t.Index)
		}
	}

	// Every food must be reachable by some bot of the opposing team
	for _, t := range u.Teams {
		for _, pos := range u.TeamFood(t.Index) {
			reachable := false
			for _, enemy := range u.EnemyBots(t.Index) {
				if ShortestPath(u, enemy.InitialPos, pos) != nil {
					reachable = true
					break
				}
			}
			if !reachable {
				return fmt.Errorf("config validation: food at (%d, %d) is unreachable for the enemy of team %d", pos.X, pos.Y, t.Index)
			}
		}
	}

	return nil
}

// NewUniverseFromConfig builds the starting universe of a config
func NewUniverseFromConfig(config *GameConfig) (*Universe, error) {
	layout, err := CheckLayout(config.Layout, config.NumberBots)
	if err != nil {
		return nil, err
	}
	return layout.Universe(config.TeamNames...)
}

// LoadGameConfig loads a game configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultGameConfig returns the small built-in maze used when no config is given
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		Name:        "default",
		Description: "Small two bot per team maze",
		Layout: []string{
			"##################",
			"#0#.  .  # .     #",
			"#2#####    #####3#",
			"#     . #  .  .#1#",
			"##################",
		},
		NumberBots: 4,
		MaxRounds:  300,
	}
}
