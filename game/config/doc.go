// Package config manages the layout configurations of capture-maze.
//
// Configuration Format:
//
// Each configuration is a JSON file in the configs directory holding an
// engine.GameConfig:
//   - layout rows using '#' for walls, '.' for food and digits for bots
//   - the number of bots, split evenly between two teams
//   - optional team names, round limit, move timeout and timeout threshold
//
// The file name without extension is the config id used to create matches.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameConfig, err := manager.LoadConfig("classic")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
//
// Validation:
//
// Configurations are checked with engine.ValidateGameConfig when loaded and
// before they are saved: a rectangular maze closed by walls, every bot
// placed exactly once, food in every team's zone and every food reachable
// by the enemy bots. Invalid files are skipped by ListConfigs and reported
// as ErrInvalidConfig by LoadConfig.
package config
