// Package service provides the business logic layer for capture-maze matches.
//
// The service package implements:
//   - Match creation from layout configurations
//   - Team registration for local strategies and remote agents
//   - Read access to the universe, legal moves and turn history
//   - Configuration listing, loading and saving
//
// Core Interfaces:
//
// GameService is the main service interface used by the REST API, the
// websocket agent endpoint and the MCP tools. SessionManager stores matches
// and starts them once all teams joined. ConfigManager loads and validates
// layout configurations.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP)
// and the game master. Each Match wraps its own GameMaster; the service
// never mutates a universe, it only reads copies.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateMatch(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameService.AddLocalTeam(ctx, info.ID, "ants", "bfs")
//	gameService.AddLocalTeam(ctx, info.ID, "bees", "random")
package service
