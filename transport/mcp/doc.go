// Package mcp provides the Model Context Protocol interface of capture-maze.
//
// The mcp package implements a thin MCP server whose tools proxy to the
// REST API, so an AI agent can set up matches, watch them and study the
// rules without speaking the agent protocol itself.
//
// MCP Tools:
//   - list_configs: List available maze layouts
//   - create_match: Create a match waiting for two teams
//   - add_local_team: Fill a team slot with a built-in strategy
//   - list_matches: List all matches
//   - get_match: Get match details, teams, scores and result
//   - match_state: Draw the maze with bots, food and scores
//   - match_history: View past turns with pagination
//   - legal_moves: Moves a bot may make right now
//   - game_rules: Full rules of the game
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the /mcp endpoint of the server command
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
