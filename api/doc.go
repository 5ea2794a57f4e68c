// Package api provides the HTTP REST API of capture-maze.
//
// Endpoints:
//
// Matches:
//   - POST /api/matches - Create a match waiting for its teams ({"config_id": "classic"})
//   - GET /api/matches - List matches (?sort=created|accessed&order=asc|desc&limit=N&state=S)
//   - GET /api/matches/{id} - Get match details, teams, scores and result
//   - DELETE /api/matches/{id} - Delete a match, cancelling it when running
//
// Teams:
//   - POST /api/matches/{id}/local - Add a built-in strategy ({"team": "ants", "strategy": "bfs"})
//   - POST /api/matches/{id}/remote - Add a team served over HTTP ({"url": "http://host:port/"})
//   - GET /agent?match={id} - Join as a team over a websocket
//
// Match State:
//   - GET /api/matches/{id}/universe - Current universe (?format=text for a drawing)
//   - GET /api/matches/{id}/history - Turn history (?page=N&limit=N&order=asc|desc)
//   - GET /api/matches/{id}/legal-moves?bot=N - Moves bot N may make now
//   - GET /ws?match={id} - Watch a match, one message per turn
//
// Configuration:
//   - GET /api/configs - List layout configurations
//   - POST /api/configs - Save a layout configuration
//   - GET /api/configs/{name} - Get a layout configuration
//
// Usage:
//
//	server := api.NewServer(gameService, hub, api.WithLogger(logger))
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with a status code derived from the error:
// 404 for unknown matches and configs, 400 for invalid arguments, 409 when a
// match is full or already started, 500 otherwise.
//
//	{"error": "match ab12cd34: match not found"}
package api
