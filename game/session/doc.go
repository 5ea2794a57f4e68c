// Package session keeps track of the matches served by the application.
//
// The session package implements:
//   - Thread-safe match storage and retrieval
//   - Match ID generation
//   - Team registration and automatic match start
//   - Persistence of finished matches
//   - Cleanup of stale matches
//
// Core Types:
//
// Manager holds every match in memory keyed by its lowercase ID. A match is
// created waiting for its teams; Join fills the next team slot and, once
// all slots are taken, the match is played by its game master in a
// goroutine owned by the manager. Shutdown cancels running matches and
// waits for them.
//
// Match Identifiers:
//
// Generated IDs are the first block of a random UUID. Lookups are
// case-insensitive.
//
// Persistence:
//
// FilePersistence writes one JSON record per finished match holding the
// config, the team slots, the result, the final universe and the turn
// history. Loading a record restores a finished game master that can be
// queried like any other match.
//
// Usage:
//
//	persistence, _ := session.NewFilePersistence("matches")
//	manager := session.NewManagerWithPersistence(persistence)
//
//	match, err := manager.Create("", "classic", config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	manager.Join(match.ID, proxyA, service.TeamInfo{Kind: "local"})
//	manager.Join(match.ID, proxyB, service.TeamInfo{Kind: "websocket"})
package session
