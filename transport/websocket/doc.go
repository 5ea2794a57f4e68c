// Package websocket provides the WebSocket transport of capture-maze.
//
// The websocket package implements:
//   - A viewer hub broadcasting match snapshots and results
//   - AgentConn, an agent.Proxy for teams connected over a websocket
//   - RunAgent, the team side of the same protocol
//
// Viewers:
//
// The Hub uses a hub-and-spoke model. Viewers connect with the id of the
// match they watch and receive a Message after every turn:
//
//	{"match_id": "ab12cd34", "event": "snapshot", "snapshot": {...}}
//	{"match_id": "ab12cd34", "event": "finished", "result": {...}}
//
// Hub.Observer returns a master.Observer that publishes to the viewers of
// one match. Publishing never blocks the game loop; messages are dropped
// when the hub lags and viewers that cannot keep up are disconnected.
//
// Agents:
//
// A remote team dials the agent endpoint and sends an agent.Hello. The
// referee then sends agent.Request values and expects an agent.Reply with
// the same seq for each. Replies to requests that already timed out are
// dropped. The referee closes the connection with a normal close when the
// match is over.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	conn, err := websocket.AcceptAgent(w, r, time.Second, logger)
//	idx, err := gameService.JoinMatch(ctx, matchID, conn, service.KindWebsocket)
//
//	err = websocket.RunAgent(ctx, "ws://localhost:8080/agent?match=ab12cd34", team, logger)
package websocket
