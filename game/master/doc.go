// Package master runs a match between teams.
//
// A GameMaster owns the authoritative Universe. It walks through three
// states: initializing (teams are registered and the handshake is done),
// running (rounds are played, each bot in index order asks its team's
// proxy for a move) and finished (a Result is available).
//
// Failures of a team never stall the match. A timeout, a malformed reply
// or an illegal move is replaced by a stop. Too many timeouts or a
// disconnection forfeit the match to the opponent. The handshake is
// retried with exponential backoff before the match is given up.
//
// Observers:
//
// Every turn produces a Snapshot with the round, the turn, a copy of the
// universe and the events of that turn. Observers are called in the game
// loop; wrap slow ones in a BufferedObserver. AsciiViewer prints snapshots
// to a writer and Recorder keeps them in memory.
//
// Usage:
//
//	gm := master.New(u, master.DefaultConfig(), master.WithObserver(master.NewAsciiViewer(os.Stdout)))
//	gm.AddTeam(agent.NewLocalProxy(teamA))
//	gm.AddTeam(agent.NewLocalProxy(teamB))
//	result, err := gm.Play(ctx)
package master
