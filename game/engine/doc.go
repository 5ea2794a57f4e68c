// Package engine implements the maze state and the rules of the capture game.
//
// A Universe holds the Grid (walls and food), the Bots and the Teams. The
// maze is split into one vertical zone per team. A bot inside its own zone
// is a destroyer; outside it is a harvester that may eat the enemy's food.
// A harvester sharing a cell with an enemy destroyer is sent back to its
// starting position.
//
// Core Types:
//
// Universe owns all mutation. LegalMoves computes the reachable targets of a
// position from the grid alone, and ApplyMove validates a move, applies it
// and returns the ordered EventList describing what happened. An illegal
// move returns an *IllegalMoveError and leaves the universe unchanged.
//
// Usage:
//
//	layout, err := engine.ParseLayout(text, 2)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	u, err := layout.Universe()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	events, err := u.ApplyMove(1, engine.West)
//
// Game Rules:
//
// Eating enemy food scores one point. When the last food of the maze is
// eaten the team with the higher score wins; equal scores end in a draw.
// Events are emitted in causal order: move, eat, food removed, score change,
// destruction, and finally the win or draw.
package engine
