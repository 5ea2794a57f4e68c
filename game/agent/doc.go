// Package agent connects the referee to the teams that decide bot moves.
//
// A Proxy is the referee side of one team. It offers three calls, each
// bounded by a deadline: AssignBotIDs, ProvideInitialState and RequestMove.
// Failures come back as ErrTimeout (no reply in time), ErrDisconnected (the
// team is gone for good) or ErrMalformedReply (a reply without a usable
// direction). Proxies report failures; deciding what they mean for the game
// is left to the game master.
//
// LocalProxy runs an in-process Team, HTTPProxy talks to a Team served by
// Handler, and the websocket transport provides a third implementation.
// Remote teams speak the Request/Reply messages defined in wire.go and can
// use Dispatch to answer them.
//
// SimpleTeam together with StoppingPlayer, RandomPlayer and BFSPlayer give
// ready-made teams for tests, demos and the bot client.
package agent
