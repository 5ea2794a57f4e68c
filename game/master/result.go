package master

import (
	"fmt"
	"strings"

	"github.com/wricardo/capture-maze/game/engine"
)

// State of a game master
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateFinished     State = "finished"
)

// Reason explains why a match finished
type Reason string

const (
	ReasonWin          Reason = "win"
	ReasonDraw         Reason = "draw"
	ReasonDisconnected Reason = "forfeit: disconnected"
	ReasonTimeouts     Reason = "forfeit: timeouts"
	ReasonRoundLimit   Reason = "round limit reached"
	ReasonSetupFailed  Reason = "setup failed"
	ReasonCancelled    Reason = "cancelled"
)

// Forfeit kinds recorded on a turn whose move was replaced by stop
const (
	ForfeitTimeout      = "timeout"
	ForfeitDisconnected = "disconnected"
	ForfeitMalformed    = "malformed"
	ForfeitIllegal      = "illegal"
)

// Result is the outcome of a finished match
type Result struct {
	Reason   Reason `json:"reason"`
	Winner   *int   `json:"winner,omitempty"`
	Scores   []int  `json:"scores"`
	Rounds   int    `json:"rounds"`
	Timeouts []int  `json:"timeouts"`
	Forfeits []int  `json:"forfeits"`
	Detail   string `json:"detail,omitempty"`
}

// String is the human readable outcome
func (r Result) String() string {
	var b strings.Builder
	switch r.Reason {
	case ReasonWin:
		fmt.Fprintf(&b, "team %d wins", derefTeam(r.Winner))
	case ReasonDraw:
		b.WriteString("draw, all food eaten with equal scores")
	case ReasonDisconnected:
		fmt.Fprintf(&b, "team %d wins, opponent disconnected", derefTeam(r.Winner))
	case ReasonTimeouts:
		fmt.Fprintf(&b, "team %d wins, opponent exceeded the timeout limit", derefTeam(r.Winner))
	case ReasonRoundLimit:
		if r.Winner != nil {
			fmt.Fprintf(&b, "round limit reached, team %d wins on score", *r.Winner)
		} else {
			b.WriteString("round limit reached, draw")
		}
	default:
		b.WriteString(string(r.Reason))
	}
	if len(r.Scores) > 0 {
		scores := make([]string, len(r.Scores))
		for i, s := range r.Scores {
			scores[i] = fmt.Sprint(s)
		}
		fmt.Fprintf(&b, " (score %s)", strings.Join(scores, ":"))
	}
	if r.Detail != "" {
		b.WriteString(": " + r.Detail)
	}
	return b.String()
}

func derefTeam(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func (r *Result) copy() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Winner != nil {
		w := *r.Winner
		cp.Winner = &w
	}
	cp.Scores = append([]int(nil), r.Scores...)
	cp.Timeouts = append([]int(nil), r.Timeouts...)
	cp.Forfeits = append([]int(nil), r.Forfeits...)
	return &cp
}

// TurnRecord is the history entry of one bot turn
type TurnRecord struct {
	Round   int              `json:"round"`
	Turn    int              `json:"turn"`
	Bot     int              `json:"bot"`
	Move    engine.Direction `json:"move"`
	Forfeit string           `json:"forfeit,omitempty"`
	Events  engine.EventList `json:"events"`
}

// SetupError reports a team that never completed its handshake
type SetupError struct {
	Team int
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of team %d failed: %v", e.Team, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
