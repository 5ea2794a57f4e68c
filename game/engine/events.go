package engine

import (
	"encoding/json"
	"fmt"
)

// EventKind tags the concrete type of an Event
type EventKind string

const (
	KindBotMoves        EventKind = "bot_moves"
	KindBotEats         EventKind = "bot_eats"
	KindFoodEaten       EventKind = "food_eaten"
	KindTeamScoreChange EventKind = "team_score_change"
	KindBotDestroyed    EventKind = "bot_destroyed"
	KindTeamWins        EventKind = "team_wins"
	KindGameDraw        EventKind = "game_draw"
)

// Event is an immutable record of one consequence of a move. The set of
// implementations is closed; switch on the concrete type or on Kind.
type Event interface {
	Kind() EventKind
	String() string
	event()
}

// BotMoves records a bot changing (or keeping) its position
type BotMoves struct {
	Bot  int      `json:"bot"`
	From Position `json:"from"`
	To   Position `json:"to"`
}

// BotEats records a harvester eating the food on its cell
type BotEats struct {
	Bot int      `json:"bot"`
	Pos Position `json:"pos"`
}

// FoodEaten records a food marker leaving the maze
type FoodEaten struct {
	Pos Position `json:"pos"`
}

// TeamScoreChange records a team score update
type TeamScoreChange struct {
	Team     int `json:"team"`
	OldScore int `json:"old_score"`
	NewScore int `json:"new_score"`
}

// BotDestroyed records a harvester being sent home by an enemy destroyer
type BotDestroyed struct {
	Harvester      int      `json:"harvester"`
	HarvesterFrom  Position `json:"harvester_from"`
	HarvesterAt    Position `json:"harvester_at"`
	HarvesterReset Position `json:"harvester_reset"`
	Destroyer      int      `json:"destroyer"`
	DestroyerFrom  Position `json:"destroyer_from"`
	DestroyerAt    Position `json:"destroyer_at"`
}

// TeamWins records the end of the game with a winner
type TeamWins struct {
	Team int `json:"team"`
}

// GameDraw records the end of the game without a winner
type GameDraw struct{}

func (BotMoves) Kind() EventKind        { return KindBotMoves }
func (BotEats) Kind() EventKind         { return KindBotEats }
func (FoodEaten) Kind() EventKind       { return KindFoodEaten }
func (TeamScoreChange) Kind() EventKind { return KindTeamScoreChange }
func (BotDestroyed) Kind() EventKind    { return KindBotDestroyed }
func (TeamWins) Kind() EventKind        { return KindTeamWins }
func (GameDraw) Kind() EventKind        { return KindGameDraw }

func (BotMoves) event()        {}
func (BotEats) event()         {}
func (FoodEaten) event()       {}
func (TeamScoreChange) event() {}
func (BotDestroyed) event()    {}
func (TeamWins) event()        {}
func (GameDraw) event()        {}

func (e BotMoves) String() string {
	return fmt.Sprintf("BotMoves(%d, %v, %v)", e.Bot, e.From, e.To)
}

func (e BotEats) String() string {
	return fmt.Sprintf("BotEats(%d, %v)", e.Bot, e.Pos)
}

func (e FoodEaten) String() string {
	return fmt.Sprintf("FoodEaten(%v)", e.Pos)
}

func (e TeamScoreChange) String() string {
	return fmt.Sprintf("TeamScoreChange(%d, %d, %d)", e.Team, e.OldScore, e.NewScore)
}

func (e BotDestroyed) String() string {
	return fmt.Sprintf("BotDestroyed(%d, %v, %v, %v, %d, %v, %v)",
		e.Harvester, e.HarvesterFrom, e.HarvesterAt, e.HarvesterReset,
		e.Destroyer, e.DestroyerFrom, e.DestroyerAt)
}

func (e TeamWins) String() string {
	return fmt.Sprintf("TeamWins(%d)", e.Team)
}

func (GameDraw) String() string {
	return "GameDraw()"
}

// EventList is the ordered list of events produced by one or more moves
type EventList []Event

// Has reports whether any event of the kind is present
func (l EventList) Has(kind EventKind) bool {
	for _, e := range l {
		if e.Kind() == kind {
			return true
		}
	}
	return false
}

// Filter returns the events of the given kind in order
func (l EventList) Filter(kind EventKind) EventList {
	var out EventList
	for _, e := range l {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// Finished reports whether the list contains a game ending event
func (l EventList) Finished() bool {
	return l.Has(KindTeamWins) || l.Has(KindGameDraw)
}

type eventEnvelope struct {
	Kind EventKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON writes each event as {"kind": ..., "data": ...}
func (l EventList) MarshalJSON() ([]byte, error) {
	out := make([]eventEnvelope, 0, len(l))
	for _, e := range l {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		out = append(out, eventEnvelope{Kind: e.Kind(), Data: data})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores events written by MarshalJSON
func (l *EventList) UnmarshalJSON(data []byte) error {
	var raw []eventEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	out := make(EventList, 0, len(raw))
	for _, env := range raw {
		e, err := decodeEvent(env)
		if err != nil {
			return err
		}
		out = append(out, e)
	}
	*l = out
	return nil
}

func decodeEvent(env eventEnvelope) (Event, error) {
	var (
		e   Event
		err error
	)
	switch env.Kind {
	case KindBotMoves:
		var v BotMoves
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindBotEats:
		var v BotEats
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindFoodEaten:
		var v FoodEaten
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindTeamScoreChange:
		var v TeamScoreChange
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindBotDestroyed:
		var v BotDestroyed
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindTeamWins:
		var v TeamWins
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindGameDraw:
		e = GameDraw{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", env.Kind, err)
	}
	return e, nil
}
