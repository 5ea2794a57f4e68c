package agent

import (
	"encoding/json"
	"fmt"

	"github.com/wricardo/capture-maze/game/engine"
)

// Wire methods understood by remote teams
const (
	MethodSetBotIDs  = "set_bot_ids"
	MethodSetInitial = "set_initial"
	MethodPlayNow    = "play_now"
)

// Request is one referee call to a remote team
type Request struct {
	Seq      uint64           `json:"seq"`
	Method   string           `json:"method"`
	BotIDs   []int            `json:"bot_ids,omitempty"`
	BotIndex int              `json:"bot_index"`
	Universe *engine.Universe `json:"universe,omitempty"`
}

// Reply answers the Request with the same Seq. Move is either a direction
// name or a [dx, dy] pair.
type Reply struct {
	Seq   uint64          `json:"seq"`
	Team  string          `json:"team,omitempty"`
	Move  json.RawMessage `json:"move,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Hello is the first message a remote team sends after connecting
type Hello struct {
	Team  string `json:"team"`
	Match string `json:"match,omitempty"`
}

// DecodeMove converts a reply payload into a direction
func DecodeMove(raw json.RawMessage) (engine.Direction, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: reply carries no move", ErrMalformedReply)
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		d, err := engine.ParseDirection(name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		return d, nil
	}
	var pair []int
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return "", fmt.Errorf("%w: move %s is neither a direction nor a pair", ErrMalformedReply, raw)
	}
	d, ok := engine.DirectionFromOffset(pair[0], pair[1])
	if !ok {
		return "", fmt.Errorf("%w: offset %v is not a move", ErrMalformedReply, pair)
	}
	return d, nil
}

// EncodeMove writes a direction as its name
func EncodeMove(d engine.Direction) json.RawMessage {
	data, _ := json.Marshal(string(d))
	return data
}

// Dispatch runs a request against a local team and builds the reply.
// Remote team processes use it on their side of the wire.
func Dispatch(team Team, req Request) Reply {
	reply := Reply{Seq: req.Seq}
	var err error
	switch req.Method {
	case MethodSetBotIDs:
		err = team.SetBotIDs(req.BotIDs)
		reply.Team = team.Name()
	case MethodSetInitial:
		if req.Universe == nil {
			err = fmt.Errorf("set_initial without universe")
			break
		}
		err = team.SetInitial(req.Universe)
	case MethodPlayNow:
		if req.Universe == nil {
			err = fmt.Errorf("play_now without universe")
			break
		}
		var d engine.Direction
		d, err = team.GetMove(req.BotIndex, req.Universe)
		if err == nil {
			reply.Move = EncodeMove(d)
		}
	default:
		err = fmt.Errorf("unknown method %q", req.Method)
	}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply
}

// MoveFromReply interprets the reply to a play_now request
func MoveFromReply(reply Reply) (engine.Direction, error) {
	if reply.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrMalformedReply, reply.Error)
	}
	return DecodeMove(reply.Move)
}

// ErrorFromReply turns the error field of a handshake reply into an error
func ErrorFromReply(reply Reply) error {
	if reply.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformedReply, reply.Error)
}
