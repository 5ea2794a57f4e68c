package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/wricardo/capture-maze/game/engine"
)

func TestDecodeMove(t *testing.T) {
	tests := []struct {
		raw      string
		expected engine.Direction
		wantErr  bool
	}{
		{`"north"`, engine.North, false},
		{`"left"`, engine.West, false},
		{`[0, 1]`, engine.South, false},
		{`[0,0]`, engine.Stop, false},
		{`[1, 1]`, "", true},
		{`[1]`, "", true},
		{`"jump"`, "", true},
		{`42`, "", true},
		{``, "", true},
	}

	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			got, err := DecodeMove(json.RawMessage(test.raw))
			if test.wantErr {
				if !errors.Is(err, ErrMalformedReply) {
					t.Errorf("Expected ErrMalformedReply, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestDispatch(t *testing.T) {
	u := testUniverse(t)
	team := NewSimpleTeam("dispatch", BFSPlayer{})

	reply := Dispatch(team, Request{Seq: 1, Method: MethodSetBotIDs, BotIDs: []int{1}})
	if reply.Error != "" || reply.Seq != 1 || reply.Team != "dispatch" {
		t.Errorf("Unexpected set_bot_ids reply %+v", reply)
	}

	reply = Dispatch(team, Request{Seq: 2, Method: MethodSetInitial, Universe: u})
	if reply.Error != "" {
		t.Errorf("Unexpected set_initial error %s", reply.Error)
	}

	reply = Dispatch(team, Request{Seq: 3, Method: MethodPlayNow, BotIndex: 1, Universe: u})
	dir, err := MoveFromReply(reply)
	if err != nil {
		t.Fatalf("Unexpected play_now error: %v", err)
	}
	if !dir.Valid() {
		t.Errorf("Expected a valid direction, got %q", dir)
	}

	reply = Dispatch(team, Request{Seq: 4, Method: "dance"})
	if reply.Error == "" {
		t.Error("Expected error for unknown method")
	}
	if ErrorFromReply(reply) == nil {
		t.Error("Expected ErrorFromReply to report the error")
	}

	reply = Dispatch(team, Request{Seq: 5, Method: MethodPlayNow, BotIndex: 1})
	if _, err := MoveFromReply(reply); !errors.Is(err, ErrMalformedReply) {
		t.Errorf("Expected ErrMalformedReply without universe, got %v", err)
	}
}
