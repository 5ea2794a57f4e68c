package engine

import (
	"encoding/json"
	"testing"
)

func TestMarkerConstants(t *testing.T) {
	tests := []struct {
		marker   Marker
		expected string
	}{
		{Wall, "wall"},
		{Food, "food"},
	}

	for _, test := range tests {
		if string(test.marker) != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, string(test.marker))
		}
	}
}

func TestDirectionOffsets(t *testing.T) {
	tests := []struct {
		direction Direction
		dx, dy    int
	}{
		{North, 0, -1},
		{South, 0, 1},
		{East, 1, 0},
		{West, -1, 0},
		{Stop, 0, 0},
	}

	for _, test := range tests {
		t.Run(string(test.direction), func(t *testing.T) {
			dx, dy := test.direction.Offset()
			if dx != test.dx || dy != test.dy {
				t.Errorf("Expected offset (%d, %d), got (%d, %d)", test.dx, test.dy, dx, dy)
			}
			back, ok := DirectionFromOffset(test.dx, test.dy)
			if !ok || back != test.direction {
				t.Errorf("Expected DirectionFromOffset to return %s, got %s (ok=%v)", test.direction, back, ok)
			}
			if !test.direction.Valid() {
				t.Errorf("Expected %s to be valid", test.direction)
			}
		})
	}

	if _, ok := DirectionFromOffset(1, 1); ok {
		t.Error("Expected diagonal offset to be rejected")
	}
	if Direction("up").Valid() {
		t.Error("Expected alias 'up' not to be a valid direction value")
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected Direction
		wantErr  bool
	}{
		{"north", North, false},
		{"up", North, false},
		{"down", South, false},
		{"right", East, false},
		{"w", West, false},
		{"stop", Stop, false},
		{"", "", true},
		{"sideways", "", true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, err := ParseDirection(test.input)
			if test.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", test.input)
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

func TestPositionAdd(t *testing.T) {
	p := Position{X: 3, Y: 4}
	if got := p.Add(North); got != (Position{X: 3, Y: 3}) {
		t.Errorf("Expected (3, 3), got %v", got)
	}
	if got := p.Add(Stop); got != p {
		t.Errorf("Expected stop to keep %v, got %v", p, got)
	}
}

func TestDirectionBetween(t *testing.T) {
	d, ok := DirectionBetween(Position{X: 1, Y: 1}, Position{X: 1, Y: 2})
	if !ok || d != South {
		t.Errorf("Expected south, got %s (ok=%v)", d, ok)
	}
	if _, ok := DirectionBetween(Position{X: 1, Y: 1}, Position{X: 3, Y: 1}); ok {
		t.Error("Expected non adjacent positions to have no direction")
	}
}

func TestZoneContains(t *testing.T) {
	z := Zone{Min: 3, Max: 5}
	for x, want := range map[int]bool{2: false, 3: true, 4: true, 5: true, 6: false} {
		if z.Contains(x) != want {
			t.Errorf("Zone %v contains %d: expected %v", z, x, want)
		}
	}
}

func TestPositionJSONMarshaling(t *testing.T) {
	pos := Position{X: 5, Y: 10}

	data, err := json.Marshal(pos)
	if err != nil {
		t.Fatalf("Failed to marshal position: %v", err)
	}
	if string(data) != `{"x":5,"y":10}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var unmarshaledPos Position
	if err := json.Unmarshal(data, &unmarshaledPos); err != nil {
		t.Fatalf("Failed to unmarshal position: %v", err)
	}
	if unmarshaledPos != pos {
		t.Errorf("Expected %v, got %v", pos, unmarshaledPos)
	}
}

func TestCellHas(t *testing.T) {
	var free Cell
	if free.Has(Wall) || free.Has(Food) {
		t.Error("Expected empty cell to hold no markers")
	}
	food := Cell{Food, Food}
	if !food.Has(Food) {
		t.Error("Expected cell to hold food")
	}
}
