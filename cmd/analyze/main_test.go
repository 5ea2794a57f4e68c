package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/capture-maze/game/engine"
)

func TestAnalyze_DefaultConfig(t *testing.T) {
	a, err := analyze(engine.DefaultGameConfig())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if a.Width != 18 || a.Height != 5 {
		t.Errorf("Expected 18x5 maze, got %dx%d", a.Width, a.Height)
	}
	if a.Walls != 56 {
		t.Errorf("Expected 56 walls, got %d", a.Walls)
	}
	if len(a.Teams) != 2 {
		t.Fatalf("Expected 2 teams, got %d", len(a.Teams))
	}

	for _, team := range a.Teams {
		if team.Food != 3 {
			t.Errorf("Team %d: expected 3 food, got %d", team.Index, team.Food)
		}
		if team.BorderCells != 2 {
			t.Errorf("Team %d: expected 2 border cells, got %d", team.Index, team.BorderCells)
		}
		if team.DeepestFood != 5 {
			t.Errorf("Team %d: expected deepest food 5, got %d", team.Index, team.DeepestFood)
		}
		if len(team.UnreachableFood) != 0 {
			t.Errorf("Team %d: expected all food reachable, got %v", team.Index, team.UnreachableFood)
		}
	}
	if a.Teams[0].Zone != (engine.Zone{Min: 0, Max: 8}) {
		t.Errorf("Unexpected zone of team 0: %+v", a.Teams[0].Zone)
	}

	tests := []struct {
		bot      int
		team     int
		toBorder int
		toFood   int
	}{
		{0, 0, 11, 14},
		{1, 1, 11, 14},
		{2, 0, 10, 13},
		{3, 1, 10, 13},
	}
	for _, tt := range tests {
		b := a.Bots[tt.bot]
		if b.Index != tt.bot || b.Team != tt.team {
			t.Errorf("Bot %d: unexpected identity %+v", tt.bot, b)
		}
		if b.ToBorder != tt.toBorder {
			t.Errorf("Bot %d: expected %d steps to the border, got %d", tt.bot, tt.toBorder, b.ToBorder)
		}
		if b.ToFood != tt.toFood {
			t.Errorf("Bot %d: expected %d steps to food, got %d", tt.bot, tt.toFood, b.ToFood)
		}
	}
}

func TestAnalyze_UnreachableFood(t *testing.T) {
	config := &engine.GameConfig{
		Name: "walled",
		Layout: []string{
			"##########",
			"#0 .  ##.#",
			"#2    ####",
			"#.    13.#",
			"##########",
		},
		NumberBots: 4,
		MaxRounds:  10,
	}

	a, err := analyze(config)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	unreachable := a.Teams[1].UnreachableFood
	if len(unreachable) != 1 || unreachable[0] != (engine.Position{X: 8, Y: 1}) {
		t.Errorf("Expected food at (8, 1) unreachable, got %v", unreachable)
	}
	if a.Teams[1].DeepestFood != -1 {
		t.Errorf("Expected sealed food to have no path to the border, got %d", a.Teams[1].DeepestFood)
	}

	var buf bytes.Buffer
	printAnalysis(&buf, a)
	out := buf.String()
	for _, want := range []string{
		"Unreachable food of team 1: (8, 1)",
		"CRITICAL: 1 food cannot be reached",
		"deepest food unreachable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestAnalyze_InvalidLayout(t *testing.T) {
	config := &engine.GameConfig{
		Name:       "broken",
		Layout:     []string{"#####", "#0 x#", "#####"},
		NumberBots: 2,
	}

	if _, err := analyze(config); err == nil {
		t.Error("Expected error for an illegal character")
	}
}

func TestSteps(t *testing.T) {
	tests := []struct {
		name string
		path []engine.Position
		want int
	}{
		{"missing", nil, -1},
		{"already there", []engine.Position{}, 0},
		{"two steps", []engine.Position{{X: 1, Y: 1}, {X: 2, Y: 1}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := steps(tt.path); got != tt.want {
				t.Errorf("steps() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()

	data, err := json.Marshal(engine.DefaultGameConfig())
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	valid := filepath.Join(dir, "default.json")
	if err := os.WriteFile(valid, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{"name": `), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			name: "valid",
			path: valid,
			want: []string{
				"Name: default",
				"Maze Size: 18 x 5",
				`Team 0 "black": zone x=0..8, food 3, border cells 2, deepest food 5 steps`,
				"Bot 2 (team 0) at (1, 2): border 10 steps, nearest enemy food 13 steps",
				"All food is reachable by the enemy",
				"Both teams defend the same amount of food",
			},
		},
		{"missing", filepath.Join(dir, "missing.json"), []string{"Error reading file"}},
		{"invalid json", invalid, []string{"Error parsing JSON"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			analyzeFile(&buf, tt.path)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("Expected %q in output:\n%s", want, buf.String())
				}
			}
		})
	}
}
