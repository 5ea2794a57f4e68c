// Command analyze prints quick, human-readable heuristics about maze layout
// configuration files. For each layout it summarizes dimensions, the zone
// of every team, food and border cells per zone, how far each bot starts
// from the border and from the nearest enemy food, and highlights food no
// enemy bot can reach.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/capture-maze/game/engine"
)

// TeamAnalysis holds the heuristics of one team's half of the maze
type TeamAnalysis struct {
	Index       int
	Name        string
	Zone        engine.Zone
	Food        int
	BorderCells int
	// UnreachableFood lists own food that no enemy bot can walk to
	UnreachableFood []engine.Position
	// DeepestFood is the largest shortest-path distance from the border to
	// any own food, -1 when there is no path
	DeepestFood int
}

// BotAnalysis holds the start heuristics of a single bot
type BotAnalysis struct {
	Index int
	Team  int
	Start engine.Position
	// ToBorder is the number of steps to the enemy half, -1 when unreachable
	ToBorder int
	// ToFood is the number of steps to the nearest enemy food, -1 when unreachable
	ToFood int
}

// Analysis is the report of one layout configuration
type Analysis struct {
	Name      string
	Width     int
	Height    int
	Walls     int
	MaxRounds int
	Teams     []TeamAnalysis
	Bots      []BotAnalysis
}

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "Print heuristics about maze layout configurations",
		ArgsUsage: "[config.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "Directory scanned when no files are given",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				files, err = filepath.Glob(filepath.Join(cmd.String("config-dir"), "*.json"))
				if err != nil {
					return err
				}
				sort.Strings(files)
			}
			for _, file := range files {
				fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
				analyzeFile(os.Stdout, file)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func analyzeFile(w io.Writer, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w, "Error reading file: %v\n", err)
		return
	}

	var config engine.GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		fmt.Fprintf(w, "Error parsing JSON: %v\n", err)
		return
	}

	a, err := analyze(&config)
	if err != nil {
		fmt.Fprintf(w, "Error building maze: %v\n", err)
		return
	}
	printAnalysis(w, a)
}

func analyze(config *engine.GameConfig) (*Analysis, error) {
	u, err := engine.NewUniverseFromConfig(config)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Name:      config.Name,
		Width:     u.Grid.Width,
		Height:    u.Grid.Height,
		Walls:     len(u.Grid.Positions(engine.Wall)),
		MaxRounds: config.MaxRounds,
	}

	for _, t := range u.Teams {
		ta := TeamAnalysis{
			Index:       t.Index,
			Name:        t.Name,
			Zone:        t.Zone,
		}
		food := u.TeamFood(t.Index)
		border := u.TeamBorder(t.Index)
		ta.Food = len(food)
		ta.BorderCells = len(border)

		for _, pos := range food {
			reachable := false
			for _, enemy := range u.EnemyBots(t.Index) {
				if engine.ShortestPath(u, enemy.InitialPos, pos) != nil {
					reachable = true
					break
				}
			}
			if !reachable {
				ta.UnreachableFood = append(ta.UnreachableFood, pos)
			}

			depth := steps(engine.PathToNearest(u, pos, border))
			if depth < 0 || ta.DeepestFood < 0 {
				ta.DeepestFood = -1
			} else if depth > ta.DeepestFood {
				ta.DeepestFood = depth
			}
		}
		a.Teams = append(a.Teams, ta)
	}

	for i := range u.Bots {
		bot := &u.Bots[i]
		var enemyCells []engine.Position
		for _, t := range u.Teams {
			if t.Index != bot.TeamIndex {
				enemyCells = append(enemyCells, u.TeamBorder(t.Index)...)
			}
		}
		a.Bots = append(a.Bots, BotAnalysis{
			Index:    bot.Index,
			Team:     bot.TeamIndex,
			Start:    bot.InitialPos,
			ToBorder: steps(engine.PathToNearest(u, bot.InitialPos, enemyCells)),
			ToFood:   steps(engine.PathToNearest(u, bot.InitialPos, u.EnemyFood(bot.TeamIndex))),
		})
	}
	sort.Slice(a.Bots, func(i, j int) bool { return a.Bots[i].Index < a.Bots[j].Index })

	return a, nil
}

// steps returns the length of a path or -1 for a missing one
func steps(path []engine.Position) int {
	if path == nil {
		return -1
	}
	return len(path)
}

func distance(d int) string {
	if d < 0 {
		return "unreachable"
	}
	return fmt.Sprintf("%d steps", d)
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Maze Size: %d x %d\n", a.Width, a.Height)
	fmt.Fprintf(w, "Walls: %d\n", a.Walls)
	fmt.Fprintf(w, "Max Rounds: %d\n", a.MaxRounds)

	for _, t := range a.Teams {
		fmt.Fprintf(w, "Team %d %q: zone x=%d..%d, food %d, border cells %d, deepest food %s\n",
			t.Index, t.Name, t.Zone.Min, t.Zone.Max, t.Food, t.BorderCells, distance(t.DeepestFood))
	}

	for _, b := range a.Bots {
		fmt.Fprintf(w, "Bot %d (team %d) at %s: border %s, nearest enemy food %s\n",
			b.Index, b.Team, b.Start, distance(b.ToBorder), distance(b.ToFood))
	}

	fair := true
	if len(a.Teams) == 2 && a.Teams[0].Food != a.Teams[1].Food {
		fair = false
		fmt.Fprintf(w, "⚠️  WARNING: teams defend different amounts of food (%d vs %d)\n", a.Teams[0].Food, a.Teams[1].Food)
	}

	unreachable := 0
	for _, t := range a.Teams {
		for i, p := range t.UnreachableFood {
			if i < 5 {
				fmt.Fprintf(w, "   Unreachable food of team %d: %s\n", t.Index, p)
			}
		}
		if len(t.UnreachableFood) > 5 {
			fmt.Fprintf(w, "   ... and %d more\n", len(t.UnreachableFood)-5)
		}
		unreachable += len(t.UnreachableFood)
	}

	if unreachable > 0 {
		fmt.Fprintf(w, "⚠️  CRITICAL: %d food cannot be reached by the enemy, the match can only end by rounds\n", unreachable)
	} else {
		fmt.Fprintf(w, "✅ All food is reachable by the enemy\n")
	}
	if fair {
		fmt.Fprintf(w, "✅ Both teams defend the same amount of food\n")
	}
}
