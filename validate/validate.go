// Package validate checks maze layout configuration JSON files. For each
// file it reports:
//   - JSON structure and unknown fields
//   - Every rule of engine.ValidateGameConfig (bots, rounds, closed border,
//     food in every zone, food reachable by the enemy)
//   - A summary of the maze when the file is valid
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/capture-maze/game/engine"
)

// Result captures the outcome of validating a single file.
// If Valid is true, Messages holds informational lines; otherwise it holds
// the errors that were found.
type Result struct {
	File     string
	Valid    bool
	Messages []string
}

// File loads and validates a single configuration file
func File(path string) Result {
	result := Result{
		File:     filepath.Base(path),
		Valid:    true,
		Messages: []string{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return result.fail(fmt.Sprintf("Failed to read file: %v", err))
	}

	var config engine.GameConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		return result.fail(fmt.Sprintf("Invalid JSON: %v", err))
	}

	if err := engine.ValidateGameConfig(&config); err != nil {
		return result.fail(strings.TrimPrefix(err.Error(), "config validation: "))
	}

	u, err := engine.NewUniverseFromConfig(&config)
	if err != nil {
		return result.fail(err.Error())
	}

	result.Messages = append(result.Messages,
		fmt.Sprintf("✓ Name: %s", config.Name),
		fmt.Sprintf("✓ Maze: %dx%d", u.Grid.Width, u.Grid.Height),
		fmt.Sprintf("✓ Bots: %d (%d per team)", u.NumberBots(), u.NumberBots()/u.NumberTeams()),
		fmt.Sprintf("✓ Rounds: %d", config.MaxRounds),
	)
	for _, t := range u.Teams {
		result.Messages = append(result.Messages, fmt.Sprintf("✓ Team %d %q: zone x=%d..%d, food %d, border cells %d",
			t.Index, t.Name, t.Zone.Min, t.Zone.Max, len(u.TeamFood(t.Index)), len(u.TeamBorder(t.Index))))
	}
	result.Messages = append(result.Messages, "✓ Connectivity: every food reachable by the enemy")

	return result
}

func (r Result) fail(msg string) Result {
	r.Valid = false
	r.Messages = append(r.Messages, msg)
	return r
}

// Dir validates every *.json file in dir, sorted by name
func Dir(dir string) ([]Result, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("finding config files: %w", err)
	}
	sort.Strings(files)

	results := make([]Result, 0, len(files))
	for _, file := range files {
		results = append(results, File(file))
	}
	return results, nil
}

// Report prints a concise report of results to w and reports whether all of
// them are valid
func Report(w io.Writer, results []Result) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Messages {
				fmt.Fprintln(w, "  "+info)
			}
			continue
		}

		allValid = false
		fmt.Fprintln(w, "❌ INVALID")
		for _, msg := range result.Messages {
			fmt.Fprintln(w, "  ❌ "+msg)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case len(results) == 0:
		fmt.Fprintln(w, "No configuration files found")
	case allValid:
		fmt.Fprintln(w, "✅ All configurations are valid!")
	default:
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}
