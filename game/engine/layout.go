package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Layout reasons reported by LayoutError
const (
	ReasonEmpty            = "empty layout"
	ReasonIllegalCharacter = "illegal character"
	ReasonMissingBot       = "missing bot"
	ReasonDuplicateBot     = "duplicate bot"
	ReasonNotRectangular   = "not rectangular"
)

// LayoutError reports a layout text that does not describe a playable maze
type LayoutError struct {
	Reason string
	Detail string
}

func (e *LayoutError) Error() string {
	if e.Detail == "" {
		return "layout: " + e.Reason
	}
	return fmt.Sprintf("layout: %s: %s", e.Reason, e.Detail)
}

// Layout is checked maze text ready to build a universe from
type Layout struct {
	Rows       []string `json:"rows"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	NumberBots int      `json:"number_bots"`
}

// ParseLayout strips surrounding blank lines from text and checks the maze
// for legal characters, rectangular shape and exactly one marker per bot.
func ParseLayout(text string, numberBots int) (*Layout, error) {
	return CheckLayout(StripLayout(text), numberBots)
}

// StripLayout splits text into rows, trimming the indentation of every line
// and dropping leading and trailing blank lines. Mazes are closed by walls,
// so no free cell is lost at the edges.
func StripLayout(text string) []string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return lines[start:end]
}

// CheckLayout validates already split rows
func CheckLayout(rows []string, numberBots int) (*Layout, error) {
	if len(rows) == 0 {
		return nil, &LayoutError{Reason: ReasonEmpty}
	}
	width := len(rows[0])
	seen := make(map[int]Position)
	var duplicates []string
	for y, row := range rows {
		if len(row) != width {
			return nil, &LayoutError{
				Reason: ReasonNotRectangular,
				Detail: fmt.Sprintf("row %d has %d columns, expected %d", y, len(row), width),
			}
		}
		for x := 0; x < len(row); x++ {
			c := row[x]
			switch {
			case c == WallChar || c == FreeChar || c == FoodChar:
			case c >= '0' && c <= '9':
				idx := int(c - '0')
				pos := Position{X: x, Y: y}
				if first, ok := seen[idx]; ok {
					duplicates = append(duplicates, fmt.Sprintf("%d at %v and %v", idx, first, pos))
					continue
				}
				seen[idx] = pos
			default:
				return nil, &LayoutError{
					Reason: ReasonIllegalCharacter,
					Detail: fmt.Sprintf("%q at (%d, %d)", c, x, y),
				}
			}
		}
	}
	if len(duplicates) > 0 {
		return nil, &LayoutError{Reason: ReasonDuplicateBot, Detail: strings.Join(duplicates, ", ")}
	}

	var missing []int
	for i := 0; i < numberBots; i++ {
		if _, ok := seen[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return nil, &LayoutError{Reason: ReasonMissingBot, Detail: fmt.Sprintf("%v", missing)}
	}
	var extra []int
	for idx := range seen {
		if idx >= numberBots {
			extra = append(extra, idx)
		}
	}
	if len(extra) > 0 {
		sort.Ints(extra)
		return nil, &LayoutError{Reason: ReasonIllegalCharacter, Detail: fmt.Sprintf("bot markers %v exceed %d bots", extra, numberBots)}
	}

	return &Layout{
		Rows:       append([]string(nil), rows...),
		Width:      width,
		Height:     len(rows),
		NumberBots: numberBots,
	}, nil
}

// Universe builds a fresh universe from the layout
func (l *Layout) Universe(teamNames ...string) (*Universe, error) {
	return NewUniverse(l.Rows, l.NumberBots, teamNames...)
}

// String returns the layout as text
func (l *Layout) String() string {
	return strings.Join(l.Rows, "\n")
}
