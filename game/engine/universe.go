package engine

import (
	"fmt"
	"strings"
)

// DefaultTeamNames are used until a team reports its own name
var DefaultTeamNames = []string{"black", "white"}

// Bot is one controllable piece. Relations to its team go through TeamIndex.
type Bot struct {
	Index      int      `json:"index"`
	TeamIndex  int      `json:"team_index"`
	InitialPos Position `json:"initial_pos"`
	CurrentPos Position `json:"current_pos"`
	Homezone   Zone     `json:"homezone"`
}

// InOwnZone reports whether the bot stands in its team's half
func (b *Bot) InOwnZone() bool {
	return b.Homezone.Contains(b.CurrentPos.X)
}

// IsDestroyer reports whether the bot can destroy enemy harvesters
func (b *Bot) IsDestroyer() bool {
	return b.InOwnZone()
}

// IsHarvester reports whether the bot can eat enemy food
func (b *Bot) IsHarvester() bool {
	return !b.InOwnZone()
}

// Team is a named group of bots sharing a zone and a score
type Team struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Zone  Zone   `json:"zone"`
	Score int    `json:"score"`
	Bots  []int  `json:"bots"`
}

// InZone reports whether pos belongs to the team's half
func (t *Team) InZone(pos Position) bool {
	return t.Zone.Contains(pos.X)
}

// Universe is the authoritative game state
type Universe struct {
	Grid  *Grid      `json:"grid"`
	Bots  []Bot      `json:"bots"`
	Teams []Team     `json:"teams"`
	Food  []Position `json:"food"`
}

// NewUniverse builds a universe from validated layout rows. Team names
// default to DefaultTeamNames.
func NewUniverse(rows []string, numberBots int, teamNames ...string) (*Universe, error) {
	numberTeams := DefaultNumberTeams
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, constructionErrorf("empty layout")
	}
	width, height := len(rows[0]), len(rows)
	for i, row := range rows {
		if len(row) != width {
			return nil, constructionErrorf("layout is not rectangular: row %d has %d columns, expected %d", i, len(row), width)
		}
	}
	if width%numberTeams != 0 {
		return nil, constructionErrorf("width %d cannot be split into %d zones", width, numberTeams)
	}
	if numberBots < 0 || numberBots > MaxNumberBots {
		return nil, constructionErrorf("number of bots must be between 0 and %d, got %d", MaxNumberBots, numberBots)
	}
	if numberBots%numberTeams != 0 {
		return nil, constructionErrorf("%d bots cannot be split evenly into %d teams", numberBots, numberTeams)
	}

	grid := NewGrid(width, height)
	starts := make([]*Position, numberBots)
	found := 0
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			pos := Position{X: x, Y: y}
			switch c := row[x]; {
			case c == WallChar:
				grid.Add(pos, Wall)
			case c == FoodChar:
				grid.Add(pos, Food)
			case c == FreeChar:
			case c >= '0' && c <= '9':
				idx := int(c - '0')
				if idx >= numberBots {
					return nil, constructionErrorf("bot marker %d at %v exceeds number of bots %d", idx, pos, numberBots)
				}
				if starts[idx] != nil {
					return nil, constructionErrorf("bot %d appears twice, at %v and %v", idx, *starts[idx], pos)
				}
				p := pos
				starts[idx] = &p
				found++
			default:
				return nil, constructionErrorf("illegal character %q at %v", c, pos)
			}
		}
	}
	if found != numberBots {
		return nil, constructionErrorf("layout has %d bot markers, expected %d", found, numberBots)
	}

	teams := make([]Team, numberTeams)
	for i := range teams {
		name := fmt.Sprintf("team %d", i)
		if i < len(teamNames) && teamNames[i] != "" {
			name = teamNames[i]
		} else if i < len(DefaultTeamNames) {
			name = DefaultTeamNames[i]
		}
		teams[i] = Team{
			Index: i,
			Name:  name,
			Zone:  Zone{Min: i * width / numberTeams, Max: (i+1)*width/numberTeams - 1},
			Bots:  []int{},
		}
	}

	bots := make([]Bot, numberBots)
	for i := range bots {
		team := i % numberTeams
		bots[i] = Bot{
			Index:      i,
			TeamIndex:  team,
			InitialPos: *starts[i],
			CurrentPos: *starts[i],
			Homezone:   teams[team].Zone,
		}
		teams[team].Bots = append(teams[team].Bots, i)
	}

	return &Universe{
		Grid:  grid,
		Bots:  bots,
		Teams: teams,
		Food:  grid.Positions(Food),
	}, nil
}

// NumberBots returns the number of bots in the game
func (u *Universe) NumberBots() int {
	return len(u.Bots)
}

// NumberTeams returns the number of teams in the game
func (u *Universe) NumberTeams() int {
	return len(u.Teams)
}

// BotTeam returns the team owning the bot
func (u *Universe) BotTeam(botIndex int) *Team {
	return &u.Teams[u.Bots[botIndex].TeamIndex]
}

// SetTeamName replaces a team's name once it has introduced itself
func (u *Universe) SetTeamName(team int, name string) error {
	if team < 0 || team >= len(u.Teams) {
		return fmt.Errorf("team %d does not exist", team)
	}
	u.Teams[team].Name = name
	return nil
}

// TeamFood returns the food lying in the team's own zone
func (u *Universe) TeamFood(team int) []Position {
	var out []Position
	for _, pos := range u.Food {
		if u.Teams[team].InZone(pos) {
			out = append(out, pos)
		}
	}
	return out
}

// EnemyFood returns the food the team's harvesters may eat
func (u *Universe) EnemyFood(team int) []Position {
	var out []Position
	for _, pos := range u.Food {
		if !u.Teams[team].InZone(pos) {
			out = append(out, pos)
		}
	}
	return out
}

// TeamBots returns the bots of a team
func (u *Universe) TeamBots(team int) []*Bot {
	out := make([]*Bot, 0, len(u.Teams[team].Bots))
	for _, idx := range u.Teams[team].Bots {
		out = append(out, &u.Bots[idx])
	}
	return out
}

// EnemyBots returns every bot not belonging to the team
func (u *Universe) EnemyBots(team int) []*Bot {
	var out []*Bot
	for i := range u.Bots {
		if u.Bots[i].TeamIndex != team {
			out = append(out, &u.Bots[i])
		}
	}
	return out
}

// TeamMates returns the other bots of the bot's team
func (u *Universe) TeamMates(botIndex int) []*Bot {
	var out []*Bot
	for _, b := range u.TeamBots(u.Bots[botIndex].TeamIndex) {
		if b.Index != botIndex {
			out = append(out, b)
		}
	}
	return out
}

// BotsAt returns the indices of the bots standing on pos
func (u *Universe) BotsAt(pos Position) []int {
	var out []int
	for _, b := range u.Bots {
		if b.CurrentPos == pos {
			out = append(out, b.Index)
		}
	}
	return out
}

// TeamBorder returns the free cells of the team's column facing the enemy
func (u *Universe) TeamBorder(team int) []Position {
	zone := u.Teams[team].Zone
	x := zone.Max
	if x == u.Grid.Width-1 {
		x = zone.Min
	}
	var out []Position
	for y := 0; y < u.Grid.Height; y++ {
		pos := Position{X: x, Y: y}
		if !u.Grid.Has(pos, Wall) {
			out = append(out, pos)
		}
	}
	return out
}

// Scores returns the team scores by team index
func (u *Universe) Scores() []int {
	out := make([]int, len(u.Teams))
	for i, t := range u.Teams {
		out[i] = t.Score
	}
	return out
}

// Leader returns the team with the unique highest score
func (u *Universe) Leader() (int, bool) {
	leader, best, tied := -1, -1, false
	for _, t := range u.Teams {
		switch {
		case t.Score > best:
			leader, best, tied = t.Index, t.Score, false
		case t.Score == best:
			tied = true
		}
	}
	if leader < 0 || tied {
		return -1, false
	}
	return leader, true
}

// Copy returns a deep copy that shares nothing with u
func (u *Universe) Copy() *Universe {
	cp := &Universe{
		Grid:  u.Grid.Copy(),
		Bots:  append([]Bot(nil), u.Bots...),
		Teams: make([]Team, len(u.Teams)),
		Food:  append([]Position(nil), u.Food...),
	}
	for i, t := range u.Teams {
		t.Bots = append([]int{}, t.Bots...)
		cp.Teams[i] = t
	}
	return cp
}

// Equal compares two universes by value
func (u *Universe) Equal(other *Universe) bool {
	if u == nil || other == nil {
		return u == other
	}
	if !u.Grid.Equal(other.Grid) || len(u.Bots) != len(other.Bots) ||
		len(u.Teams) != len(other.Teams) || len(u.Food) != len(other.Food) {
		return false
	}
	for i := range u.Bots {
		if u.Bots[i] != other.Bots[i] {
			return false
		}
	}
	for i := range u.Food {
		if u.Food[i] != other.Food[i] {
			return false
		}
	}
	for i := range u.Teams {
		a, b := u.Teams[i], other.Teams[i]
		if a.Index != b.Index || a.Name != b.Name || a.Zone != b.Zone || a.Score != b.Score || len(a.Bots) != len(b.Bots) {
			return false
		}
		for j := range a.Bots {
			if a.Bots[j] != b.Bots[j] {
				return false
			}
		}
	}
	return true
}

// Rows renders the maze as layout rows, optionally drawing bots as digits
func (u *Universe) Rows(withBots bool) []string {
	rows := make([][]byte, u.Grid.Height)
	for y := range rows {
		rows[y] = make([]byte, u.Grid.Width)
		for x := range rows[y] {
			cell := u.Grid.Cells[y][x]
			switch {
			case cell.Has(Wall):
				rows[y][x] = WallChar
			case cell.Has(Food):
				rows[y][x] = FoodChar
			default:
				rows[y][x] = FreeChar
			}
		}
	}
	if withBots {
		// draw in reverse so the lowest index ends up on top
		for i := len(u.Bots) - 1; i >= 0; i-- {
			p := u.Bots[i].CurrentPos
			if u.Grid.InBounds(p) && u.Bots[i].Index < 10 {
				rows[p.Y][p.X] = byte('0' + u.Bots[i].Index)
			}
		}
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r)
	}
	return out
}

// CompactString renders the maze with bots drawn as digits
func (u *Universe) CompactString() string {
	return strings.Join(u.Rows(true), "\n") + "\n"
}

// String renders the maze followed by the team and bot summary
func (u *Universe) String() string {
	var b strings.Builder
	b.WriteString(u.CompactString())
	for _, t := range u.Teams {
		fmt.Fprintf(&b, "Team %d (%s) zone %d-%d score %d bots %v\n", t.Index, t.Name, t.Zone.Min, t.Zone.Max, t.Score, t.Bots)
	}
	for _, bot := range u.Bots {
		role := "harvester"
		if bot.IsDestroyer() {
			role = "destroyer"
		}
		fmt.Fprintf(&b, "Bot %d team %d at %v (start %v) %s\n", bot.Index, bot.TeamIndex, bot.CurrentPos, bot.InitialPos, role)
	}
	return b.String()
}
