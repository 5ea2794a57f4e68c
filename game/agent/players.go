package agent

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/capture-maze/game/engine"
)

// Player decides the moves of a single bot
type Player interface {
	SetInitial(botIndex int, u *engine.Universe) error
	GetMove(botIndex int, u *engine.Universe) (engine.Direction, error)
}

// SimpleTeam assigns one player to each bot id it receives, in order
type SimpleTeam struct {
	name    string
	players []Player
	bots    map[int]Player
}

// NewSimpleTeam creates a team that drives one bot per player
func NewSimpleTeam(name string, players ...Player) *SimpleTeam {
	return &SimpleTeam{name: name, players: players}
}

// Name returns the team name
func (t *SimpleTeam) Name() string {
	return t.name
}

// SetBotIDs binds the players to the given bot ids
func (t *SimpleTeam) SetBotIDs(ids []int) error {
	if len(ids) != len(t.players) {
		return fmt.Errorf("team %s has %d players but got %d bot ids", t.name, len(t.players), len(ids))
	}
	t.bots = make(map[int]Player, len(ids))
	for i, id := range ids {
		t.bots[id] = t.players[i]
	}
	return nil
}

// SetInitial forwards the initial universe to every player
func (t *SimpleTeam) SetInitial(u *engine.Universe) error {
	ids := make([]int, 0, len(t.bots))
	for id := range t.bots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if err := t.bots[id].SetInitial(id, u); err != nil {
			return err
		}
	}
	return nil
}

// GetMove asks the player of botIndex for its move
func (t *SimpleTeam) GetMove(botIndex int, u *engine.Universe) (engine.Direction, error) {
	p, ok := t.bots[botIndex]
	if !ok {
		return "", fmt.Errorf("team %s does not control bot %d", t.name, botIndex)
	}
	return p.GetMove(botIndex, u)
}

// StoppingPlayer never moves
type StoppingPlayer struct{}

func (StoppingPlayer) SetInitial(int, *engine.Universe) error { return nil }

func (StoppingPlayer) GetMove(int, *engine.Universe) (engine.Direction, error) {
	return engine.Stop, nil
}

// RandomPlayer picks a random legal move, stopping only when stuck
type RandomPlayer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPlayer creates a random player with a fixed seed
func NewRandomPlayer(seed int64) *RandomPlayer {
	return &RandomPlayer{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPlayer) SetInitial(int, *engine.Universe) error { return nil }

func (p *RandomPlayer) GetMove(botIndex int, u *engine.Universe) (engine.Direction, error) {
	var moves []engine.Direction
	for _, d := range u.LegalDirections(u.Bots[botIndex].CurrentPos) {
		if d != engine.Stop {
			moves = append(moves, d)
		}
	}
	if len(moves) == 0 {
		return engine.Stop, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return moves[p.rng.Intn(len(moves))], nil
}

// BFSPlayer walks the shortest path to the nearest enemy food
type BFSPlayer struct{}

func (BFSPlayer) SetInitial(int, *engine.Universe) error { return nil }

func (BFSPlayer) GetMove(botIndex int, u *engine.Universe) (engine.Direction, error) {
	bot := u.Bots[botIndex]
	path := engine.PathToNearest(u, bot.CurrentPos, u.EnemyFood(bot.TeamIndex))
	if len(path) == 0 {
		return engine.Stop, nil
	}
	d, ok := engine.DirectionBetween(bot.CurrentPos, path[0])
	if !ok {
		return engine.Stop, nil
	}
	return d, nil
}

// Strategies lists the names accepted by NewPlayer
var Strategies = []string{"stopping", "random", "bfs"}

// NewPlayer creates a reference player by strategy name
func NewPlayer(strategy string, seed int64) (Player, error) {
	switch strings.ToLower(strategy) {
	case "stopping", "stop":
		return StoppingPlayer{}, nil
	case "random":
		return NewRandomPlayer(seed), nil
	case "bfs", "food":
		return BFSPlayer{}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q, expected one of %s", strategy, strings.Join(Strategies, ", "))
}

// NewStrategyTeam builds a team whose bots all follow the same strategy
func NewStrategyTeam(name, strategy string, bots int, seed int64) (*SimpleTeam, error) {
	players := make([]Player, bots)
	for i := range players {
		p, err := NewPlayer(strategy, seed+int64(i))
		if err != nil {
			return nil, err
		}
		players[i] = p
	}
	return NewSimpleTeam(name, players...), nil
}
