package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/jpillora/backoff"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
)

var (
	// ErrNotInitializing is returned when teams are added after setup
	ErrNotInitializing = errors.New("game master is not initializing")
	// ErrTeamsFull is returned when every team slot is taken
	ErrTeamsFull = errors.New("all teams are registered")
	// ErrNotReady is returned by Setup while team slots are still empty
	ErrNotReady = errors.New("not all teams are registered")
	// ErrNotRunning is returned by Run before a successful Setup
	ErrNotRunning = errors.New("game master is not running")
)

// GameMaster drives one match: it owns the authoritative universe, asks
// each team's proxy for moves in bot order and tells observers what
// happened after every turn.
type GameMaster struct {
	mu           sync.RWMutex
	universe     *engine.Universe
	cfg          Config
	teams        []agent.Proxy
	observers    []Observer
	state        State
	running      bool
	round        int
	turn         int
	history      []TurnRecord
	timeouts     []int
	forfeits     []int
	disconnected []bool
	result       *Result
	logger       log15.Logger
}

// Option configures a GameMaster
type Option func(*GameMaster)

// WithLogger sets the logger
func WithLogger(l log15.Logger) Option {
	return func(gm *GameMaster) {
		gm.logger = l
	}
}

// WithObserver registers an observer at construction
func WithObserver(o Observer) Option {
	return func(gm *GameMaster) {
		gm.observers = append(gm.observers, o)
	}
}

// New creates a game master that owns u from now on
func New(u *engine.Universe, cfg Config, opts ...Option) *GameMaster {
	n := u.NumberTeams()
	gm := &GameMaster{
		universe:     u,
		cfg:          cfg.withDefaults(),
		state:        StateInitializing,
		timeouts:     make([]int, n),
		forfeits:     make([]int, n),
		disconnected: make([]bool, n),
		logger:       log15.New("module", "master"),
	}
	for _, opt := range opts {
		opt(gm)
	}
	return gm
}

// Restore rebuilds a finished game master from persisted data. The result
// can be queried but the match cannot be played again.
func Restore(u *engine.Universe, history []TurnRecord, result *Result) *GameMaster {
	gm := New(u, DefaultConfig())
	gm.history = append([]TurnRecord(nil), history...)
	gm.state = StateFinished
	gm.result = result.copy()
	if result != nil {
		gm.round = result.Rounds
		copy(gm.timeouts, result.Timeouts)
		copy(gm.forfeits, result.Forfeits)
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		gm.round, gm.turn = last.Round, last.Turn
	}
	return gm
}

// AddTeam registers the proxy for the next free team slot and returns its
// team index
func (gm *GameMaster) AddTeam(p agent.Proxy) (int, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if gm.state != StateInitializing {
		return -1, ErrNotInitializing
	}
	if len(gm.teams) >= gm.universe.NumberTeams() {
		return -1, ErrTeamsFull
	}
	gm.teams = append(gm.teams, p)
	return len(gm.teams) - 1, nil
}

// AddObserver registers an observer for all following turns
func (gm *GameMaster) AddObserver(o Observer) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.observers = append(gm.observers, o)
}

// Ready reports whether every team slot has a proxy
func (gm *GameMaster) Ready() bool {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.teams) == gm.universe.NumberTeams()
}

// TeamsJoined returns the number of registered proxies
func (gm *GameMaster) TeamsJoined() int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return len(gm.teams)
}

// Setup performs the handshake with every team. A team that fails all its
// attempts finishes the match with ReasonSetupFailed.
func (gm *GameMaster) Setup(ctx context.Context) error {
	gm.mu.Lock()
	if gm.state != StateInitializing {
		gm.mu.Unlock()
		return ErrNotInitializing
	}
	if len(gm.teams) != gm.universe.NumberTeams() {
		gm.mu.Unlock()
		return ErrNotReady
	}
	initial := gm.universe.Copy()
	teams := append([]agent.Proxy(nil), gm.teams...)
	gm.mu.Unlock()

	for i, proxy := range teams {
		if err := gm.handshake(ctx, i, proxy, initial); err != nil {
			setupErr := &SetupError{Team: i, Err: err}
			gm.logger.Error("team setup failed", "team", i, "err", err)
			gm.finish(ReasonSetupFailed, nil, setupErr.Error())
			return setupErr
		}
	}

	gm.mu.Lock()
	for i, proxy := range teams {
		if name := proxy.TeamName(); name != "" {
			_ = gm.universe.SetTeamName(i, name)
		}
	}
	gm.state = StateRunning
	gm.mu.Unlock()

	gm.logger.Info("match set up", "teams", len(teams), "bots", initial.NumberBots())
	return nil
}

func (gm *GameMaster) handshake(ctx context.Context, team int, proxy agent.Proxy, u *engine.Universe) error {
	b := &backoff.Backoff{
		Min:    gm.cfg.BackoffMin,
		Max:    gm.cfg.BackoffMax,
		Factor: 2,
	}

	var err error
	for attempt := 1; attempt <= gm.cfg.ConnectAttempts; attempt++ {
		err = proxy.AssignBotIDs(ctx, u.Teams[team].Bots)
		if err == nil {
			err = proxy.ProvideInitialState(ctx, u)
		}
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		gm.logger.Warn("handshake failed", "team", team, "attempt", attempt, "err", err)
		if attempt == gm.cfg.ConnectAttempts {
			break
		}
		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Run plays rounds until a team wins, the game is drawn, a team forfeits,
// the round limit is hit or ctx is cancelled
func (gm *GameMaster) Run(ctx context.Context) (*Result, error) {
	gm.mu.Lock()
	switch {
	case gm.state == StateFinished:
		gm.mu.Unlock()
		return gm.Result(), nil
	case gm.state != StateRunning, gm.running:
		gm.mu.Unlock()
		return nil, ErrNotRunning
	}
	gm.running = true
	numberBots := gm.universe.NumberBots()
	gm.mu.Unlock()

	for round := 1; round <= gm.cfg.MaxRounds; round++ {
		for bot := 0; bot < numberBots; bot++ {
			if err := ctx.Err(); err != nil {
				gm.finish(ReasonCancelled, nil, err.Error())
				return gm.Result(), err
			}
			if gm.playTurn(ctx, round, bot) {
				return gm.Result(), ctx.Err()
			}
		}
	}

	gm.mu.Lock()
	winner := gm.leader()
	gm.finishLocked(ReasonRoundLimit, winner, "")
	gm.mu.Unlock()
	gm.notifyFinish()
	return gm.Result(), nil
}

// Play runs Setup when needed and then Run
func (gm *GameMaster) Play(ctx context.Context) (*Result, error) {
	if gm.State() == StateInitializing {
		if err := gm.Setup(ctx); err != nil {
			return gm.Result(), err
		}
	}
	return gm.Run(ctx)
}

// playTurn asks one bot for its move and applies it. It reports whether the
// match is over.
func (gm *GameMaster) playTurn(ctx context.Context, round, bot int) bool {
	gm.mu.RLock()
	team := gm.universe.Bots[bot].TeamIndex
	proxy := gm.teams[team]
	view := gm.universe.Copy()
	gm.mu.RUnlock()

	dir, err := proxy.RequestMove(ctx, bot, view)
	forfeit := ""
	switch {
	case err == nil:
	case ctx.Err() != nil:
		gm.finish(ReasonCancelled, nil, ctx.Err().Error())
		return true
	case errors.Is(err, agent.ErrTimeout):
		forfeit = ForfeitTimeout
	case errors.Is(err, agent.ErrDisconnected):
		forfeit = ForfeitDisconnected
	default:
		forfeit = ForfeitMalformed
	}
	if forfeit != "" {
		gm.logger.Warn("move forfeited", "round", round, "bot", bot, "team", team, "kind", forfeit, "err", err)
		dir = engine.Stop
	}

	gm.mu.Lock()
	events, moveErr := gm.universe.ApplyMove(bot, dir)
	if moveErr != nil {
		gm.logger.Warn("illegal move", "round", round, "bot", bot, "move", dir, "err", moveErr)
		forfeit = ForfeitIllegal
		dir = engine.Stop
		events, _ = gm.universe.ApplyMove(bot, engine.Stop)
	}

	switch forfeit {
	case ForfeitTimeout:
		gm.timeouts[team]++
	case ForfeitMalformed, ForfeitIllegal:
		gm.forfeits[team]++
	case ForfeitDisconnected:
		gm.disconnected[team] = true
	}

	var reason Reason
	var winner *int
	switch {
	case events.Finished():
		reason = ReasonDraw
		for _, e := range events {
			if w, ok := e.(engine.TeamWins); ok {
				reason, winner = ReasonWin, intPtr(w.Team)
			}
		}
	case forfeit == ForfeitDisconnected:
		reason, winner = ReasonDisconnected, intPtr(gm.opponent(team))
		events = append(events, engine.TeamWins{Team: *winner})
	case forfeit == ForfeitTimeout && gm.timeouts[team] > gm.cfg.TimeoutThreshold:
		reason, winner = ReasonTimeouts, intPtr(gm.opponent(team))
		events = append(events, engine.TeamWins{Team: *winner})
	}

	gm.round, gm.turn = round, bot
	gm.history = append(gm.history, TurnRecord{
		Round:   round,
		Turn:    bot,
		Bot:     bot,
		Move:    dir,
		Forfeit: forfeit,
		Events:  events,
	})
	if reason != "" {
		gm.finishLocked(reason, winner, "")
	}
	snapshot := Snapshot{
		Round:    round,
		Turn:     bot,
		State:    gm.state,
		Universe: gm.universe,
		Events:   events,
	}
	deliveries := make([]delivery, len(gm.observers))
	for i, o := range gm.observers {
		deliveries[i] = delivery{observer: o, snapshot: snapshot.copy()}
	}
	gm.mu.Unlock()

	gm.logger.Debug("turn played", "round", round, "bot", bot, "move", dir, "events", len(events))
	for _, d := range deliveries {
		d.observer.Observe(d.snapshot)
	}
	if reason != "" {
		gm.notifyFinish()
		return true
	}
	return false
}

// delivery pairs an observer with its own copy of a snapshot
type delivery struct {
	observer Observer
	snapshot Snapshot
}

// opponent returns the team credited with a forfeit by team
func (gm *GameMaster) opponent(team int) int {
	best := -1
	for _, t := range gm.universe.Teams {
		if t.Index == team {
			continue
		}
		if best < 0 || t.Score > gm.universe.Teams[best].Score {
			best = t.Index
		}
	}
	return best
}

func (gm *GameMaster) leader() *int {
	if w, ok := gm.universe.Leader(); ok {
		return intPtr(w)
	}
	return nil
}

func (gm *GameMaster) finish(reason Reason, winner *int, detail string) {
	gm.mu.Lock()
	if gm.state == StateFinished {
		gm.mu.Unlock()
		return
	}
	gm.finishLocked(reason, winner, detail)
	gm.mu.Unlock()
	gm.notifyFinish()
}

func (gm *GameMaster) finishLocked(reason Reason, winner *int, detail string) {
	gm.state = StateFinished
	gm.result = &Result{
		Reason:   reason,
		Winner:   winner,
		Scores:   gm.universe.Scores(),
		Rounds:   gm.round,
		Timeouts: append([]int(nil), gm.timeouts...),
		Forfeits: append([]int(nil), gm.forfeits...),
		Detail:   detail,
	}
	gm.logger.Info("match finished", "reason", reason, "result", gm.result.String())
}

func (gm *GameMaster) notifyFinish() {
	gm.mu.RLock()
	result := gm.result.copy()
	observers := append([]Observer(nil), gm.observers...)
	gm.mu.RUnlock()

	if result == nil {
		return
	}
	for _, o := range observers {
		if f, ok := o.(Finisher); ok {
			f.Finish(*result)
		}
	}
}

// Close closes every registered proxy and every observer that can be
// closed
func (gm *GameMaster) Close() error {
	gm.mu.RLock()
	teams := append([]agent.Proxy(nil), gm.teams...)
	observers := append([]Observer(nil), gm.observers...)
	gm.mu.RUnlock()

	var errs []error
	for i, p := range teams {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("team %d: %w", i, err))
		}
	}
	for _, o := range observers {
		if c, ok := o.(interface{ Close() }); ok {
			c.Close()
		}
	}
	return errors.Join(errs...)
}

// State returns the current state
func (gm *GameMaster) State() State {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.state
}

// Round returns the last played round and turn
func (gm *GameMaster) Round() (round, turn int) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.round, gm.turn
}

// Result returns the outcome, or nil while the match is not finished
func (gm *GameMaster) Result() *Result {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.result.copy()
}

// Timeouts returns the timeout count per team
func (gm *GameMaster) Timeouts() []int {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return append([]int(nil), gm.timeouts...)
}

// History returns a copy of all turn records
func (gm *GameMaster) History() []TurnRecord {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return append([]TurnRecord(nil), gm.history...)
}

// Universe returns a copy of the current universe
func (gm *GameMaster) Universe() *engine.Universe {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.universe.Copy()
}

// Snapshot returns the latest state in the form observers receive it
func (gm *GameMaster) Snapshot() Snapshot {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	s := Snapshot{
		Round:    gm.round,
		Turn:     gm.turn,
		State:    gm.state,
		Universe: gm.universe,
	}
	if n := len(gm.history); n > 0 {
		s.Events = gm.history[n-1].Events
	}
	return s.copy()
}

func intPtr(i int) *int {
	return &i
}
