package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchAlreadyExists = errors.New("match already exists")
	ErrMatchFull          = errors.New("match is full")
	ErrInvalidMatchID     = errors.New("invalid match ID")
)

// ObserverFactory returns an observer for a newly created match, or nil
type ObserverFactory func(matchID string) master.Observer

// Manager handles match lifecycle. A match starts in its own goroutine as
// soon as its last team slot is filled.
type Manager struct {
	matches     map[string]*service.Match
	started     map[string]context.CancelFunc
	persistence SessionPersistence
	factories   []ObserverFactory
	queueSize   int
	logger      log15.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithPersistence stores finished matches
func WithPersistence(p SessionPersistence) Option {
	return func(m *Manager) {
		m.persistence = p
	}
}

// WithObserverFactory attaches observers to every match created afterwards
func WithObserverFactory(f ObserverFactory) Option {
	return func(m *Manager) {
		m.factories = append(m.factories, f)
	}
}

// WithObserverQueue delivers to factory observers from a queue of size
// snapshots so a slow observer cannot hold up the game loop
func WithObserverQueue(size int) Option {
	return func(m *Manager) {
		m.queueSize = size
	}
}

// WithLogger sets the logger
func WithLogger(l log15.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a new match manager
func NewManager(opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		matches: make(map[string]*service.Match),
		started: make(map[string]context.CancelFunc),
		logger:  log15.New("module", "session"),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerWithPersistence creates a new match manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence, opts ...Option) *Manager {
	return NewManager(append([]Option{WithPersistence(persistence)}, opts...)...)
}

// Create creates a new match with the given ID and configuration
func (m *Manager) Create(id, configName string, config *engine.GameConfig) (*service.Match, error) {
	if id == "" {
		id = generateMatchID()
	}
	if strings.ContainsAny(id, `/\ `) {
		return nil, ErrInvalidMatchID
	}
	if config == nil {
		return nil, fmt.Errorf("failed to create match: config is nil")
	}

	u, err := engine.NewUniverseFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create universe: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.matchExists(id) {
		return nil, ErrMatchAlreadyExists
	}

	gm := master.New(u, master.ConfigFromGame(config), master.WithLogger(m.logger.New("match", id)))
	for _, f := range m.factories {
		o := f(id)
		if o == nil {
			continue
		}
		if m.queueSize > 0 {
			o = master.NewBufferedObserver(o, m.queueSize)
		}
		gm.AddObserver(o)
	}

	match := service.NewMatch(id, configName, config, gm)
	m.matches[strings.ToLower(id)] = match
	m.logger.Info("match created", "match", id, "config", configName)
	return match, nil
}

// Get retrieves a match by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Match, error) {
	m.mu.RLock()
	match, exists := m.matches[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return match, nil
	}

	// Try loading from persistence if not in memory
	if m.persistence != nil && m.persistence.Exists(id) {
		match, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted match: %w", err)
		}

		m.mu.Lock()
		m.matches[strings.ToLower(id)] = match
		m.mu.Unlock()
		return match, nil
	}

	return nil, ErrMatchNotFound
}

// List returns all matches in memory, oldest first
func (m *Manager) List() []*service.Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Match, 0, len(m.matches))
	for _, match := range m.matches {
		result = append(result, match)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Join registers proxy for the next free team slot. The match starts when
// every slot is taken.
func (m *Manager) Join(id string, proxy agent.Proxy, info service.TeamInfo) (int, error) {
	match, err := m.Get(id)
	if err != nil {
		return -1, err
	}

	index, err := match.Master.AddTeam(proxy)
	switch {
	case errors.Is(err, master.ErrTeamsFull), errors.Is(err, master.ErrNotInitializing):
		return -1, fmt.Errorf("%w: %v", ErrMatchFull, err)
	case err != nil:
		return -1, err
	}

	info.Index = index
	match.AddTeam(info)
	m.logger.Info("team joined", "match", match.ID, "team", index, "kind", info.Kind)

	if match.Master.Ready() {
		m.start(match)
	}
	return index, nil
}

// start plays the match in its own goroutine, once
func (m *Manager) start(match *service.Match) {
	key := strings.ToLower(match.ID)

	m.mu.Lock()
	if _, ok := m.started[key]; ok {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.started[key] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		result, err := match.Master.Play(ctx)
		if err != nil {
			m.logger.Warn("match ended with error", "match", match.ID, "err", err)
		}
		if result != nil {
			m.logger.Info("match finished", "match", match.ID, "result", result.String())
		}
		if err := match.Master.Close(); err != nil {
			m.logger.Debug("closing proxies", "match", match.ID, "err", err)
		}
		if err := m.Save(match.ID); err != nil && !errors.Is(err, ErrMatchNotFound) {
			m.logger.Error("failed to persist match", "match", match.ID, "err", err)
		}
	}()
}

// Delete cancels a match if it is running and removes it
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	lowerID := strings.ToLower(id)
	match, inMemory := m.matches[lowerID]
	if inMemory {
		delete(m.matches, lowerID)
	}
	cancel, running := m.started[lowerID]
	delete(m.started, lowerID)
	m.mu.Unlock()

	if running {
		cancel()
	} else if inMemory {
		match.Master.Close()
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted match: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrMatchNotFound
	}
	return nil
}

// DeleteFromMemory removes a match from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	if _, exists := m.matches[lowerID]; !exists {
		return ErrMatchNotFound
	}
	delete(m.matches, lowerID)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a match
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	match, exists := m.matches[strings.ToLower(id)]
	m.mu.RUnlock()

	if !exists {
		return ErrMatchNotFound
	}
	match.Touch()
	return nil
}

// Save persists a finished match
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	match, exists := m.matches[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrMatchNotFound
	}
	return m.persistence.Save(match)
}

// CleanupExpiredSessions removes matches that have not been accessed in
// the given duration. Running matches are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, match := range m.matches {
		if match.Master.State() == master.StateRunning || !match.LastAccessedAt().Before(cutoff) {
			continue
		}
		if cancel, ok := m.started[id]; ok {
			cancel()
			delete(m.started, id)
		} else {
			match.Master.Close()
		}
		delete(m.matches, id)
		removed++
	}
	return removed
}

// Count returns the number of matches in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.matches)
}

// Exists reports whether a match is in memory (case-insensitive)
func (m *Manager) Exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matchExists(id)
}

func (m *Manager) matchExists(id string) bool {
	_, exists := m.matches[strings.ToLower(id)]
	return exists
}

// generateMatchID returns the first block of a random UUID
func generateMatchID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// LoadPersistedSessions loads all persisted matches into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted matches: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.matches[strings.ToLower(id)]; exists {
			continue
		}
		match, err := m.persistence.Load(id)
		if err != nil {
			m.logger.Warn("failed to load persisted match", "match", id, "err", err)
			continue
		}
		m.matches[strings.ToLower(id)] = match
		loaded++
	}

	if loaded > 0 {
		m.logger.Info("loaded persisted matches", "count", loaded)
	}
	return nil
}

// SaveAllSessions saves every finished match in memory
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	matches := make([]*service.Match, 0, len(m.matches))
	for _, match := range m.matches {
		if match.Master.State() == master.StateFinished {
			matches = append(matches, match)
		}
	}
	m.mu.RUnlock()

	errorCount := 0
	for _, match := range matches {
		if err := m.persistence.Save(match); err != nil {
			m.logger.Warn("failed to save match", "match", match.ID, "err", err)
			errorCount++
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("failed to save %d matches", errorCount)
	}
	return nil
}

// Shutdown cancels every running match and waits for them to finish
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

// Wait blocks until every started match has finished
func (m *Manager) Wait() {
	m.wg.Wait()
}
