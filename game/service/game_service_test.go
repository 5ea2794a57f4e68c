package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
	"github.com/wricardo/capture-maze/game/session"
)

var errConfigNotFound = errors.New("config not found")

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.GameConfig
	saved   map[string]*engine.GameConfig
}

func NewMockConfigManager() *MockConfigManager {
	defaultConfig := &engine.GameConfig{
		Name:        "test",
		Description: "Test configuration",
		Layout: []string{
			"######",
			"#0 . #",
			"#.  1#",
			"######",
		},
		NumberBots: 2,
		MaxRounds:  4,
	}
	return &MockConfigManager{
		configs: map[string]*engine.GameConfig{
			"test": defaultConfig,
		},
		saved: map[string]*engine.GameConfig{},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.GameConfig, error) {
	config, exists := m.configs[name]
	if !exists {
		return nil, errConfigNotFound
	}
	return config, nil
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	result := make([]*service.ConfigInfo, 0, len(m.configs))
	for name, config := range m.configs {
		result = append(result, &service.ConfigInfo{
			Filename:   name + ".json",
			ConfigID:   name,
			Name:       config.Name,
			NumberBots: config.NumberBots,
		})
	}
	return result, nil
}

func (m *MockConfigManager) GetDefault() *engine.GameConfig {
	return m.configs["test"]
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.GameConfig) error {
	if err := engine.ValidateGameConfig(config); err != nil {
		return err
	}
	m.saved[name] = config
	return nil
}

func newService(t *testing.T) (service.GameService, *session.Manager) {
	t.Helper()
	sessions := session.NewManager()
	t.Cleanup(sessions.Shutdown)
	return service.NewGameService(sessions, NewMockConfigManager()), sessions
}

func waitForState(t *testing.T, svc service.GameService, id string, state master.State) *service.MatchInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := svc.GetMatch(context.Background(), id)
		if err != nil {
			t.Fatalf("GetMatch failed: %v", err)
		}
		if info.State == state {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("match %s never reached state %s", id, state)
	return nil
}

func TestGameService_CreateMatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	tests := []struct {
		name       string
		configName string
		wantErr    bool
	}{
		{name: "create with default config", configName: "", wantErr: false},
		{name: "create with named config", configName: "test", wantErr: false},
		{name: "create with unknown config", configName: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.CreateMatch(ctx, tt.configName)
			if tt.wantErr {
				if !errors.Is(err, errConfigNotFound) {
					t.Errorf("Expected wrapped config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateMatch failed: %v", err)
			}
			if info.ConfigName != "test" {
				t.Errorf("Expected config id 'test', got %q", info.ConfigName)
			}
			if info.State != master.StateInitializing {
				t.Errorf("Expected initializing state, got %s", info.State)
			}
			if info.NumberTeams != 2 || info.NumberBots != 2 {
				t.Errorf("Expected 2 teams and 2 bots, got %d and %d", info.NumberTeams, info.NumberBots)
			}
		})
	}
}

func TestGameService_LocalMatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	info, err := svc.CreateMatch(ctx, "test")
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	if _, err := svc.AddLocalTeam(ctx, info.ID, "", "telepathic"); !errors.Is(err, service.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for unknown strategy, got %v", err)
	}
	if _, err := svc.AddLocalTeam(ctx, info.ID, "ants", "bfs"); err != nil {
		t.Fatalf("AddLocalTeam failed: %v", err)
	}
	if _, err := svc.AddLocalTeam(ctx, info.ID, "", ""); err != nil {
		t.Fatalf("AddLocalTeam failed: %v", err)
	}
	if _, err := svc.AddLocalTeam(ctx, info.ID, "late", "stopping"); !errors.Is(err, session.ErrMatchFull) {
		t.Errorf("Expected ErrMatchFull, got %v", err)
	}

	final := waitForState(t, svc, info.ID, master.StateFinished)
	if final.Result == nil {
		t.Fatal("Expected a result")
	}
	if final.Teams[0].Name != "ants" || final.Teams[1].Name != service.DefaultStrategy {
		t.Errorf("Unexpected team names %+v", final.Teams)
	}

	history, err := svc.GetHistory(ctx, info.ID, service.HistoryOptions{Limit: 2, Order: "asc"})
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if history.TotalTurns == 0 || len(history.Turns) == 0 {
		t.Fatal("Expected recorded turns")
	}
	if history.Turns[0].Round != 1 || history.Turns[0].Bot != 0 {
		t.Errorf("Expected ascending history to start at round 1 bot 0, got %+v", history.Turns[0])
	}
}

func TestGameService_GetHistoryPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	info, _ := svc.CreateMatch(ctx, "test")
	svc.AddLocalTeam(ctx, info.ID, "a", "stopping")
	svc.AddLocalTeam(ctx, info.ID, "b", "stopping")
	waitForState(t, svc, info.ID, master.StateFinished)

	// 4 rounds of 2 bots
	tests := []struct {
		name      string
		opts      service.HistoryOptions
		wantLen   int
		wantFirst int
		hasNext   bool
	}{
		{"defaults", service.HistoryOptions{}, 8, 7, false},
		{"first page desc", service.HistoryOptions{Page: 1, Limit: 3}, 3, 7, true},
		{"last page desc", service.HistoryOptions{Page: 3, Limit: 3}, 2, 1, false},
		{"second page asc", service.HistoryOptions{Page: 2, Limit: 3, Order: "asc"}, 3, 3, true},
		{"past the end", service.HistoryOptions{Page: 9, Limit: 3}, 0, -1, false},
		{"huge page", service.HistoryOptions{Page: math.MaxInt, Limit: 3, Order: "asc"}, 0, -1, false},
		{"huge page desc", service.HistoryOptions{Page: math.MaxInt, Limit: 100}, 0, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.GetHistory(ctx, info.ID, tt.opts)
			if err != nil {
				t.Fatalf("GetHistory failed: %v", err)
			}
			if resp.TotalTurns != 8 {
				t.Errorf("Expected 8 turns, got %d", resp.TotalTurns)
			}
			if len(resp.Turns) != tt.wantLen {
				t.Fatalf("Expected %d turns, got %d", tt.wantLen, len(resp.Turns))
			}
			if tt.wantLen > 0 {
				first := resp.Turns[0]
				if idx := (first.Round-1)*2 + first.Bot; idx != tt.wantFirst {
					t.Errorf("Expected first turn %d, got %d", tt.wantFirst, idx)
				}
			}
			if resp.HasNext != tt.hasNext {
				t.Errorf("Expected HasNext %v, got %v", tt.hasNext, resp.HasNext)
			}
		})
	}
}

func TestGameService_GetLegalMoves(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	info, _ := svc.CreateMatch(ctx, "test")

	resp, err := svc.GetLegalMoves(ctx, info.ID, 0)
	if err != nil {
		t.Fatalf("GetLegalMoves failed: %v", err)
	}
	if resp.Role != "destroyer" || resp.Team != 0 {
		t.Errorf("Expected bot 0 to be a destroyer of team 0, got %+v", resp)
	}
	want := map[engine.Direction]bool{engine.East: true, engine.South: true, engine.Stop: true}
	if len(resp.Moves) != len(want) {
		t.Fatalf("Expected %d moves, got %+v", len(want), resp.Moves)
	}
	for _, m := range resp.Moves {
		if !want[m.Direction] {
			t.Errorf("Unexpected move %s", m.Direction)
		}
	}

	if _, err := svc.GetLegalMoves(ctx, info.ID, 9); !errors.Is(err, service.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestGameService_MatchLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	info, _ := svc.CreateMatch(ctx, "test")
	matches, err := svc.ListMatches(ctx)
	if err != nil || len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d (%v)", len(matches), err)
	}

	u, err := svc.GetUniverse(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetUniverse failed: %v", err)
	}
	if len(u.Food) != 2 {
		t.Errorf("Expected 2 food, got %d", len(u.Food))
	}

	if err := svc.DeleteMatch(ctx, info.ID); err != nil {
		t.Fatalf("DeleteMatch failed: %v", err)
	}
	if _, err := svc.GetMatch(ctx, info.ID); !errors.Is(err, session.ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
}

func TestGameService_Configs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	configs, err := svc.ListConfigs(ctx)
	if err != nil || len(configs) != 1 {
		t.Fatalf("Expected 1 config, got %d (%v)", len(configs), err)
	}
	if _, err := svc.LoadConfig(ctx, "test"); err != nil {
		t.Errorf("LoadConfig failed: %v", err)
	}
	if err := svc.SaveConfig(ctx, "broken", &engine.GameConfig{Name: "broken"}); err == nil {
		t.Error("Expected validation error when saving a broken config")
	}
}
