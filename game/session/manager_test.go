package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/capture-maze/game/agent"
	"github.com/wricardo/capture-maze/game/engine"
	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
)

func createTestConfig() *engine.GameConfig {
	return &engine.GameConfig{
		Name:        "Test Config",
		Description: "Test configuration",
		Layout: []string{
			"######",
			"#0 . #",
			"#.  1#",
			"######",
		},
		NumberBots: 2,
		MaxRounds:  5,
	}
}

func stoppingProxy(name string) agent.Proxy {
	return agent.NewLocalProxy(agent.NewSimpleTeam(name, agent.StoppingPlayer{}))
}

// blockingProxy never answers a move request before ctx is done
type blockingProxy struct{}

func (blockingProxy) AssignBotIDs(ctx context.Context, ids []int) error { return nil }

func (blockingProxy) ProvideInitialState(ctx context.Context, u *engine.Universe) error { return nil }

func (blockingProxy) RequestMove(ctx context.Context, botIndex int, u *engine.Universe) (engine.Direction, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProxy) TeamName() string { return "blocker" }

func (blockingProxy) Close() error { return nil }

func waitFinished(t *testing.T, match *service.Match) *master.Result {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if match.Master.State() == master.StateFinished {
			return match.Master.Result()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("match %s did not finish", match.ID)
	return nil
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		match, err := manager.Create("test1", "test", config)
		if err != nil {
			t.Fatalf("Failed to create match: %v", err)
		}
		if match.ID != "test1" {
			t.Errorf("Expected ID 'test1', got '%s'", match.ID)
		}
		if match.Master.State() != master.StateInitializing {
			t.Errorf("Expected initializing state, got %s", match.Master.State())
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		match, err := manager.Create("", "test", config)
		if err != nil {
			t.Fatalf("Failed to create match: %v", err)
		}
		if len(match.ID) != 8 {
			t.Errorf("Expected 8 character ID, got '%s'", match.ID)
		}
	})

	t.Run("duplicate match ID", func(t *testing.T) {
		_, err := manager.Create("test1", "test", config)
		if !errors.Is(err, ErrMatchAlreadyExists) {
			t.Errorf("Expected ErrMatchAlreadyExists, got %v", err)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST1", "test", config)
		if !errors.Is(err, ErrMatchAlreadyExists) {
			t.Errorf("Expected ErrMatchAlreadyExists, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := createTestConfig()
		bad.Layout = []string{"###", "#0", "###"}
		if _, err := manager.Create("bad", "test", bad); err == nil {
			t.Error("Expected error for a broken layout")
		}
		if _, err := manager.Create("nil", "test", nil); err == nil {
			t.Error("Expected error for a nil config")
		}
	})

	t.Run("invalid ID", func(t *testing.T) {
		if _, err := manager.Create("../etc", "test", config); !errors.Is(err, ErrInvalidMatchID) {
			t.Errorf("Expected ErrInvalidMatchID, got %v", err)
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	if _, err := manager.Create("TestMatch", "test", createTestConfig()); err != nil {
		t.Fatalf("Failed to create match: %v", err)
	}

	t.Run("get existing match", func(t *testing.T) {
		match, err := manager.Get("TestMatch")
		if err != nil {
			t.Fatalf("Failed to get match: %v", err)
		}
		if match.ID != "TestMatch" {
			t.Errorf("Expected ID 'TestMatch', got '%s'", match.ID)
		}
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		if _, err := manager.Get("testmatch"); err != nil {
			t.Errorf("Expected case-insensitive lookup to succeed: %v", err)
		}
	})

	t.Run("get non-existent match", func(t *testing.T) {
		if _, err := manager.Get("missing"); !errors.Is(err, ErrMatchNotFound) {
			t.Errorf("Expected ErrMatchNotFound, got %v", err)
		}
	})
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("delete existing match", func(t *testing.T) {
		manager.Create("del1", "test", config)
		if err := manager.Delete("del1"); err != nil {
			t.Fatalf("Failed to delete match: %v", err)
		}
		if manager.Exists("del1") {
			t.Error("Match should not exist after delete")
		}
	})

	t.Run("delete non-existent match", func(t *testing.T) {
		if err := manager.Delete("missing"); !errors.Is(err, ErrMatchNotFound) {
			t.Errorf("Expected ErrMatchNotFound, got %v", err)
		}
	})

	t.Run("case-insensitive delete", func(t *testing.T) {
		manager.Create("Del2", "test", config)
		if err := manager.Delete("DEL2"); err != nil {
			t.Errorf("Expected case-insensitive delete to succeed: %v", err)
		}
	})

	t.Run("delete running match", func(t *testing.T) {
		match, _ := manager.Create("running", "test", config)
		manager.Join("running", blockingProxy{}, service.TeamInfo{Kind: "test"})
		manager.Join("running", blockingProxy{}, service.TeamInfo{Kind: "test"})
		if err := manager.Delete("running"); err != nil {
			t.Fatalf("Failed to delete match: %v", err)
		}
		if result := waitFinished(t, match); result.Reason != master.ReasonCancelled {
			t.Errorf("Expected cancelled match, got %s", result)
		}
	})
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	for _, id := range []string{"first", "second", "third"} {
		if _, err := manager.Create(id, "test", config); err != nil {
			t.Fatalf("Failed to create match: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	matches := manager.List()
	if len(matches) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(matches))
	}
	if matches[0].ID != "first" || matches[2].ID != "third" {
		t.Errorf("Expected matches oldest first, got %s..%s", matches[0].ID, matches[2].ID)
	}
	if manager.Count() != 3 {
		t.Errorf("Expected count 3, got %d", manager.Count())
	}
}

func TestManager_Join(t *testing.T) {
	rec := &master.Recorder{}
	manager := NewManager(WithObserverFactory(func(matchID string) master.Observer {
		if matchID == "observed" {
			return rec
		}
		return nil
	}))
	defer manager.Shutdown()

	match, err := manager.Create("observed", "test", createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create match: %v", err)
	}

	idx, err := manager.Join("observed", stoppingProxy("ants"), service.TeamInfo{Kind: "local"})
	if err != nil || idx != 0 {
		t.Fatalf("Expected team 0, got %d (%v)", idx, err)
	}
	if match.Master.State() != master.StateInitializing {
		t.Errorf("Expected match to wait for the second team, got %s", match.Master.State())
	}
	idx, err = manager.Join("OBSERVED", stoppingProxy("bees"), service.TeamInfo{Kind: "local"})
	if err != nil || idx != 1 {
		t.Fatalf("Expected team 1, got %d (%v)", idx, err)
	}

	result := waitFinished(t, match)
	if result.Reason != master.ReasonRoundLimit {
		t.Errorf("Expected round limit, got %s", result)
	}
	if len(rec.Snapshots()) != 10 {
		t.Errorf("Expected 10 snapshots, got %d", len(rec.Snapshots()))
	}
	if teams := match.Teams(); len(teams) != 2 || teams[1].Index != 1 {
		t.Errorf("Unexpected team slots %+v", teams)
	}

	if _, err := manager.Join("observed", stoppingProxy("late"), service.TeamInfo{}); !errors.Is(err, ErrMatchFull) {
		t.Errorf("Expected ErrMatchFull, got %v", err)
	}
	if _, err := manager.Join("missing", stoppingProxy("lost"), service.TeamInfo{}); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
}

func TestManager_ObserverQueue(t *testing.T) {
	rec := &master.Recorder{}
	manager := NewManager(
		WithObserverFactory(func(string) master.Observer { return rec }),
		WithObserverQueue(64),
	)
	defer manager.Shutdown()

	match, err := manager.Create("queued", "test", createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create match: %v", err)
	}
	for _, name := range []string{"ants", "bees"} {
		if _, err := manager.Join("queued", stoppingProxy(name), service.TeamInfo{Kind: "local"}); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}
	waitFinished(t, match)

	// The result reaches the recorder once the queue is drained
	deadline := time.Now().Add(5 * time.Second)
	for rec.Result() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.Result() == nil {
		t.Fatal("Expected the queued observer to forward the result")
	}
	if len(rec.Snapshots()) != 10 {
		t.Errorf("Expected 10 snapshots, got %d", len(rec.Snapshots()))
	}
}

func TestManager_Shutdown(t *testing.T) {
	manager := NewManager()
	match, _ := manager.Create("", "test", createTestConfig())
	manager.Join(match.ID, blockingProxy{}, service.TeamInfo{})
	manager.Join(match.ID, blockingProxy{}, service.TeamInfo{})

	done := make(chan struct{})
	go func() {
		manager.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}
	if match.Master.Result().Reason != master.ReasonCancelled {
		t.Errorf("Expected cancelled match, got %s", match.Master.Result())
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	old, _ := manager.Create("old", "test", config)
	manager.Create("fresh", "test", config)
	old.SetLastAccessed(time.Now().Add(-2 * time.Hour))

	removed := manager.CleanupExpiredSessions(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 removed match, got %d", removed)
	}
	if manager.Exists("old") || !manager.Exists("fresh") {
		t.Error("Expected only the stale match to be removed")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	match, _ := manager.Create("touch", "test", createTestConfig())
	match.SetLastAccessed(time.Now().Add(-time.Hour))
	before := match.LastAccessedAt()

	if err := manager.UpdateLastAccessed("TOUCH"); err != nil {
		t.Fatalf("UpdateLastAccessed failed: %v", err)
	}
	if !match.LastAccessedAt().After(before) {
		t.Error("Expected last access time to move forward")
	}
	if err := manager.UpdateLastAccessed("missing"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			match, err := manager.Create("", "test", config)
			if err != nil {
				t.Errorf("Failed to create match: %v", err)
				return
			}
			manager.Get(strings.ToUpper(match.ID))
			manager.List()
			manager.UpdateLastAccessed(match.ID)
		}()
	}
	wg.Wait()

	if manager.Count() != 20 {
		t.Errorf("Expected 20 matches, got %d", manager.Count())
	}
}
