package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
)

// playedManager returns a manager whose match "done" has been played to
// the end and persisted in dir
func playedManager(t *testing.T, dir string) (*Manager, *service.Match) {
	t.Helper()
	persistence, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	manager := NewManagerWithPersistence(persistence)
	match, err := manager.Create("Done", "test", createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create match: %v", err)
	}
	manager.Join("done", stoppingProxy("ants"), service.TeamInfo{Kind: "local", Strategy: "stopping"})
	manager.Join("done", stoppingProxy("bees"), service.TeamInfo{Kind: "local", Strategy: "stopping"})
	waitFinished(t, match)
	manager.Wait()
	return manager, match
}

func TestFilePersistence(t *testing.T) {
	tempDir := t.TempDir()
	manager, match := playedManager(t, tempDir)
	persistence := manager.persistence

	t.Run("Finished match is saved", func(t *testing.T) {
		if !persistence.Exists("done") {
			t.Fatal("Match file should exist after the match finished")
		}
	})

	t.Run("Load restores the match", func(t *testing.T) {
		loaded, err := persistence.Load("done")
		if err != nil {
			t.Fatalf("Failed to load match: %v", err)
		}
		if loaded.ID != "Done" || loaded.ConfigName != "test" {
			t.Errorf("Unexpected match %s/%s", loaded.ID, loaded.ConfigName)
		}
		if loaded.Master.State() != master.StateFinished {
			t.Errorf("Expected finished state, got %s", loaded.Master.State())
		}
		if loaded.Master.Result().Reason != match.Master.Result().Reason {
			t.Errorf("Expected reason %s, got %s", match.Master.Result().Reason, loaded.Master.Result().Reason)
		}
		if len(loaded.Master.History()) != len(match.Master.History()) {
			t.Errorf("Expected %d turns, got %d", len(match.Master.History()), len(loaded.Master.History()))
		}
		if !loaded.Master.Universe().Equal(match.Master.Universe()) {
			t.Error("Expected the final universe to be restored")
		}
		if teams := loaded.Teams(); len(teams) != 2 || teams[0].Strategy != "stopping" {
			t.Errorf("Unexpected teams %+v", teams)
		}
	})

	t.Run("List All Matches", func(t *testing.T) {
		ids, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list matches: %v", err)
		}
		if len(ids) != 1 || ids[0] != "done" {
			t.Errorf("Expected [done], got %v", ids)
		}
	})

	t.Run("Unfinished match is rejected", func(t *testing.T) {
		waiting, _ := manager.Create("waiting", "test", createTestConfig())
		if err := persistence.Save(waiting); !errors.Is(err, ErrMatchNotFinished) {
			t.Errorf("Expected ErrMatchNotFinished, got %v", err)
		}
	})

	t.Run("Delete Match", func(t *testing.T) {
		if err := persistence.Delete("done"); err != nil {
			t.Fatalf("Failed to delete match: %v", err)
		}
		if persistence.Exists("done") {
			t.Error("Match file should not exist after delete")
		}
	})

	t.Run("Error Cases", func(t *testing.T) {
		if _, err := persistence.Load("missing"); !errors.Is(err, ErrMatchNotFound) {
			t.Errorf("Expected ErrMatchNotFound, got %v", err)
		}
		if err := persistence.Delete("missing"); !errors.Is(err, ErrMatchNotFound) {
			t.Errorf("Expected ErrMatchNotFound, got %v", err)
		}
		if err := os.WriteFile(filepath.Join(tempDir, "broken.json"), []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := persistence.Load("broken"); err == nil {
			t.Error("Expected error for a corrupt match file")
		}
	})
}

func TestFilePersistenceFileStructure(t *testing.T) {
	tempDir := t.TempDir()
	playedManager(t, tempDir)

	raw, err := os.ReadFile(filepath.Join(tempDir, "done.json"))
	if err != nil {
		t.Fatalf("Failed to read match file: %v", err)
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("Match file is not valid JSON: %v", err)
	}
	for _, field := range []string{"id", "config_name", "config", "created_at", "last_accessed_at", "teams", "result", "universe", "history"} {
		if _, ok := data[field]; !ok {
			t.Errorf("Expected field %q in match file", field)
		}
	}
}

func TestManagerWithPersistence(t *testing.T) {
	tempDir := t.TempDir()
	playedManager(t, tempDir)

	t.Run("Load Persisted Matches on Startup", func(t *testing.T) {
		persistence, _ := NewFilePersistence(tempDir)
		fresh := NewManagerWithPersistence(persistence)
		if err := fresh.LoadPersistedSessions(); err != nil {
			t.Fatalf("LoadPersistedSessions failed: %v", err)
		}
		if fresh.Count() != 1 {
			t.Errorf("Expected 1 loaded match, got %d", fresh.Count())
		}
	})

	t.Run("Get Loads from Persistence", func(t *testing.T) {
		persistence, _ := NewFilePersistence(tempDir)
		fresh := NewManagerWithPersistence(persistence)
		match, err := fresh.Get("done")
		if err != nil {
			t.Fatalf("Expected lazy load, got %v", err)
		}
		if match.Master.Result() == nil {
			t.Error("Expected a result on the loaded match")
		}
	})

	t.Run("Delete Removes from Persistence", func(t *testing.T) {
		persistence, _ := NewFilePersistence(tempDir)
		fresh := NewManagerWithPersistence(persistence)
		if err := fresh.Delete("done"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if persistence.Exists("done") {
			t.Error("Expected match file to be removed")
		}
	})
}
