package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/capture-maze/game/master"
	"github.com/wricardo/capture-maze/game/service"
)

// ErrMatchNotFinished is returned when saving a match that is still going on
var ErrMatchNotFinished = errors.New("match is not finished")

// FilePersistence implements SessionPersistence with one JSON file per match
type FilePersistence struct {
	matchesDir string
}

// NewFilePersistence creates a new file-based persistence layer
func NewFilePersistence(matchesDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(matchesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create matches directory: %w", err)
	}
	return &FilePersistence{matchesDir: matchesDir}, nil
}

// Save persists a finished match to a JSON file
func (fp *FilePersistence) Save(match *service.Match) error {
	if match == nil {
		return fmt.Errorf("match cannot be nil")
	}
	if match.Master.State() != master.StateFinished {
		return fmt.Errorf("save %s: %w", match.ID, ErrMatchNotFinished)
	}

	data := PersistedMatchData{
		ID:             match.ID,
		ConfigName:     match.ConfigName,
		Config:         match.Config,
		CreatedAt:      match.CreatedAt,
		LastAccessedAt: match.LastAccessedAt(),
		Teams:          match.Teams(),
		Result:         match.Master.Result(),
		Universe:       match.Master.Universe(),
		History:        match.Master.History(),
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal match data: %w", err)
	}

	// Write to a temporary file first so readers never see half a record
	filePath := fp.getFilePath(match.ID)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write match file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write match file: %w", err)
	}
	return nil
}

// Load restores a finished match from its JSON file
func (fp *FilePersistence) Load(id string) (*service.Match, error) {
	jsonData, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to read match file: %w", err)
	}

	var data PersistedMatchData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match data: %w", err)
	}
	if data.Universe == nil || data.Universe.Grid == nil {
		return nil, fmt.Errorf("match file %s has no universe", id)
	}

	gm := master.Restore(data.Universe, data.History, data.Result)
	match := service.NewMatch(data.ID, data.ConfigName, data.Config, gm)
	match.CreatedAt = data.CreatedAt
	match.SetLastAccessed(data.LastAccessedAt)
	for _, team := range data.Teams {
		match.AddTeam(team)
	}
	return match, nil
}

// Delete removes a match file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrMatchNotFound
	}
	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove match file: %w", err)
	}
	return nil
}

// ListAll returns all persisted match IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.matchesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read matches directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

// Exists checks if a match file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.matchesDir, strings.ToLower(id)+".json")
}
