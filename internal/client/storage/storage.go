// Package storage persists the tracker's local state to a single JSON file so
// it survives process restarts and offline periods.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

// DefaultFile is the cache file name used when no path is configured.
const DefaultFile = "timer-storage.json"

// Snapshot is the whole persisted local state. It is replaced as a unit on
// every mutation.
type Snapshot struct {
	ActiveTimer      *models.ActiveTimer `json:"activeTimer"`
	Entries          []models.TimeEntry  `json:"entries"`
	Projects         []models.Project    `json:"projects"`
	UnsyncedEntries  []string            `json:"unsyncedEntries"`
	UnsyncedProjects []string            `json:"unsyncedProjects"`
	// DeletedEntries and DeletedProjects hold ids whose remote delete has not
	// been confirmed yet.
	DeletedEntries  []string `json:"deletedEntries,omitempty"`
	DeletedProjects []string `json:"deletedProjects,omitempty"`
	UserID          string   `json:"userId,omitempty"`
}

// LocalStorage reads and writes a Snapshot at Path.
type LocalStorage struct {
	Path string
	mu   sync.Mutex
}

// New returns a LocalStorage backed by path, or DefaultFile when path is empty.
func New(path string) *LocalStorage {
	if path == "" {
		path = DefaultFile
	}
	return &LocalStorage{Path: path}
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (ls *LocalStorage) Load() (Snapshot, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	var snap Snapshot
	f, err := os.Open(ls.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snap, nil
		}
		return snap, fmt.Errorf("open cache: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode cache: %w", err)
	}
	return snap, nil
}

// Save replaces the stored snapshot. The file is written next to the target
// and renamed over it, so readers never observe a partial write.
func (ls *LocalStorage) Save(snap Snapshot) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	dir := filepath.Dir(ls.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(ls.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmpName, ls.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
