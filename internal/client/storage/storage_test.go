package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

func TestLoad_FileNotExist(t *testing.T) {
	ls := New(filepath.Join(t.TempDir(), "missing.json"))

	snap, err := ls.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snap.Entries) != 0 || len(snap.Projects) != 0 || snap.ActiveTimer != nil {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestLoad_FileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	data := Snapshot{
		Entries:         []models.TimeEntry{{ID: "1", Description: "d", Duration: models.Int64Ptr(5)}},
		UnsyncedEntries: []string{"1"},
		UserID:          "u1",
	}
	buf, _ := json.Marshal(&data)
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatal(err)
	}

	snap, err := New(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].ID != "1" {
		t.Errorf("unexpected entries: %+v", snap.Entries)
	}
	if snap.UserID != "u1" || len(snap.UnsyncedEntries) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).Load(); err == nil {
		t.Error("expected decode error for corrupt cache")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFile)
	ls := New(path)
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	want := Snapshot{
		ActiveTimer:      &models.ActiveTimer{Description: "writing", StartTime: start},
		Projects:         []models.Project{{ID: "p1", Name: "Design", Color: "#3b82f6"}},
		UnsyncedProjects: []string{"p1"},
		DeletedEntries:   []string{"gone"},
	}
	if err := ls.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := ls.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.ActiveTimer == nil || got.ActiveTimer.Description != "writing" || !got.ActiveTimer.StartTime.Equal(start) {
		t.Errorf("active timer = %+v", got.ActiveTimer)
	}
	if len(got.Projects) != 1 || got.Projects[0].Name != "Design" {
		t.Errorf("projects = %+v", got.Projects)
	}
	if len(got.DeletedEntries) != 1 || got.DeletedEntries[0] != "gone" {
		t.Errorf("deleted entries = %v", got.DeletedEntries)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestSave_Replaces(t *testing.T) {
	ls := New(filepath.Join(t.TempDir(), DefaultFile))
	if err := ls.Save(Snapshot{UserID: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := ls.Save(Snapshot{UserID: "second"}); err != nil {
		t.Fatal(err)
	}
	got, err := ls.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "second" {
		t.Errorf("UserID = %q; want %q", got.UserID, "second")
	}
}
