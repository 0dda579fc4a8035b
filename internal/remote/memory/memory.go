// Package memory provides an in-process remote.Store. It backs the
// "memory" remote mode and the tracker tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/atinyakov/TimeKeeper/internal/models"
	"github.com/atinyakov/TimeKeeper/internal/remote"
)

// Store keeps projects and entries in maps guarded by a mutex.
type Store struct {
	mu       sync.Mutex
	projects map[string]models.Project
	entries  map[string]models.TimeEntry
	userID   string
	failing  bool
	failIDs  map[string]bool
	calls    map[string]int

	// OnCall, when set, runs before every operation with its name and the
	// record id (empty for reads). It is called without the lock held.
	OnCall func(op, id string)
}

// New returns an empty store that authenticates as userID.
func New(userID string) *Store {
	return &Store{
		projects: make(map[string]models.Project),
		entries:  make(map[string]models.TimeEntry),
		failIDs:  make(map[string]bool),
		calls:    make(map[string]int),
		userID:   userID,
	}
}

// SetFailing makes every subsequent call fail with remote.ErrUnavailable.
func (s *Store) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// FailID makes writes for the given record id fail.
func (s *Store) FailID(id string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fail {
		s.failIDs[id] = true
	} else {
		delete(s.failIDs, id)
	}
}

// SetUserID changes the authenticated identity. Empty means signed out.
func (s *Store) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Entry returns the stored entry with id.
func (s *Store) Entry(id string) (models.TimeEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Project returns the stored project with id.
func (s *Store) Project(id string) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	return p, ok
}

// Len returns the number of stored projects and entries.
func (s *Store) Len() (projects, entries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.projects), len(s.entries)
}

func (s *Store) begin(op, id string) error {
	if s.OnCall != nil {
		s.OnCall(op, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if s.failing {
		return fmt.Errorf("%s: %w", op, remote.ErrUnavailable)
	}
	if id != "" && s.failIDs[id] {
		return fmt.Errorf("%s %s: %w", op, id, remote.ErrUnavailable)
	}
	return nil
}

// FetchProjects implements remote.Store.
func (s *Store) FetchProjects(ctx context.Context) ([]models.Project, error) {
	if err := s.begin("FetchProjects", ""); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// FetchEntries implements remote.Store.
func (s *Store) FetchEntries(ctx context.Context, filter models.EntryFilter) ([]models.TimeEntry, error) {
	if err := s.begin("FetchEntries", ""); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TimeEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.From.IsZero() && e.StartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.StartTime.Before(filter.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if filter.Ascending {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

// InsertEntry implements remote.Store.
func (s *Store) InsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error) {
	if err := s.begin("InsertEntry", e.ID); err != nil {
		return models.TimeEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return models.TimeEntry{}, fmt.Errorf("insert entry %s: duplicate id", e.ID)
	}
	s.entries[e.ID] = e
	return e, nil
}

// UpdateEntry implements remote.Store.
func (s *Store) UpdateEntry(ctx context.Context, id string, upd models.EntryUpdate) (models.TimeEntry, error) {
	if err := s.begin("UpdateEntry", id); err != nil {
		return models.TimeEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return models.TimeEntry{}, fmt.Errorf("entry %s: %w", id, remote.ErrNotFound)
	}
	e = upd.Apply(e)
	s.entries[id] = e
	return e, nil
}

// DeleteEntry implements remote.Store. Deleting a missing record succeeds.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	if err := s.begin("DeleteEntry", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// UpsertEntry implements remote.Store.
func (s *Store) UpsertEntry(ctx context.Context, e models.TimeEntry) (models.TimeEntry, error) {
	if err := s.begin("UpsertEntry", e.ID); err != nil {
		return models.TimeEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return e, nil
}

// InsertProject implements remote.Store.
func (s *Store) InsertProject(ctx context.Context, p models.Project) (models.Project, error) {
	if err := s.begin("InsertProject", p.ID); err != nil {
		return models.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[p.ID]; ok {
		return models.Project{}, fmt.Errorf("insert project %s: duplicate id", p.ID)
	}
	s.projects[p.ID] = p
	return p, nil
}

// UpdateProject implements remote.Store.
func (s *Store) UpdateProject(ctx context.Context, id string, upd models.ProjectUpdate) (models.Project, error) {
	if err := s.begin("UpdateProject", id); err != nil {
		return models.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, fmt.Errorf("project %s: %w", id, remote.ErrNotFound)
	}
	p = upd.Apply(p)
	s.projects[id] = p
	return p, nil
}

// DeleteProject implements remote.Store. Deleting a missing record succeeds.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.begin("DeleteProject", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

// UpsertProject implements remote.Store.
func (s *Store) UpsertProject(ctx context.Context, p models.Project) (models.Project, error) {
	if err := s.begin("UpsertProject", p.ID); err != nil {
		return models.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return p, nil
}

// AuthenticatedUserID implements remote.Store.
func (s *Store) AuthenticatedUserID(ctx context.Context) (string, error) {
	if err := s.begin("AuthenticatedUserID", ""); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", remote.ErrUnauthenticated
	}
	return s.userID, nil
}

// Ping implements remote.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.begin("Ping", "")
}
