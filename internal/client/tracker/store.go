// Package tracker holds the in-memory authoritative state of projects, time
// entries and the running timer, persists every change to the local cache,
// and reconciles pending changes with the remote store.
//
// Every mutation follows the same two phases: the change is validated,
// committed in memory and written to the cache while the store lock is held,
// and only then is a best-effort remote request made without the lock. A
// record whose remote request fails stays pending until the next sync.
package tracker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/TimeKeeper/internal/client/storage"
	"github.com/atinyakov/TimeKeeper/internal/models"
	"github.com/atinyakov/TimeKeeper/internal/remote"
)

// Cache is the local durable cache the store writes through to.
type Cache interface {
	Load() (storage.Snapshot, error)
	Save(storage.Snapshot) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator replaces uuid.NewString for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithOnline sets the initial connectivity status. The default is online.
func WithOnline(online bool) Option {
	return func(s *Store) { s.online.Store(online) }
}

// state is the committed local state. Mutations build a modified clone and
// swap it in only after the cache write succeeds.
type state struct {
	active   *models.ActiveTimer
	entries  []models.TimeEntry
	projects []models.Project
	pending  [numKinds]pendingSet
	deleted  [numKinds]idSet
	userID   string
}

func (st *state) clone() *state {
	c := &state{
		entries:  slices.Clone(st.entries),
		projects: slices.Clone(st.projects),
		userID:   st.userID,
	}
	if st.active != nil {
		a := *st.active
		c.active = &a
	}
	for k := range st.pending {
		c.pending[k] = st.pending[k].clone()
		c.deleted[k] = slices.Clone(st.deleted[k])
	}
	return c
}

func (st *state) snapshot() storage.Snapshot {
	return storage.Snapshot{
		ActiveTimer:      st.active,
		Entries:          st.entries,
		Projects:         st.projects,
		UnsyncedEntries:  st.pending[kindEntries].list(),
		UnsyncedProjects: st.pending[kindProjects].list(),
		DeletedEntries:   st.deleted[kindEntries],
		DeletedProjects:  st.deleted[kindProjects],
		UserID:           st.userID,
	}
}

func (st *state) exists(k kind, id string) bool {
	if k == kindProjects {
		return indexOfProject(st.projects, id) >= 0
	}
	return indexOfEntry(st.entries, id) >= 0
}

// Store is the sole mutator of local tracker state.
type Store struct {
	cache  Cache
	remote remote.Store
	log    *zap.Logger
	now    func() time.Time
	loc    *time.Location
	newID  func() string

	mu  sync.Mutex
	st  *state
	rev uint64

	online  atomic.Bool
	syncing [numKinds]atomic.Bool
}

// New loads the cached state and returns a ready Store.
func New(cache Cache, rs remote.Store, opts ...Option) (*Store, error) {
	s := &Store{
		cache:  cache,
		remote: rs,
		log:    zap.NewNop(),
		now:    time.Now,
		loc:    time.Local,
		newID:  uuid.NewString,
	}
	s.online.Store(true)
	for _, opt := range opts {
		opt(s)
	}

	snap, err := cache.Load()
	if err != nil {
		return nil, fmt.Errorf("load local cache: %w", err)
	}
	st := &state{
		active:   snap.ActiveTimer,
		entries:  snap.Entries,
		projects: snap.Projects,
		userID:   snap.UserID,
	}
	st.pending[kindEntries] = newPendingSet(snap.UnsyncedEntries, s.nextRev)
	st.pending[kindProjects] = newPendingSet(snap.UnsyncedProjects, s.nextRev)
	st.deleted[kindEntries] = snap.DeletedEntries
	st.deleted[kindProjects] = snap.DeletedProjects
	// Markers for records that no longer exist are garbage.
	for _, k := range []kind{kindEntries, kindProjects} {
		st.pending[k].retain(func(id string) bool { return st.exists(k, id) })
	}
	s.st = st
	return s, nil
}

// nextRev must be called with s.mu held or before the store is shared.
func (s *Store) nextRev() uint64 {
	s.rev++
	return s.rev
}

// commit persists next and makes it the current state. Callers hold s.mu.
func (s *Store) commit(next *state) error {
	if err := s.cache.Save(next.snapshot()); err != nil {
		s.log.Error("failed to persist local cache", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCachePersist, err)
	}
	s.st = next
	return nil
}

// ActiveTimer returns a copy of the running timer, or nil.
func (s *Store) ActiveTimer() *models.ActiveTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.active == nil {
		return nil
	}
	a := *s.st.active
	return &a
}

// Entries returns the time entries, most recently active first.
func (s *Store) Entries() []models.TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.entries)
}

// Projects returns the projects in their current order.
func (s *Store) Projects() []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.projects)
}

// Entry returns the entry with id.
func (s *Store) Entry(id string) (models.TimeEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOfEntry(s.st.entries, id); i >= 0 {
		return s.st.entries[i], true
	}
	return models.TimeEntry{}, false
}

// UserID returns the cached owner identity.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.userID
}

// IsOnline reports the last connectivity status set.
func (s *Store) IsOnline() bool { return s.online.Load() }

// IsSyncing reports whether a push is in flight for either collection.
func (s *Store) IsSyncing() bool {
	return s.syncing[kindEntries].Load() || s.syncing[kindProjects].Load()
}

// PendingCounts returns how many entries and projects await remote confirmation.
func (s *Store) PendingCounts() (entries, projects int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.pending[kindEntries].len(), s.st.pending[kindProjects].len()
}

// PendingEntryIDs returns the ids of entries awaiting remote confirmation.
func (s *Store) PendingEntryIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.pending[kindEntries].list()
}

// PendingProjectIDs returns the ids of projects awaiting remote confirmation.
func (s *Store) PendingProjectIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.pending[kindProjects].list()
}

// PendingDeletions returns the number of deletes not yet confirmed remotely.
func (s *Store) PendingDeletions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.deleted[kindEntries]) + len(s.st.deleted[kindProjects])
}

// SetUserID caches the owner identity. An empty id clears it.
func (s *Store) SetUserID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.userID == id {
		return nil
	}
	next := s.st.clone()
	next.userID = id
	return s.commit(next)
}

// markSynced clears id from the pending set of k if the record has not been
// changed since the request that succeeded was built. It reports whether the
// record was deleted locally meanwhile: the confirmed write may have put the
// row back remotely, so a tombstone is recorded for it and the caller must
// delete it again.
func (s *Store) markSynced(k kind, id string, rev uint64) (deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.exists(k, id) {
		next := s.st.clone()
		next.deleted[k] = next.deleted[k].add(id)
		if err := s.commit(next); err != nil {
			s.log.Warn("deletion tombstone not persisted", zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
		}
		return true
	}
	p := s.st.pending[k]
	if !p.has(id) || p.rev(id) != rev {
		return false
	}
	next := s.st.clone()
	next.pending[k].remove(id)
	if err := s.commit(next); err != nil {
		s.log.Warn("pending marker kept", zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
	}
	return false
}

// deleteRemote deletes id remotely and clears its tombstone on success. On
// failure the tombstone is kept for the next push.
func (s *Store) deleteRemote(ctx context.Context, k kind, id string) error {
	var err error
	if k == kindProjects {
		err = s.remote.DeleteProject(ctx, id)
	} else {
		err = s.remote.DeleteEntry(ctx, id)
	}
	if err != nil {
		s.tombstone(k, id)
		return err
	}
	s.clearTombstone(k, id)
	return nil
}

// tombstone records id as deleted locally but not yet remotely.
func (s *Store) tombstone(k kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.deleted[k].has(id) {
		return
	}
	next := s.st.clone()
	next.deleted[k] = next.deleted[k].add(id)
	if err := s.commit(next); err != nil {
		s.log.Warn("deletion tombstone not persisted", zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
	}
}

func (s *Store) clearTombstone(k kind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.deleted[k].has(id) {
		return
	}
	next := s.st.clone()
	next.deleted[k] = next.deleted[k].without(id)
	if err := s.commit(next); err != nil {
		s.log.Warn("deletion tombstone not cleared", zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
	}
}

func indexOfEntry(entries []models.TimeEntry, id string) int {
	return slices.IndexFunc(entries, func(e models.TimeEntry) bool { return e.ID == id })
}

func indexOfProject(projects []models.Project, id string) int {
	return slices.IndexFunc(projects, func(p models.Project) bool { return p.ID == id })
}

// dayTotal sums durations of entries starting within [from, to), skipping exclude.
func dayTotal(entries []models.TimeEntry, from, to time.Time, exclude string) int64 {
	var total int64
	for _, e := range entries {
		if e.ID == exclude {
			continue
		}
		if e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		total += e.Seconds()
	}
	return total
}
