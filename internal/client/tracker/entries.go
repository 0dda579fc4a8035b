package tracker

import (
	"context"

	"go.uber.org/zap"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

// UpdateEntry applies upd to the entry with id and marks it pending. It is a
// no-op (nil, nil) when the entry does not exist. A duration change that
// would push the entry's day over the budget is rejected as a whole with a
// *DailyLimitError. The start time cannot be changed through this path.
func (s *Store) UpdateEntry(ctx context.Context, id string, upd models.EntryUpdate) (*models.TimeEntry, error) {
	upd, err := normalizeEntryUpdate(upd)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	i := indexOfEntry(s.st.entries, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, nil
	}
	current := s.st.entries[i]
	if upd.IsEmpty() {
		s.mu.Unlock()
		return &current, nil
	}

	if upd.Duration != nil {
		from, to := models.DayRange(current.StartTime, s.loc)
		sameDay := dayTotal(s.st.entries, from, to, id)
		if sameDay+*upd.Duration > models.MaxDailySeconds {
			s.mu.Unlock()
			return nil, &DailyLimitError{Op: OpUpdate, Day: from, Tracked: sameDay, Attempted: *upd.Duration}
		}
	}

	next := s.st.clone()
	updated := upd.Apply(current)
	next.entries[i] = updated
	rev := s.nextRev()
	next.pending[kindEntries].mark(id, rev)
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if s.online.Load() {
		_, err := s.remote.UpdateEntry(ctx, id, upd)
		s.settle(ctx, kindEntries, id, rev, err)
	}
	return &updated, nil
}

// DeleteEntry removes the entry and its pending marker. The local removal is
// final. The id stays tombstoned until the remote delete is confirmed, so a
// fetch running meanwhile cannot bring the entry back; a delete that fails,
// or is skipped while offline, is retried by the next sync.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	return s.deleteRecord(ctx, kindEntries, id)
}

func (s *Store) deleteRecord(ctx context.Context, k kind, id string) error {
	s.mu.Lock()
	next := s.st.clone()
	if k == kindProjects {
		if i := indexOfProject(next.projects, id); i >= 0 {
			next.projects = append(next.projects[:i:i], next.projects[i+1:]...)
		}
	} else {
		if i := indexOfEntry(next.entries, id); i >= 0 {
			next.entries = append(next.entries[:i:i], next.entries[i+1:]...)
		}
	}
	next.pending[k].remove(id)
	next.deleted[k] = next.deleted[k].add(id)
	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if !s.online.Load() {
		return nil
	}
	if err := s.deleteRemote(ctx, k, id); err != nil {
		s.log.Warn("remote delete failed, tombstone kept",
			zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
	}
	return nil
}

// FetchEntries replaces the entry collection with the remote entries matching
// filter, keeping pending local entries. It reports whether remote data was
// applied; a failed fetch leaves the collection untouched.
func (s *Store) FetchEntries(ctx context.Context, filter models.EntryFilter) bool {
	fetched, err := s.remote.FetchEntries(ctx, filter)
	if err != nil {
		s.log.Warn("failed to fetch entries, keeping local state", zap.Error(err))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	next.entries = mergeFetched(s.st.entries, fetched,
		func(e models.TimeEntry) string { return e.ID },
		s.st.pending[kindEntries], s.st.deleted[kindEntries])
	if err := s.commit(next); err != nil {
		return false
	}
	return true
}

// FetchTodayEntries fetches entries starting today or later.
func (s *Store) FetchTodayEntries(ctx context.Context) bool {
	return s.FetchEntries(ctx, models.EntryFilter{From: models.StartOfDay(s.now(), s.loc)})
}

// FetchAllEntries fetches every entry.
func (s *Store) FetchAllEntries(ctx context.Context) bool {
	return s.FetchEntries(ctx, models.EntryFilter{})
}

func normalizeEntryUpdate(upd models.EntryUpdate) (models.EntryUpdate, error) {
	if upd.Description != nil {
		desc, err := validateDescription(*upd.Description)
		if err != nil {
			return upd, err
		}
		upd.Description = &desc
	}
	if upd.ProjectID != nil {
		p := normalizeProject(upd.ProjectID)
		if p == nil {
			p = models.StringPtr("")
		}
		upd.ProjectID = p
	}
	if upd.Duration != nil && *upd.Duration < 0 {
		return upd, invalid("duration must not be negative")
	}
	return upd, nil
}

// mergeFetched builds the collection after a remote read: pending local
// records the remote does not know come first, then the remote records in
// remote order. A pending local record replaces its remote copy, and
// tombstoned ids are dropped.
func mergeFetched[T any](local, fetched []T, id func(T) string, pending pendingSet, deleted idSet) []T {
	inRemote := make(map[string]bool, len(fetched))
	for _, r := range fetched {
		inRemote[id(r)] = true
	}
	localByID := make(map[string]T, len(local))
	for _, l := range local {
		localByID[id(l)] = l
	}

	out := make([]T, 0, len(fetched)+pending.len())
	for _, l := range local {
		if pending.has(id(l)) && !inRemote[id(l)] {
			out = append(out, l)
		}
	}
	for _, r := range fetched {
		rid := id(r)
		if deleted.has(rid) {
			continue
		}
		if l, ok := localByID[rid]; ok && pending.has(rid) {
			out = append(out, l)
			continue
		}
		out = append(out, r)
	}
	return out
}
