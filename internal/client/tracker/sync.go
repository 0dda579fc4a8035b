package tracker

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncReport summarizes one push of a collection.
type SyncReport struct {
	Collection string `json:"collection"`
	// Pushed counts records confirmed by the remote store.
	Pushed int `json:"pushed"`
	// Failed counts records left pending after a remote error.
	Failed int `json:"failed"`
	// Deleted counts tombstones whose remote delete succeeded.
	Deleted int `json:"deleted"`
	// Pruned counts pending markers dropped because their record is gone.
	Pruned int `json:"pruned"`
	// Coalesced is set when another push of the collection was in flight and
	// this trigger was ignored.
	Coalesced bool `json:"coalesced,omitempty"`
}

type pushItem struct {
	id     string
	rev    uint64
	upsert func(ctx context.Context) error
}

// SyncWithServer pushes every pending time entry and retries pending entry
// deletions.
func (s *Store) SyncWithServer(ctx context.Context) SyncReport {
	return s.push(ctx, kindEntries)
}

// SyncProjects pushes every pending project and retries pending project
// deletions.
func (s *Store) SyncProjects(ctx context.Context) SyncReport {
	return s.push(ctx, kindProjects)
}

// SyncAll pushes both collections concurrently.
func (s *Store) SyncAll(ctx context.Context) (entries, projects SyncReport) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries = s.SyncWithServer(gctx)
		return nil
	})
	g.Go(func() error {
		projects = s.SyncProjects(gctx)
		return nil
	})
	_ = g.Wait()
	return entries, projects
}

// SetOnlineStatus records connectivity. Going online pushes both collections
// before returning.
func (s *Store) SetOnlineStatus(ctx context.Context, online bool) {
	prev := s.online.Swap(online)
	if prev != online {
		s.log.Info("connectivity changed", zap.Bool("online", online))
	}
	if online {
		s.SyncAll(ctx)
	}
}

// push runs one Idle → Syncing → Idle cycle for k. Concurrent triggers for
// the same collection are coalesced into the run already in flight.
func (s *Store) push(ctx context.Context, k kind) SyncReport {
	report := SyncReport{Collection: k.String()}
	if !s.syncing[k].CompareAndSwap(false, true) {
		s.log.Debug("sync already running, trigger coalesced", zap.Stringer("collection", k))
		report.Coalesced = true
		return report
	}
	defer s.syncing[k].Store(false)

	var revived []string
	for _, it := range s.pendingWork(k) {
		if err := it.upsert(ctx); err != nil {
			report.Failed++
			s.log.Warn("sync failed, record left pending",
				zap.Stringer("collection", k), zap.String("id", it.id), zap.Error(err))
			continue
		}
		report.Pushed++
		if s.markSynced(k, it.id, it.rev) {
			revived = append(revived, it.id)
		}
	}

	// Tombstones are read after the upserts so that a record deleted while
	// its upsert was in flight is deleted again after that upsert landed.
	for _, id := range s.tombstones(k, revived) {
		if err := s.deleteRemote(ctx, k, id); err != nil {
			s.log.Warn("remote delete retry failed",
				zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
			continue
		}
		report.Deleted++
	}

	report.Pruned = s.prunePending(k)

	if report.Pushed+report.Failed+report.Deleted+report.Pruned > 0 {
		s.log.Info("sync finished",
			zap.Stringer("collection", k),
			zap.Int("pushed", report.Pushed),
			zap.Int("failed", report.Failed),
			zap.Int("deleted", report.Deleted),
			zap.Int("pruned", report.Pruned))
	}
	return report
}

// pendingWork snapshots the records to upsert.
func (s *Store) pendingWork(k kind) []pushItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []pushItem
	for _, id := range s.st.pending[k].list() {
		rev := s.st.pending[k].rev(id)
		switch k {
		case kindProjects:
			i := indexOfProject(s.st.projects, id)
			if i < 0 {
				continue
			}
			p := s.st.projects[i]
			items = append(items, pushItem{id: id, rev: rev, upsert: func(ctx context.Context) error {
				_, err := s.remote.UpsertProject(ctx, p)
				return err
			}})
		default:
			i := indexOfEntry(s.st.entries, id)
			if i < 0 {
				continue
			}
			e := s.st.entries[i]
			items = append(items, pushItem{id: id, rev: rev, upsert: func(ctx context.Context) error {
				_, err := s.remote.UpsertEntry(ctx, e)
				return err
			}})
		}
	}
	return items
}

// tombstones returns the ids of k awaiting a remote delete, followed by the
// ids in also that are not among them.
func (s *Store) tombstones(k kind, also []string) []string {
	s.mu.Lock()
	ids := slices.Clone(s.st.deleted[k])
	s.mu.Unlock()
	for _, id := range also {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// prunePending drops markers whose record was deleted while its sync was in
// flight. The set is filtered against the state read under the same lock.
func (s *Store) prunePending(k kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	n := next.pending[k].retain(func(id string) bool { return next.exists(k, id) })
	if n == 0 {
		return 0
	}
	if err := s.commit(next); err != nil {
		return 0
	}
	return n
}

// StartAutoSync pushes both collections every interval while online, until
// ctx is done.
func (s *Store) StartAutoSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.online.Load() {
					continue
				}
				s.SyncAll(ctx)
			}
		}
	}()
}

// BootstrapIdentity returns the cached owner identity, asking the remote
// store for the authenticated user when none is cached. A failed lookup is
// not an error; the empty id is returned.
func (s *Store) BootstrapIdentity(ctx context.Context) string {
	if id := s.UserID(); id != "" {
		return id
	}
	id, err := s.remote.AuthenticatedUserID(ctx)
	if err != nil || id == "" {
		s.log.Debug("authenticated user unavailable", zap.Error(err))
		return ""
	}
	if err := s.SetUserID(id); err != nil {
		s.log.Warn("failed to cache identity", zap.Error(err))
	}
	return id
}

// Refresh reloads projects and today's entries from the remote store.
func (s *Store) Refresh(ctx context.Context) bool {
	okProjects := s.FetchProjects(ctx)
	okEntries := s.FetchTodayEntries(ctx)
	return okProjects && okEntries
}
