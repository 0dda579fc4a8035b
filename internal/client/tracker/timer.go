package tracker

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

// StartTimer starts the single active timer. It is a no-op when a timer is
// already running. It fails with a *DailyLimitError when today already holds
// the full daily budget.
func (s *Store) StartTimer(description string, projectID *string) error {
	desc, err := validateDescription(description)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.active != nil {
		s.log.Debug("timer already running, start ignored")
		return nil
	}

	now := s.now()
	from, to := models.DayRange(now, s.loc)
	if total := dayTotal(s.st.entries, from, to, ""); total >= models.MaxDailySeconds {
		return &DailyLimitError{Op: OpStart, Day: from, Tracked: total}
	}

	next := s.st.clone()
	next.active = &models.ActiveTimer{
		Description: desc,
		ProjectID:   normalizeProject(projectID),
		StartTime:   now,
	}
	return s.commit(next)
}

// StopTimer stops the active timer and records it, merging into an entry of
// the same day with the same description and project when one exists. The
// merged or created entry is returned. It returns (nil, nil) when no timer is
// running.
//
// When recording would push the day over the budget the timer is discarded
// and a *DailyLimitError is returned. The timer is kept when no owner
// identity is cached.
func (s *Store) StopTimer(ctx context.Context) (*models.TimeEntry, error) {
	s.mu.Lock()

	t := s.st.active
	if t == nil {
		s.mu.Unlock()
		return nil, nil
	}
	if s.st.userID == "" {
		s.mu.Unlock()
		return nil, ErrNoOwnerIdentity
	}

	now := s.now()
	duration := int64(now.Sub(t.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}

	// The budget belongs to the day the timer started on, which is the day the
	// recorded entry will be counted against.
	from, to := models.DayRange(t.StartTime, s.loc)
	total := dayTotal(s.st.entries, from, to, "")

	next := s.st.clone()
	next.active = nil

	if total+duration > models.MaxDailySeconds {
		err := s.commit(next)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		s.log.Info("timer discarded: daily limit",
			zap.Int64("tracked", total), zap.Int64("duration", duration))
		return nil, &DailyLimitError{Op: OpStop, Day: from, Tracked: total, Attempted: duration}
	}

	var (
		entry  models.TimeEntry
		merged bool
	)
	if i := findMergeTarget(s.st.entries, t, from, to); i >= 0 {
		entry = s.st.entries[i]
		entry.Duration = models.Int64Ptr(entry.Seconds() + duration)
		entry.EndTime = models.TimePtr(now)
		merged = true
		rest := append(next.entries[:i:i], next.entries[i+1:]...)
		next.entries = append([]models.TimeEntry{entry}, rest...)
	} else {
		entry = models.TimeEntry{
			ID:          s.newID(),
			ProjectID:   t.ProjectID,
			Description: t.Description,
			StartTime:   t.StartTime,
			EndTime:     models.TimePtr(now),
			Duration:    models.Int64Ptr(duration),
			UserID:      s.st.userID,
			CreatedAt:   now,
		}
		next.entries = append([]models.TimeEntry{entry}, next.entries...)
	}
	rev := s.nextRev()
	next.pending[kindEntries].mark(entry.ID, rev)

	if err := s.commit(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if s.online.Load() {
		var err error
		if merged {
			_, err = s.remote.UpdateEntry(ctx, entry.ID, models.EntryUpdate{
				Duration: entry.Duration,
				EndTime:  entry.EndTime,
			})
		} else {
			_, err = s.remote.InsertEntry(ctx, entry)
		}
		s.settle(ctx, kindEntries, entry.ID, rev, err)
	}
	return &entry, nil
}

// findMergeTarget returns the index of the first entry in [from, to) that
// matches the timer's description and project, or -1. Entries are created
// through this merge, so at most one match exists unless edits produced
// duplicates; the first in current order wins.
func findMergeTarget(entries []models.TimeEntry, t *models.ActiveTimer, from, to time.Time) int {
	for i, e := range entries {
		if e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		if e.Description == t.Description && models.SameProject(e.ProjectID, t.ProjectID) {
			return i
		}
	}
	return -1
}

// settle finishes a best-effort remote write for a pending record.
func (s *Store) settle(ctx context.Context, k kind, id string, rev uint64, err error) {
	if err != nil {
		s.log.Warn("remote write failed, record left pending",
			zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
		return
	}
	if s.markSynced(k, id, rev) {
		if err := s.deleteRemote(ctx, k, id); err != nil {
			s.log.Warn("remote delete failed, tombstone kept",
				zap.Stringer("collection", k), zap.String("id", id), zap.Error(err))
		}
	}
}

func validateDescription(description string) (string, error) {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return "", invalid("description must not be empty")
	}
	if utf8.RuneCountInString(desc) > models.MaxDescriptionLength {
		return "", invalid("description longer than %d characters", models.MaxDescriptionLength)
	}
	return desc, nil
}

func normalizeProject(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return models.StringPtr(strings.TrimSpace(*id))
}
