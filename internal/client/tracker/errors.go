package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

var (
	// ErrDailyLimitExceeded is matched by every *DailyLimitError.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
	// ErrNoOwnerIdentity is returned by mutations that need an owner while no
	// user id is cached.
	ErrNoOwnerIdentity = errors.New("no owner identity: sign in at least once")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCachePersist wraps local cache write failures. The mutation that
	// triggered it has no effect.
	ErrCachePersist = errors.New("persist local cache")
)

// Operations reported by DailyLimitError.
const (
	OpStart  = "start"
	OpStop   = "stop"
	OpUpdate = "update"
)

// DailyLimitError reports a mutation rejected by the daily budget.
type DailyLimitError struct {
	// Op is one of OpStart, OpStop, OpUpdate.
	Op string
	// Day is midnight of the affected calendar day.
	Day time.Time
	// Tracked is the duration already recorded on Day, in seconds, excluding
	// the entry being updated.
	Tracked int64
	// Attempted is the duration the mutation tried to record, in seconds.
	Attempted int64
}

func (e *DailyLimitError) Error() string {
	h, m := e.Tracked/3600, (e.Tracked%3600)/60
	switch e.Op {
	case OpStart:
		return fmt.Sprintf("cannot start timer: already tracked 24 hours today (%dh %dm)", h, m)
	case OpUpdate:
		return fmt.Sprintf("cannot update entry: would exceed the 24-hour daily limit for %s (tracked %dh %dm, requested %s)",
			e.Day.Format("2006-01-02"), h, m, models.FormatDurationHuman(e.Attempted))
	default:
		return fmt.Sprintf("cannot add entry: would exceed the 24-hour daily limit (current total: %dh %dm, timer: %s)",
			h, m, models.FormatDurationHuman(e.Attempted))
	}
}

// Is lets errors.Is(err, ErrDailyLimitExceeded) match.
func (e *DailyLimitError) Is(target error) bool {
	return target == ErrDailyLimitExceeded
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
