// Package timer projects the elapsed time of the running timer for display.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

// Source exposes the running timer. *tracker.Store implements it.
type Source interface {
	ActiveTimer() *models.ActiveTimer
}

// Tick is one elapsed-time projection. Active is nil when no timer runs.
type Tick struct {
	Active  *models.ActiveTimer
	Elapsed time.Duration
}

// Controller recomputes elapsed time from the timer's absolute start on every
// call, so ticks never accumulate drift.
type Controller struct {
	src Source
	now func() time.Time

	mu        sync.Mutex
	lastStart time.Time
	last      time.Duration
}

// New returns a controller reading from src. A nil now uses time.Now.
func New(src Source, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{src: src, now: now}
}

// Current returns the projection for the running timer. Elapsed is truncated
// to whole seconds and never decreases for the same timer, even if the clock
// steps back.
func (c *Controller) Current() Tick {
	active := c.src.ActiveTimer()
	if active == nil {
		c.mu.Lock()
		c.lastStart, c.last = time.Time{}, 0
		c.mu.Unlock()
		return Tick{}
	}

	elapsed := c.now().Sub(active.StartTime).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastStart.Equal(active.StartTime) {
		c.lastStart, c.last = active.StartTime, 0
	}
	if elapsed < c.last {
		elapsed = c.last
	}
	c.last = elapsed
	return Tick{Active: active, Elapsed: elapsed}
}

// Elapsed returns Current().Elapsed.
func (c *Controller) Elapsed() time.Duration {
	return c.Current().Elapsed
}

// Run calls fn with a fresh projection immediately and then every interval
// until ctx is done. Intervals above one second, or non-positive ones, are
// replaced by one second. Run blocks.
func (c *Controller) Run(ctx context.Context, interval time.Duration, fn func(Tick)) {
	if interval <= 0 || interval > time.Second {
		interval = time.Second
	}
	fn(c.Current())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(c.Current())
		}
	}
}

// Format renders the projection as HH:MM:SS.
func (t Tick) Format() string {
	return models.FormatDuration(int64(t.Elapsed / time.Second))
}
