package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

type stubSource struct {
	mu     sync.Mutex
	active *models.ActiveTimer
}

func (s *stubSource) ActiveTimer() *models.ActiveTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *stubSource) set(a *models.ActiveTimer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = a
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var start = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestCurrent_NoTimer(t *testing.T) {
	c := New(&stubSource{}, nil)

	tick := c.Current()
	assert.Nil(t, tick.Active)
	assert.Zero(t, tick.Elapsed)
	assert.Equal(t, "00:00:00", tick.Format())
}

func TestCurrent_ComputedFromAbsoluteStart(t *testing.T) {
	src := &stubSource{active: &models.ActiveTimer{Description: "x", StartTime: start}}
	clock := &stepClock{now: start.Add(90*time.Minute + 1500*time.Millisecond)}
	c := New(src, clock.Now)

	tick := c.Current()
	require.NotNil(t, tick.Active)
	assert.Equal(t, 90*time.Minute+time.Second, tick.Elapsed)
	assert.Equal(t, "01:30:01", tick.Format())

	clock.set(start.Add(3 * time.Hour))
	assert.Equal(t, 3*time.Hour, c.Elapsed())
}

func TestCurrent_NeverDecreases(t *testing.T) {
	src := &stubSource{active: &models.ActiveTimer{StartTime: start}}
	clock := &stepClock{now: start.Add(time.Minute)}
	c := New(src, clock.Now)

	assert.Equal(t, time.Minute, c.Elapsed())
	clock.set(start.Add(30 * time.Second))
	assert.Equal(t, time.Minute, c.Elapsed())
	clock.set(start.Add(-time.Hour))
	assert.Equal(t, time.Minute, c.Elapsed())
}

func TestCurrent_ResetsForNewTimer(t *testing.T) {
	src := &stubSource{active: &models.ActiveTimer{StartTime: start}}
	clock := &stepClock{now: start.Add(time.Hour)}
	c := New(src, clock.Now)
	assert.Equal(t, time.Hour, c.Elapsed())

	src.set(&models.ActiveTimer{StartTime: start.Add(time.Hour)})
	clock.set(start.Add(time.Hour + 5*time.Second))
	assert.Equal(t, 5*time.Second, c.Elapsed())

	src.set(nil)
	assert.Zero(t, c.Elapsed())
}

func TestRun_EmitsImmediately(t *testing.T) {
	src := &stubSource{active: &models.ActiveTimer{StartTime: start}}
	clock := &stepClock{now: start.Add(42 * time.Second)}
	c := New(src, clock.Now)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu    sync.Mutex
		ticks []Tick
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx, 5*time.Millisecond, func(tk Tick) {
			mu.Lock()
			defer mu.Unlock()
			ticks = append(ticks, tk)
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 42*time.Second, ticks[0].Elapsed, "first projection must not be zero")
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := New(&stubSource{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	c.Run(ctx, time.Hour, func(Tick) { calls++ })
	assert.Equal(t, 1, calls)
}
