package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []bool
}

func (r *recorder) SetOnlineStatus(_ context.Context, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, online)
}

func (r *recorder) got() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

type flakyPinger struct {
	down atomic.Bool
	n    atomic.Int32
}

func (p *flakyPinger) Ping(context.Context) error {
	p.n.Add(1)
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestMonitor_ForwardsTransitions(t *testing.T) {
	rec := &recorder{}
	src := NewManual()
	stop := NewMonitor(rec, nil).Watch(context.Background(), src)

	src.Set(true)
	src.Set(true)
	src.Set(false)
	src.Set(true)
	assert.Equal(t, []bool{true, false, true}, rec.got())
	assert.True(t, src.Online())

	stop()
	src.Set(false)
	assert.Equal(t, []bool{true, false, true}, rec.got())
}

func TestManual_MultipleSubscribers(t *testing.T) {
	src := NewManual()
	var a, b []bool
	unsubA := src.Subscribe(func(online bool) { a = append(a, online) })
	src.Subscribe(func(online bool) { b = append(b, online) })

	assert.False(t, src.Online())
	src.Set(false)
	unsubA()
	src.Set(true)

	assert.Equal(t, []bool{false}, a)
	assert.Equal(t, []bool{false, true}, b)
}

func TestProber_PublishesOnlyTransitions(t *testing.T) {
	p := &flakyPinger{}
	prober := NewProber(p, time.Hour, time.Second, nil)
	var got []bool
	prober.Subscribe(func(online bool) { got = append(got, online) })
	ctx := context.Background()

	assert.True(t, prober.Probe(ctx))
	assert.True(t, prober.Probe(ctx))
	p.down.Store(true)
	assert.False(t, prober.Probe(ctx))
	assert.False(t, prober.Probe(ctx))
	p.down.Store(false)
	assert.True(t, prober.Probe(ctx))

	assert.Equal(t, []bool{true, false, true}, got)
	assert.Equal(t, int32(5), p.n.Load())
}

func TestProber_Start(t *testing.T) {
	p := &flakyPinger{}
	p.down.Store(true)
	rec := &recorder{}
	prober := NewProber(p, 5*time.Millisecond, 0, nil)
	NewMonitor(rec, nil).Watch(context.Background(), prober)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober.Start(ctx)

	require.Eventually(t, func() bool { return len(rec.got()) == 1 }, time.Second, time.Millisecond)
	p.down.Store(false)
	require.Eventually(t, func() bool { return len(rec.got()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{false, true}, rec.got())
}
