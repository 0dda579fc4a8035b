// Package connectivity turns reachability transitions into tracker sync
// triggers.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source publishes connectivity transitions to its subscribers.
type Source interface {
	Subscribe(onChange func(online bool)) (unsubscribe func())
}

// StatusSetter receives connectivity changes. *tracker.Store implements it.
type StatusSetter interface {
	SetOnlineStatus(ctx context.Context, online bool)
}

// Pinger checks reachability of the remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor forwards transitions from a Source to a StatusSetter.
type Monitor struct {
	setter StatusSetter
	log    *zap.Logger
}

// NewMonitor returns a Monitor feeding setter.
func NewMonitor(setter StatusSetter, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{setter: setter, log: log}
}

// OnOnline marks the store online, which pushes both collections.
func (m *Monitor) OnOnline(ctx context.Context) {
	m.log.Info("network reachable, syncing")
	m.setter.SetOnlineStatus(ctx, true)
}

// OnOffline marks the store offline.
func (m *Monitor) OnOffline(ctx context.Context) {
	m.log.Info("network unreachable, working offline")
	m.setter.SetOnlineStatus(ctx, false)
}

// Watch subscribes to src until the returned function is called.
func (m *Monitor) Watch(ctx context.Context, src Source) (stop func()) {
	return src.Subscribe(func(online bool) {
		if online {
			m.OnOnline(ctx)
			return
		}
		m.OnOffline(ctx)
	})
}

// hub fans a status out to subscribers and remembers the last one.
type hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]func(bool)
	known  bool
	online bool
}

func (h *hub) Subscribe(onChange func(online bool)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(bool))
	}
	id := h.next
	h.next++
	h.subs[id] = onChange
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// publish notifies subscribers when online differs from the last status.
// Callbacks run without the lock.
func (h *hub) publish(online bool) bool {
	h.mu.Lock()
	if h.known && h.online == online {
		h.mu.Unlock()
		return false
	}
	h.known, h.online = true, online
	subs := make([]func(bool), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}

// Online returns the last published status, and false before the first one.
func (h *hub) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.known && h.online
}

// Manual is a Source driven by explicit calls, used by the shell's
// online/offline commands and by tests.
type Manual struct {
	hub
}

// NewManual returns a Manual source.
func NewManual() *Manual {
	return &Manual{}
}

// Set publishes online if it changed.
func (m *Manual) Set(online bool) {
	m.publish(online)
}

// Prober is a Source that polls a Pinger.
type Prober struct {
	hub
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewProber returns a Prober checking p every interval, each check bounded
// by timeout.
func NewProber(p Pinger, interval, timeout time.Duration, log *zap.Logger) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Prober{pinger: p, interval: interval, timeout: timeout, log: log}
}

// Probe checks reachability once and publishes the result if it changed.
func (p *Prober) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.pinger.Ping(pctx)
	if err != nil {
		p.log.Debug("remote ping failed", zap.Error(err))
	}
	online := err == nil
	p.publish(online)
	return online
}

// Start probes immediately and then every interval until ctx is done.
func (p *Prober) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		p.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Probe(ctx)
			}
		}
	}()
}
