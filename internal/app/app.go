// Package app wires configuration into a running tracker: remote store,
// local cache, identity, connectivity and periodic sync.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/TimeKeeper/internal/client/connectivity"
	"github.com/atinyakov/TimeKeeper/internal/client/storage"
	"github.com/atinyakov/TimeKeeper/internal/client/timer"
	"github.com/atinyakov/TimeKeeper/internal/client/tracker"
	"github.com/atinyakov/TimeKeeper/internal/config"
	"github.com/atinyakov/TimeKeeper/internal/db"
	"github.com/atinyakov/TimeKeeper/internal/remote"
	"github.com/atinyakov/TimeKeeper/internal/remote/memory"
	"github.com/atinyakov/TimeKeeper/internal/remote/postgres"
	"github.com/atinyakov/TimeKeeper/internal/remote/postgrest"
)

// App holds the wired components.
type App struct {
	Options *config.Options
	Store   *tracker.Store
	Remote  remote.Store
	Timer   *timer.Controller

	log     *zap.Logger
	closers []func() error
}

// OpenRemote builds the remote store selected by opts.Remote. The returned
// function releases its resources.
func OpenRemote(ctx context.Context, opts *config.Options) (remote.Store, func() error, error) {
	noop := func() error { return nil }
	switch opts.Remote {
	case config.RemotePostgREST:
		hc := &http.Client{Timeout: opts.RequestTimeout}
		return postgrest.New(opts.RemoteURL, opts.APIKey,
			postgrest.WithHTTPClient(hc),
			postgrest.WithAccessToken(opts.AccessToken),
		), noop, nil
	case config.RemotePostgres:
		conn, err := db.InitPostgres(ctx, opts.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(conn, opts.UserID), conn.Close, nil
	case config.RemoteMemory:
		return memory.New(opts.UserID), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote %q", opts.Remote)
	}
}

// New opens the remote store and the local cache, and resolves the owner
// identity. A configured user id wins over the cached one; without either
// the remote store is asked for the signed-in user.
func New(ctx context.Context, opts *config.Options, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rs, closeRemote, err := OpenRemote(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open remote %s: %w", opts.Remote, err)
	}

	store, err := tracker.New(storage.New(opts.CachePath), rs,
		tracker.WithLogger(log),
		tracker.WithLocation(opts.Location()),
	)
	if err != nil {
		_ = closeRemote()
		return nil, err
	}

	if opts.UserID != "" {
		if err := store.SetUserID(opts.UserID); err != nil {
			_ = closeRemote()
			return nil, err
		}
	} else if id := store.BootstrapIdentity(ctx); id == "" {
		log.Warn("no owner identity yet, recording is limited to the running timer")
	}

	return &App{
		Options: opts,
		Store:   store,
		Remote:  rs,
		Timer:   timer.New(store, nil),
		log:     log,
		closers: []func() error{closeRemote},
	}, nil
}

// Start loads the remote collections, follows src for connectivity and
// starts the periodic sync. Everything stops with ctx.
func (a *App) Start(ctx context.Context, src connectivity.Source) {
	if !a.Store.Refresh(ctx) {
		a.log.Info("initial refresh failed, serving the local cache")
	}
	stop := connectivity.NewMonitor(a.Store, a.log).Watch(ctx, src)
	a.closers = append(a.closers, func() error { stop(); return nil })
	a.Store.StartAutoSync(ctx, a.Options.SyncInterval)
}

// Prober returns a connectivity source pinging the remote store.
func (a *App) Prober() *connectivity.Prober {
	return connectivity.NewProber(a.Remote, a.Options.ProbeInterval, a.Options.RequestTimeout, a.log)
}

// Close releases the remote store and the connectivity subscription.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
