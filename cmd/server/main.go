// Package main runs the TimeKeeper daemon: the tracker core with its
// connectivity probe and periodic sync, exposed through a local JSON API.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/TimeKeeper/internal/app"
	"github.com/atinyakov/TimeKeeper/internal/config"
	"github.com/atinyakov/TimeKeeper/internal/logger"
	"github.com/atinyakov/TimeKeeper/internal/server/handler/http"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot start tracker", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	prober := a.Prober()
	a.Start(ctx, prober)
	prober.Start(ctx)

	router := http.NewRouter(http.Handlers{
		Timer:    &http.TimerHandler{Service: a.Store, Ticker: a.Timer},
		Entries:  &http.EntryHandler{Service: a.Store, Location: options.Location()},
		Projects: &http.ProjectHandler{Service: a.Store},
		Sync:     &http.SyncHandler{SyncService: a.Store},
	}, zapLogger, options.APIToken)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), options.RequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Warn("shutdown", zap.Error(err))
		}
	}()

	zapLogger.Info("starting HTTP server",
		zap.String("addr", options.Addr),
		zap.String("remote", options.Remote),
		zap.String("cache", options.CachePath),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	// Last chance to push what was recorded since the previous sync.
	flushCtx, cancel := context.WithTimeout(context.Background(), options.RequestTimeout)
	defer cancel()
	if a.Store.IsOnline() {
		a.Store.SyncAll(flushCtx)
	}
}
