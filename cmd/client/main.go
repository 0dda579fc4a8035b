// Package main is the interactive TimeKeeper shell. It works against the
// local cache and syncs with the remote store whenever it is online.
package main

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/TimeKeeper/internal/app"
	"github.com/atinyakov/TimeKeeper/internal/client/connectivity"
	"github.com/atinyakov/TimeKeeper/internal/config"
	"github.com/atinyakov/TimeKeeper/internal/logger"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop until exit or end of input.
func repl(ctx context.Context, sh *shell) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("timekeeper> ")
		if !scanner.Scan() {
			break
		}
		if !sh.exec(ctx, strings.Fields(scanner.Text())) {
			return
		}
	}
}

// main parses configuration, wires the tracker and starts the shell.
func main() {
	args := os.Args[1:]
	if slices.Contains(args, "-version") {
		fmt.Printf("TimeKeeper Client\nVersion: %s\nBuild Date: %s\n",
			cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	options, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// The shell owns the terminal, so only warnings and above are logged.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(cmp.Or(os.Getenv("LOG_LEVEL"), "warn")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, options, log.Log)
	if err != nil {
		log.Log.Fatal("cannot start tracker", zap.Error(err))
	}
	defer func() { _ = a.Close() }()

	manual := connectivity.NewManual()
	a.Start(ctx, manual)
	manual.Set(true)

	repl(ctx, &shell{
		store:  a.Store,
		timer:  a.Timer,
		manual: manual,
		loc:    options.Location(),
		out:    os.Stdout,
	})
}
