package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"fx-data/internal/app"
	"fx-data/internal/crawl"
	"fx-data/internal/metrics"
	"fx-data/internal/model"
	"fx-data/internal/provider"
	"fx-data/internal/slogx"
	"fx-data/internal/store"
)

// App holds application dependencies built by Wire.
type App struct {
	Config   *app.Config
	Logger   *slog.Logger
	Symbols  []model.Symbol
	Store    *store.FileStore
	Session  *provider.Session
	Pipeline *crawl.Pipeline
	Runner   *crawl.Runner
	Metrics  *metrics.Metrics
}

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&backfillCmd{}, "")
	subcommands.Register(&updateCmd{}, "")
	subcommands.Register(&auditCmd{}, "")
	subcommands.Register(&symbolsCmd{}, "")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}

// initApp builds the App and narrows its symbols to only (comma separated).
func initApp(only string) (*App, func(), bool) {
	a, cleanup, err := InitializeApp()
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return nil, nil, false
	}
	syms, err := app.SelectSymbols(a.Symbols, only)
	if err != nil {
		slog.Error("bad -symbols", "error", err)
		cleanup()
		return nil, nil, false
	}
	a.Symbols = syms
	slog.Info("using quote source", "source", a.Session.Name(), "symbols", len(syms))
	return a, cleanup, true
}

func exitStatus(sum crawl.Summary) subcommands.ExitStatus {
	if sum.Failed() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
