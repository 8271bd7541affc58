package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"fx-data/internal/app"
	"fx-data/internal/merge"
)

type backfillCmd struct {
	symbols string
}

func (*backfillCmd) Name() string     { return "backfill" }
func (*backfillCmd) Synopsis() string { return "fetch full minute history for each symbol" }
func (*backfillCmd) Usage() string {
	return "backfill [-symbols EURUSD,US30]\n  Walk back from now in bounded requests and commit the stitched series.\n"
}
func (c *backfillCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbols, "symbols", "", "comma separated subset of the tracked symbols")
}

func (c *backfillCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, ok := initApp(c.symbols)
	if !ok {
		return subcommands.ExitFailure
	}
	defer cleanup()
	sum := app.RunFlow(ctx, a.Config, a.Store, a.Runner, a.Metrics, "backfill", a.Symbols, a.Pipeline.Backfill())
	return exitStatus(sum)
}

type updateCmd struct {
	symbols string
	days    int
	force   bool
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "merge recent bars into each stored series" }
func (*updateCmd) Usage() string {
	return "update [-days N] [-force] [-symbols EURUSD,US30]\n  Fetch the lookback window and merge it into the stored series.\n"
}
func (c *updateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbols, "symbols", "", "comma separated subset of the tracked symbols")
	f.IntVar(&c.days, "days", 0, "lookback in days (default LOOKBACK_DAYS)")
	f.BoolVar(&c.force, "force", false, "fetch even if the series is fresh")
}

func (c *updateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.days < 0 {
		fmt.Fprintln(os.Stderr, "-days must be positive")
		return subcommands.ExitUsageError
	}
	a, cleanup, ok := initApp(c.symbols)
	if !ok {
		return subcommands.ExitFailure
	}
	defer cleanup()
	opts := merge.Options{Force: c.force, Lookback: time.Duration(c.days) * 24 * time.Hour}
	sum := app.RunFlow(ctx, a.Config, a.Store, a.Runner, a.Metrics, "update", a.Symbols, a.Pipeline.Update(opts))
	return exitStatus(sum)
}

type auditCmd struct {
	symbols      string
	gap          time.Duration
	marketClosed bool
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "check stored series for gaps, duplicates and bad values" }
func (*auditCmd) Usage() string {
	return "audit [-gap 2h] [-market-closed] [-symbols EURUSD,US30]\n  Exit status 1 if any series has duplicates or out-of-order rows, or cannot be read.\n"
}
func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbols, "symbols", "", "comma separated subset of the tracked symbols")
	f.DurationVar(&c.gap, "gap", 0, "gap threshold (default GAP_THRESHOLD)")
	f.BoolVar(&c.marketClosed, "market-closed", false, "exempt weekend and holiday gaps")
}

func (c *auditCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, ok := initApp(c.symbols)
	if !ok {
		return subcommands.ExitFailure
	}
	defer cleanup()
	a.Pipeline.Auditor = app.NewAuditor(a.Config, c.gap, c.marketClosed, a.Logger)
	sum := app.RunFlow(ctx, a.Config, a.Store, a.Runner, a.Metrics, "audit", a.Symbols, a.Pipeline.Audit())
	return exitStatus(sum)
}

type symbolsCmd struct {
	offline bool
}

func (*symbolsCmd) Name() string     { return "symbols" }
func (*symbolsCmd) Synopsis() string { return "list tracked symbols and the name each resolves to" }
func (*symbolsCmd) Usage() string {
	return "symbols [-offline]\n  Print category, canonical name, aliases, resolved source name and file path.\n"
}
func (c *symbolsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.offline, "offline", false, "do not ask the quote source")
}

func (c *symbolsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cleanup, ok := initApp("")
	if !ok {
		return subcommands.ExitFailure
	}
	defer cleanup()

	status := subcommands.ExitSuccess
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tSYMBOL\tALIASES\tRESOLVED\tPATH")
	for _, s := range a.Symbols {
		resolved := "-"
		if !c.offline {
			res, err := a.Session.Resolve(ctx, s)
			if err != nil {
				resolved = "unavailable"
				status = subcommands.ExitFailure
			} else {
				resolved = res.Name
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Category, s.Name, strings.Join(s.Aliases, ","), resolved, a.Store.Path(s))
	}
	if err := w.Flush(); err != nil {
		return subcommands.ExitFailure
	}
	return status
}
