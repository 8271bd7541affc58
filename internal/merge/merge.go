// Package merge refreshes an existing series with the bars published since
// it was last written.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fx-data/internal/backfill"
	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
	"fx-data/internal/provider"
	"fx-data/internal/series"
)

const (
	DefaultLookback        = 7 * 24 * time.Hour
	DefaultStaleAfter      = 12 * time.Hour
	DefaultFutureTolerance = 4 * time.Hour
)

// Config for the incremental merger.
type Config struct {
	Lookback          time.Duration
	StaleAfter        time.Duration
	FutureTolerance   time.Duration // broker clocks run ahead of UTC; zero → DefaultFutureTolerance
	NoFutureTolerance bool          // window ends at now
	MaxBarsPerRequest int
	Policy            series.ConflictPolicy
	Granularity       model.Granularity
}

func (c Config) withDefaults() Config {
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	switch {
	case c.NoFutureTolerance:
		c.FutureTolerance = 0
	case c.FutureTolerance <= 0:
		c.FutureTolerance = DefaultFutureTolerance
	}
	if c.MaxBarsPerRequest <= 0 {
		c.MaxBarsPerRequest = backfill.DefaultMaxBars
	}
	if c.Granularity <= 0 {
		c.Granularity = model.Minute
	}
	return c
}

// Options for one refresh.
type Options struct {
	Force    bool          // skip the freshness guard
	Lookback time.Duration // overrides Config.Lookback when > 0
}

// Merger is the incremental refresh of one series.
type Merger struct {
	cfg Config
	bf  *backfill.Backfiller
	now func() time.Time
	log *slog.Logger
}

// New creates a Merger. bf is used when one request cannot cover the window.
func New(cfg Config, bf *backfill.Backfiller, now func() time.Time, logger *slog.Logger) *Merger {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{cfg: cfg.withDefaults(), bf: bf, now: now, log: logger}
}

// Fresh reports whether existing ends within StaleAfter of now.
func (m *Merger) Fresh(existing []model.Bar) bool {
	_, last, ok := series.Bounds(existing)
	return ok && m.now().Sub(last) < m.cfg.StaleAfter
}

// Merge fetches the recent window for sym and merges it into existing.
// existing is not modified. A fresh series is returned unchanged without a fetch.
func (m *Merger) Merge(ctx context.Context, sess backfill.Session, sym model.Symbol, existing []model.Bar, opts Options) (series.MergeResult, error) {
	if !opts.Force && m.Fresh(existing) {
		_, last, _ := series.Bounds(existing)
		m.log.Info("series fresh, skip fetch", "symbol", sym.Name, "last", last.Format(time.RFC3339),
			"age", m.now().Sub(last).Round(time.Minute), "stale_after", m.cfg.StaleAfter)
		return series.MergeResult{Series: existing, Skipped: true}, nil
	}

	lookback := m.cfg.Lookback
	if opts.Lookback > 0 {
		lookback = opts.Lookback
	}
	now := m.now().UTC()
	from := now.Add(-lookback)
	to := now.Add(m.cfg.FutureTolerance)

	fetched, err := m.fetchWindow(ctx, sess, sym, from, to)
	if err != nil {
		return series.MergeResult{}, err
	}

	in, outside := series.Window(fetched, from, to)
	conformed, err := series.Conform(existing, in)
	if err != nil {
		return series.MergeResult{}, xerrors.AtStage(sym.Name, xerrors.StageMerge, err)
	}
	merged, st := series.Merge(existing, conformed, m.cfg.Policy)
	if err := series.Validate(merged); err != nil {
		return series.MergeResult{}, xerrors.AtStage(sym.Name, xerrors.StageMerge, err)
	}
	if _, err := series.ColumnsOf(merged); err != nil {
		return series.MergeResult{}, xerrors.AtStage(sym.Name, xerrors.StageMerge, err)
	}

	r := series.MergeResult{
		Series:      merged,
		Fetched:     len(fetched),
		Added:       st.Added,
		Duplicates:  st.Duplicates,
		OutOfWindow: outside,
		Changed:     !series.Equal(existing, merged),
	}
	m.log.Info("merged", "symbol", sym.Name, "fetched", r.Fetched, "added", r.Added,
		"duplicates", r.Duplicates, "out_of_window", r.OutOfWindow, "total", len(merged), "changed", r.Changed)
	return r, nil
}

// fetchWindow asks for (from, to] in one request and falls back to the
// chunked walk when the response was cut at MaxBarsPerRequest.
func (m *Merger) fetchWindow(ctx context.Context, sess backfill.Session, sym model.Symbol, from, to time.Time) ([]model.Bar, error) {
	res, err := sess.Resolve(ctx, sym)
	if err != nil {
		return nil, xerrors.AtStage(sym.Name, xerrors.StageResolve, err)
	}
	bars, err := sess.Fetch(ctx, res, provider.Request{
		Granularity:   m.cfg.Granularity,
		FromExclusive: from,
		ToInclusive:   to,
		MaxBars:       m.cfg.MaxBarsPerRequest,
	})
	if err != nil {
		return nil, xerrors.AtStage(sym.Name, xerrors.StageFetch, err)
	}
	if len(bars) < m.cfg.MaxBarsPerRequest || m.bf == nil {
		return bars, nil
	}
	first, _, _ := series.Bounds(bars)
	if !first.After(from.Add(m.cfg.Granularity.Duration())) {
		return bars, nil
	}

	m.log.Info("window truncated, walking back in chunks", "symbol", sym.Name,
		"from", from.Format(time.RFC3339), "got_from", first.Format(time.RFC3339))
	out, err := m.bf.RunWith(ctx, sess, sym, backfill.Options{Start: to, Floor: from})
	if err != nil {
		return nil, xerrors.AtStage(sym.Name, xerrors.StageFetch, fmt.Errorf("window walk: %w", err))
	}
	return out.Bars, nil
}
