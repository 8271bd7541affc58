// Package backfill builds a symbol's history by walking backward from a
// frontier in bounded requests and stitching the chunks into one series.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fx-data/internal/model"
	"fx-data/internal/provider"
	"fx-data/internal/series"
)

const (
	// DefaultMaxBars is the largest window a terminal serves in one call.
	DefaultMaxBars = 99999
	// DefaultMaxAttempts is one initial request plus ten historical ones.
	DefaultMaxAttempts = 11

	stallLimit = 2
)

// Session is what the backfiller needs from a source session.
type Session interface {
	Resolve(ctx context.Context, sym model.Symbol) (provider.Resolution, error)
	Fetch(ctx context.Context, res provider.Resolution, req provider.Request) ([]model.Bar, error)
}

// StopReason says why a walk ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted" // empty response
	StopAttempts  StopReason = "attempts"  // MaxAttempts reached
	StopStalled   StopReason = "stalled"   // consecutive responses added nothing
	StopFloor     StopReason = "floor"     // reached Options.Floor
	StopFailed    StopReason = "failed"
)

// Config bounds the walk.
type Config struct {
	MaxBarsPerRequest int
	MaxAttempts       int
	Policy            series.ConflictPolicy
	Granularity       model.Granularity
}

func (c Config) withDefaults() Config {
	if c.MaxBarsPerRequest <= 0 {
		c.MaxBarsPerRequest = DefaultMaxBars
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Granularity <= 0 {
		c.Granularity = model.Minute
	}
	return c
}

// Options narrow one walk.
type Options struct {
	Start time.Time // initial frontier; zero → now
	Floor time.Time // exclusive lower bound; zero → walk until the source runs dry
}

// Result is the stitched series and how the walk went.
type Result struct {
	Bars     []model.Bar
	Requests int
	Stop     StopReason
	Partial  bool // a request failed after some chunks were stitched
}

// Backfiller walks a source backward in bounded chunks.
type Backfiller struct {
	cfg Config
	now func() time.Time
	log *slog.Logger
}

// New creates a Backfiller. now nil → time.Now; logger nil → slog.Default().
func New(cfg Config, now func() time.Time, logger *slog.Logger) *Backfiller {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfiller{cfg: cfg.withDefaults(), now: now, log: logger}
}

// Config returns the effective configuration.
func (b *Backfiller) Config() Config { return b.cfg }

// Run backfills sym from now as far back as the source serves.
func (b *Backfiller) Run(ctx context.Context, sess Session, sym model.Symbol) (Result, error) {
	return b.RunWith(ctx, sess, sym, Options{})
}

// RunWith backfills sym within opts. On a failure after at least one chunk
// the partial series is returned together with the error.
func (b *Backfiller) RunWith(ctx context.Context, sess Session, sym model.Symbol, opts Options) (Result, error) {
	res, err := sess.Resolve(ctx, sym)
	if err != nil {
		return Result{Stop: StopFailed}, err
	}

	frontier := opts.Start
	if frontier.IsZero() {
		frontier = b.now().UTC()
	}
	step := b.cfg.Granularity.Duration()

	var out Result
	var acc []model.Bar
	stalls := 0
	for out.Requests < b.cfg.MaxAttempts {
		if !opts.Floor.IsZero() && !frontier.After(opts.Floor) {
			out.Stop = StopFloor
			break
		}
		if err := ctx.Err(); err != nil {
			return b.fail(out, acc, sym, err)
		}

		chunk, err := sess.Fetch(ctx, res, provider.Request{
			Granularity:   b.cfg.Granularity,
			FromExclusive: opts.Floor,
			ToInclusive:   frontier,
			MaxBars:       b.cfg.MaxBarsPerRequest,
		})
		out.Requests++
		if err != nil {
			return b.fail(out, acc, sym, err)
		}
		if len(chunk) == 0 {
			out.Stop = StopExhausted
			break
		}

		var st series.MergeStats
		acc, st = series.Merge(acc, chunk, b.cfg.Policy)
		earliest := minTimestamp(chunk)
		b.log.Info("chunk stitched", "symbol", sym.Name, "request", out.Requests,
			"bars", len(chunk), "new", st.Added, "total", len(acc),
			"earliest", time.UnixMilli(earliest).UTC().Format(time.RFC3339))

		if st.Added == 0 {
			stalls++
			if stalls >= stallLimit {
				out.Stop = StopStalled
				break
			}
		} else {
			stalls = 0
		}

		if !opts.Floor.IsZero() && len(chunk) < b.cfg.MaxBarsPerRequest {
			out.Stop = StopFloor
			break
		}
		if next := time.UnixMilli(earliest).UTC().Add(-step); next.Before(frontier) {
			frontier = next
		}
	}
	if out.Stop == "" {
		out.Stop = StopAttempts
	}

	if err := series.Validate(acc); err != nil {
		return Result{Stop: StopFailed, Requests: out.Requests}, err
	}
	out.Bars = acc
	b.log.Info("backfill done", "symbol", sym.Name, "bars", len(acc), "requests", out.Requests, "stop", out.Stop)
	return out, nil
}

func (b *Backfiller) fail(out Result, acc []model.Bar, sym model.Symbol, err error) (Result, error) {
	out.Stop = StopFailed
	if len(acc) == 0 {
		return out, err
	}
	out.Bars = acc
	out.Partial = true
	b.log.Warn("backfill interrupted", "symbol", sym.Name, "bars", len(acc), "requests", out.Requests, "error", err)
	return out, fmt.Errorf("partial backfill after %d requests (%d bars): %w", out.Requests, len(acc), err)
}

func minTimestamp(bars []model.Bar) int64 {
	m := bars[0].Timestamp
	for _, b := range bars[1:] {
		if b.Timestamp < m {
			m = b.Timestamp
		}
	}
	return m
}

// IsPartial reports whether err came with a usable partial series.
// A resolve failure never carries bars, so only mid-walk failures qualify.
func IsPartial(r Result, err error) bool {
	return err != nil && r.Partial && len(r.Bars) > 0
}
