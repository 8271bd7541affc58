// Package audit scans a stored series and reports its structural health.
// It never modifies the store.
package audit

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"fx-data/internal/model"
)

const (
	DefaultGapThreshold    = 2 * time.Hour
	DefaultFutureTolerance = 4 * time.Hour
	DefaultSpikeFactor     = 20.0

	sketchAccuracy = 0.01
	maxGapsListed  = 50
)

// Config for the auditor.
type Config struct {
	GapThreshold    time.Duration
	MarketClosed    bool // exempt weekend and holiday gaps
	Calendar        Calendar
	FutureTolerance time.Duration
	SpikeFactor     float64
}

func (c Config) withDefaults() Config {
	if c.GapThreshold <= 0 {
		c.GapThreshold = DefaultGapThreshold
	}
	if c.FutureTolerance <= 0 {
		c.FutureTolerance = DefaultFutureTolerance
	}
	if c.SpikeFactor <= 0 {
		c.SpikeFactor = DefaultSpikeFactor
	}
	if c.Calendar.Holidays == nil {
		c.Calendar.Holidays = DefaultHolidays
	}
	return c
}

// Gap is a hole between two consecutive bars.
type Gap struct {
	After    time.Time     `json:"after"`  // last bar before the hole
	Before   time.Time     `json:"before"` // first bar after the hole
	Duration time.Duration `json:"duration"`
}

// Report is the result of one audit.
type Report struct {
	Symbol    string    `json:"symbol"`
	Path      string    `json:"path,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	Rows      int       `json:"rows"`
	First     time.Time `json:"first,omitempty"`
	Last      time.Time `json:"last,omitempty"`
	Span      string    `json:"span,omitempty"`

	Duplicates int   `json:"duplicates"`
	OutOfOrder int   `json:"out_of_order"`
	Gaps       []Gap `json:"gaps,omitempty"`
	GapCount   int   `json:"gap_count"`
	ExemptGaps int   `json:"exempt_gaps"`

	NaNValues      int `json:"nan_values"`
	InvalidOHLC    int `json:"invalid_ohlc"`
	NonPositive    int `json:"non_positive"`
	NegativeVolume int `json:"negative_volume"`
	OffMinute      int `json:"off_minute"`
	Future         int `json:"future"`
	Spikes         int `json:"spikes"`

	MedianRange float64 `json:"median_range"`
	PriceLow    float64 `json:"price_low"`
	PriceHigh   float64 `json:"price_high"`
}

// Structural reports whether the series keeps its ordering invariants.
// Gaps and value anomalies are informational.
func (r Report) Structural() bool {
	return r.Duplicates == 0 && r.OutOfOrder == 0
}

// Reader is the read side of the series store.
type Reader interface {
	Path(sym model.Symbol) string
	ReadAll(sym model.Symbol) ([]model.Bar, error)
	Size(path string) (int64, error)
}

// Auditor checks stored series.
type Auditor struct {
	cfg Config
	now func() time.Time
	log *slog.Logger
}

// New creates an Auditor. now nil → time.Now; logger nil → slog.Default().
func New(cfg Config, now func() time.Time, logger *slog.Logger) *Auditor {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{cfg: cfg.withDefaults(), now: now, log: logger}
}

// Audit reads the series for sym from r and scans it.
func (a *Auditor) Audit(sym model.Symbol, r Reader) (Report, error) {
	path := r.Path(sym)
	bars, err := r.ReadAll(sym)
	if err != nil {
		return Report{Symbol: sym.Name, Path: path}, err
	}
	rep := a.Scan(bars)
	rep.Symbol = sym.Name
	rep.Path = path
	if size, err := r.Size(path); err == nil {
		rep.SizeBytes = size
	}
	a.log.Info("audited", "symbol", sym.Name, "rows", rep.Rows, "gaps", rep.GapCount,
		"duplicates", rep.Duplicates, "out_of_order", rep.OutOfOrder, "spikes", rep.Spikes)
	return rep, nil
}

// Scan checks bars in stored order.
func (a *Auditor) Scan(bars []model.Bar) Report {
	rep := Report{Rows: len(bars)}
	if len(bars) == 0 {
		return rep
	}
	rep.First = bars[0].Time()
	rep.Last = bars[len(bars)-1].Time()
	rep.Span = rep.Last.Sub(rep.First).String()
	rep.PriceLow, rep.PriceHigh = math.Inf(1), math.Inf(-1)

	futureCut := a.now().Add(a.cfg.FutureTolerance).UnixMilli()
	minute := time.Minute.Milliseconds()
	gapMs := a.cfg.GapThreshold.Milliseconds()
	seen := make(map[int64]struct{}, len(bars))

	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		a.log.Warn("sketch unavailable, spike check skipped", "error", err)
	}

	for i, b := range bars {
		if _, dup := seen[b.Timestamp]; dup {
			rep.Duplicates++
		}
		seen[b.Timestamp] = struct{}{}

		if i > 0 {
			prev := bars[i-1].Timestamp
			switch d := b.Timestamp - prev; {
			case d < 0:
				rep.OutOfOrder++
			case d > gapMs:
				g := Gap{After: bars[i-1].Time(), Before: b.Time(), Duration: time.Duration(d) * time.Millisecond}
				if a.cfg.MarketClosed && a.cfg.Calendar.Closed(g.After, g.Duration) {
					rep.ExemptGaps++
					break
				}
				rep.GapCount++
				if len(rep.Gaps) < maxGapsListed {
					rep.Gaps = append(rep.Gaps, g)
				}
			}
		}

		if b.Timestamp%minute != 0 {
			rep.OffMinute++
		}
		if b.Timestamp > futureCut {
			rep.Future++
		}
		if b.Volume < 0 {
			rep.NegativeVolume++
		}

		if anyNaN(b) {
			rep.NaNValues++
			continue
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			rep.NonPositive++
		}
		if b.High < b.Low || b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
			rep.InvalidOHLC++
		}
		rep.PriceLow = math.Min(rep.PriceLow, b.Low)
		rep.PriceHigh = math.Max(rep.PriceHigh, b.High)
		if sketch != nil && b.High >= b.Low {
			_ = sketch.Add(b.High - b.Low)
		}
	}

	if math.IsInf(rep.PriceLow, 1) {
		rep.PriceLow, rep.PriceHigh = 0, 0
	}
	if sketch != nil && !sketch.IsEmpty() {
		if med, err := sketch.GetValueAtQuantile(0.5); err == nil && med > 0 {
			rep.MedianRange = med
			limit := med * a.cfg.SpikeFactor
			for _, b := range bars {
				if !anyNaN(b) && b.High-b.Low > limit {
					rep.Spikes++
				}
			}
		}
	}
	return rep
}

func anyNaN(b model.Bar) bool {
	return math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) || math.IsNaN(b.Close)
}

// Summary is a one-line description of r.
func (r Report) Summary() string {
	if r.Rows == 0 {
		return fmt.Sprintf("%s: empty", r.Symbol)
	}
	return fmt.Sprintf("%s: %d rows %s..%s, %d gaps (%d exempt), %d duplicates, %d out of order, %d invalid OHLC, %d spikes",
		r.Symbol, r.Rows, r.First.Format(time.RFC3339), r.Last.Format(time.RFC3339),
		r.GapCount, r.ExemptGaps, r.Duplicates, r.OutOfOrder, r.InvalidOHLC, r.Spikes)
}
