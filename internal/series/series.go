// Package series holds the pure operations on a one-minute bar series:
// ordering, de-duplication, merging and the structural checks every
// series must pass before it is written.
package series

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
)

// maxPrealloc bounds EstimatedBars so a bogus range never allocates gigabytes.
const maxPrealloc = 2_000_000

// ConflictPolicy decides which bar survives when two share a timestamp.
type ConflictPolicy int

const (
	// PreferFetched keeps the most recently fetched bar. Default.
	PreferFetched ConflictPolicy = iota
	// PreferExisting keeps the bar already in the series.
	PreferExisting
)

func (p ConflictPolicy) String() string {
	if p == PreferExisting {
		return "existing"
	}
	return "fetched"
}

// ParseConflictPolicy converts "fetched" | "existing" to a policy. Empty → PreferFetched.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fetched", "last", "new":
		return PreferFetched, nil
	case "existing", "first", "old":
		return PreferExisting, nil
	default:
		return PreferFetched, fmt.Errorf("unknown conflict policy %q (use: fetched, existing)", s)
	}
}

// MergeStats counts what a merge did with the fetched bars.
type MergeStats struct {
	Added      int // timestamps not present before
	Duplicates int // fetched bars that collided with another bar
}

// EstimatedBars returns pre-alloc capacity for (from, to] at granularity g, +10% buffer.
func EstimatedBars(from, to time.Time, g model.Granularity) int {
	if !to.After(from) || g <= 0 {
		return 0
	}
	n := int(to.Sub(from) / g.Duration())
	n += n / 10
	if n > maxPrealloc {
		n = maxPrealloc
	}
	return n
}

// Sort orders bars by timestamp in place. Equal timestamps keep their relative order.
func Sort(bars []model.Bar) {
	if sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp }) {
		return
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
}

// Normalize returns a sorted copy of bars with one bar per timestamp.
// Among duplicates the later one in input order wins. dups counts the bars dropped.
func Normalize(bars []model.Bar) (out []model.Bar, dups int) {
	if len(bars) == 0 {
		return nil, 0
	}
	out = make([]model.Bar, len(bars))
	copy(out, bars)
	Sort(out)
	w := 0
	for r := 1; r < len(out); r++ {
		if out[r].Timestamp == out[w].Timestamp {
			out[w] = out[r]
			dups++
			continue
		}
		w++
		out[w] = out[r]
	}
	return out[:w+1], dups
}

// Merge combines existing with fetched into one ascending, duplicate-free series.
// On a shared timestamp policy picks the survivor. Neither input is modified.
func Merge(existing, fetched []model.Bar, policy ConflictPolicy) ([]model.Bar, MergeStats) {
	var st MergeStats
	e := existing
	if err := Validate(e); err != nil {
		var d int
		e, d = Normalize(existing)
		st.Duplicates += d
	}
	f, d := Normalize(fetched)
	st.Duplicates += d

	out := make([]model.Bar, 0, len(e)+len(f))
	i, j := 0, 0
	for i < len(e) && j < len(f) {
		switch {
		case e[i].Timestamp < f[j].Timestamp:
			out = append(out, e[i])
			i++
		case e[i].Timestamp > f[j].Timestamp:
			out = append(out, f[j])
			st.Added++
			j++
		default:
			if policy == PreferExisting {
				out = append(out, e[i])
			} else {
				out = append(out, f[j])
			}
			st.Duplicates++
			i++
			j++
		}
	}
	out = append(out, e[i:]...)
	st.Added += len(f) - j
	out = append(out, f[j:]...)
	return out, st
}

// Validate checks that timestamps strictly increase.
func Validate(bars []model.Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp <= bars[i-1].Timestamp {
			return fmt.Errorf("%w: bar %d at %d not after %d", xerrors.ErrMergeInvariant, i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}
	return nil
}

// ColumnsOf returns the optional column set shared by all bars.
// Bars that disagree yield ErrSchemaMismatch.
func ColumnsOf(bars []model.Bar) (model.Columns, error) {
	if len(bars) == 0 {
		return model.Columns{}, nil
	}
	want := bars[0].Columns()
	for i := 1; i < len(bars); i++ {
		if got := bars[i].Columns(); got != want {
			return want, fmt.Errorf("%w: bar %d has columns %s, bar 0 has %s", xerrors.ErrSchemaMismatch, i, got, want)
		}
	}
	return want, nil
}

// Conform reshapes fetched to the column set of existing.
// Extra optional columns on fetched are dropped; a column existing carries
// that fetched lacks is ErrSchemaMismatch. With no existing bars fetched
// only has to be homogeneous.
func Conform(existing, fetched []model.Bar) ([]model.Bar, error) {
	fc, err := ColumnsOf(fetched)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 || len(fetched) == 0 {
		return fetched, nil
	}
	ec, err := ColumnsOf(existing)
	if err != nil {
		return nil, err
	}
	if fc == ec {
		return fetched, nil
	}
	if (ec.Spread && !fc.Spread) || (ec.RealVolume && !fc.RealVolume) {
		return nil, fmt.Errorf("%w: stored %s, fetched %s", xerrors.ErrSchemaMismatch, ec, fc)
	}
	out := make([]model.Bar, len(fetched))
	copy(out, fetched)
	for i := range out {
		if !ec.Spread {
			out[i].Spread = nil
		}
		if !ec.RealVolume {
			out[i].RealVolume = nil
		}
	}
	return out, nil
}

// Window keeps the bars with from < t <= to. dropped counts the rest.
func Window(bars []model.Bar, from, to time.Time) (in []model.Bar, dropped int) {
	lo, hi := from.UnixMilli(), to.UnixMilli()
	in = make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp <= lo || b.Timestamp > hi {
			dropped++
			continue
		}
		in = append(in, b)
	}
	return in, dropped
}

// Equal reports whether a and b hold the same bars with the same values.
func Equal(a, b []model.Bar) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !barEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func barEqual(x, y model.Bar) bool {
	return x.Timestamp == y.Timestamp &&
		sameFloat(x.Open, y.Open) &&
		sameFloat(x.High, y.High) &&
		sameFloat(x.Low, y.Low) &&
		sameFloat(x.Close, y.Close) &&
		x.Volume == y.Volume &&
		sameOpt(x.Spread, y.Spread) &&
		sameOpt(x.RealVolume, y.RealVolume)
}

// NaN compares equal to NaN so a stored gap value does not force a rewrite.
func sameFloat(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b) || a == b
}

func sameOpt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Bounds returns the first and last bar times. ok is false for an empty series.
func Bounds(bars []model.Bar) (first, last time.Time, ok bool) {
	if len(bars) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return bars[0].Time(), bars[len(bars)-1].Time(), true
}

// MergeResult is the outcome of one incremental refresh.
type MergeResult struct {
	Series      []model.Bar
	Fetched     int
	Added       int
	Duplicates  int
	OutOfWindow int
	Changed     bool // Series differs from what was on disk
	Skipped     bool // freshness guard short-circuited the fetch
}
