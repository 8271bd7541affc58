package audit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
	"fx-data/internal/store"
)

// Wednesday
var wed = time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)

func run(start time.Time, n int) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		out[i] = model.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:      1.1000, High: 1.1010, Low: 1.0990, Close: 1.1005, Volume: 10,
		}
	}
	return out
}

func scanner(cfg Config) *Auditor {
	return New(cfg, func() time.Time { return wed.Add(30 * 24 * time.Hour) }, nil)
}

func TestCleanSeries(t *testing.T) {
	rep := scanner(Config{}).Scan(run(wed, 500))

	assert.Equal(t, 500, rep.Rows)
	assert.True(t, rep.Structural())
	assert.Zero(t, rep.GapCount)
	assert.Zero(t, rep.InvalidOHLC)
	assert.Zero(t, rep.Spikes)
	assert.Equal(t, wed, rep.First)
	assert.Equal(t, wed.Add(499*time.Minute), rep.Last)
	assert.InDelta(t, 0.002, rep.MedianRange, 0.002*0.02)
	assert.Equal(t, 1.0990, rep.PriceLow)
	assert.Equal(t, 1.1010, rep.PriceHigh)
}

func TestEmptySeries(t *testing.T) {
	rep := scanner(Config{}).Scan(nil)
	assert.Zero(t, rep.Rows)
	assert.True(t, rep.Structural())
	assert.Zero(t, rep.PriceLow)
}

func TestThreeHourHoleIsOneGap(t *testing.T) {
	bars := append(run(wed, 60), run(wed.Add(59*time.Minute+3*time.Hour), 60)...)

	rep := scanner(Config{GapThreshold: 2 * time.Hour}).Scan(bars)
	require.Equal(t, 1, rep.GapCount)
	require.Len(t, rep.Gaps, 1)
	assert.Equal(t, 3*time.Hour, rep.Gaps[0].Duration)
	assert.Equal(t, wed.Add(59*time.Minute), rep.Gaps[0].After)
}

func TestWeekendHolesExempt(t *testing.T) {
	fri := time.Date(2024, 6, 7, 20, 0, 0, 0, time.UTC)
	sun := time.Date(2024, 6, 9, 21, 0, 0, 0, time.UTC)
	// trade around the clock Sunday evening to Friday evening, then close again
	week := run(sun, int(fri.Add(7*24*time.Hour).Sub(sun)/time.Minute))
	nextSun := sun.Add(7 * 24 * time.Hour)

	var bars []model.Bar
	bars = append(bars, run(fri, 60)...)
	bars = append(bars, week...)
	bars = append(bars, run(nextSun, 60)...)

	exempt := scanner(Config{MarketClosed: true}).Scan(bars)
	assert.Zero(t, exempt.GapCount)
	assert.Equal(t, 2, exempt.ExemptGaps, "two weekends")

	strict := scanner(Config{}).Scan(bars)
	assert.Equal(t, 2, strict.GapCount)
	assert.Zero(t, strict.ExemptGaps)
}

func TestLongGapNotExemptEvenOnWeekend(t *testing.T) {
	fri := time.Date(2024, 6, 7, 20, 0, 0, 0, time.UTC)
	bars := append(run(fri, 10), run(fri.Add(80*time.Hour), 10)...)

	rep := scanner(Config{MarketClosed: true}).Scan(bars)
	assert.Equal(t, 1, rep.GapCount)
}

func TestHolidayGapExempt(t *testing.T) {
	eve := time.Date(2024, 12, 24, 21, 0, 0, 0, time.UTC) // Tuesday
	bars := append(run(eve, 10), run(time.Date(2024, 12, 26, 0, 0, 0, 0, time.UTC), 10)...)

	rep := scanner(Config{MarketClosed: true}).Scan(bars)
	assert.Zero(t, rep.GapCount)
	assert.Equal(t, 1, rep.ExemptGaps)
}

func TestGapBeforeHolidayCounted(t *testing.T) {
	mon := time.Date(2024, 12, 23, 22, 0, 0, 0, time.UTC)
	bars := append(run(mon, 1), run(time.Date(2024, 12, 24, 1, 0, 0, 0, time.UTC), 10)...)

	rep := scanner(Config{MarketClosed: true}).Scan(bars)
	assert.Equal(t, 1, rep.GapCount)
	assert.Zero(t, rep.ExemptGaps)
}

func TestDuplicatesAndOutOfOrder(t *testing.T) {
	bars := run(wed, 10)
	bars[5].Timestamp = bars[4].Timestamp // duplicate
	bars[8], bars[9] = bars[9], bars[8]   // swap

	rep := scanner(Config{}).Scan(bars)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, 1, rep.OutOfOrder)
	assert.False(t, rep.Structural())
}

func TestValueAnomalies(t *testing.T) {
	bars := run(wed, 100)
	bars[1].High = 1.0 // high < low, open/close above high
	bars[2].Low = 0    // non-positive
	bars[3].Close = math.NaN()
	bars[4].Volume = -1
	bars[5].Timestamp += 1500 // off minute
	bars[6].High = 1.2000     // range 0.101, ~50x the median
	bars[99].Timestamp = wed.Add(31 * 24 * time.Hour).UnixMilli()

	rep := scanner(Config{}).Scan(bars)
	assert.Equal(t, 1, rep.InvalidOHLC)
	assert.Equal(t, 1, rep.NonPositive)
	assert.Equal(t, 1, rep.NaNValues)
	assert.Equal(t, 1, rep.NegativeVolume)
	assert.Equal(t, 1, rep.OffMinute)
	assert.Equal(t, 1, rep.Future)
	assert.GreaterOrEqual(t, rep.Spikes, 1)
	assert.Equal(t, 1.2, rep.PriceHigh)
}

func TestAuditReadsStore(t *testing.T) {
	fs := store.New(t.TempDir(), store.CSVCodec{}, nil)
	sym := model.Symbol{Name: "XAUUSD", Category: model.CategoryIndices}
	a := scanner(Config{})

	_, err := a.Audit(sym, fs)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	tmp, err := fs.WriteTemp(sym, run(wed, 30))
	require.NoError(t, err)
	require.NoError(t, fs.Replace(tmp, fs.Path(sym)))

	rep, err := a.Audit(sym, fs)
	require.NoError(t, err)
	assert.Equal(t, 30, rep.Rows)
	assert.Equal(t, "XAUUSD", rep.Symbol)
	assert.Positive(t, rep.SizeBytes)
	assert.Contains(t, rep.Summary(), "30 rows")
}

func TestCalendar(t *testing.T) {
	c := Calendar{Holidays: DefaultHolidays}
	sat := time.Date(2024, 6, 8, 2, 0, 0, 0, time.UTC)
	assert.True(t, c.Closed(sat, 40*time.Hour))
	assert.False(t, c.Closed(wed, 3*time.Hour))
	assert.True(t, c.Closed(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 30*time.Hour))
	assert.False(t, c.Closed(time.Date(2024, 12, 23, 22, 0, 0, 0, time.UTC), 3*time.Hour), "ends on a holiday, starts before it")
}
