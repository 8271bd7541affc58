package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
	"fx-data/internal/provider"
	"fx-data/internal/provider/stub"
	"fx-data/internal/series"
)

var (
	now    = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	eurusd = model.Symbol{Name: "EURUSD", Aliases: []string{"EURUSD.a"}, Category: model.CategoryFX}
)

func clock() time.Time { return now }

func bars(from time.Time, n int, close float64) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		out[i] = model.Bar{
			Timestamp: from.Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:      close, High: close, Low: close, Close: close, Volume: 1,
		}
	}
	return out
}

func session(src provider.QuoteSource) *provider.Session {
	return provider.NewSession(src, provider.RetryConfig{MaxRetries: 1, Initial: time.Millisecond, MaxInterval: time.Millisecond}, nil)
}

func TestRunStopsOnEmptyResponse(t *testing.T) {
	recent := bars(now.Add(-99*time.Minute), 100, 1)
	older := bars(now.Add(-199*time.Minute), 100, 1)
	src := stub.New("stub").Script("EURUSD",
		stub.Response{Bars: recent},
		stub.Response{Bars: older},
		stub.Response{},
	)
	b := New(Config{MaxBarsPerRequest: 100}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	require.NoError(t, err)

	assert.Len(t, res.Bars, 200)
	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, StopExhausted, res.Stop)
	assert.NoError(t, series.Validate(res.Bars))

	calls := src.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, now, calls[0].ToInclusive)
	assert.Equal(t, now.Add(-100*time.Minute), calls[1].ToInclusive, "frontier moves to earliest minus one minute")
	assert.Equal(t, 100, calls[0].MaxBars)
	assert.True(t, calls[0].FromExclusive.IsZero())
}

func TestRunStitchesOverlappingChunks(t *testing.T) {
	recent := bars(now.Add(-99*time.Minute), 100, 1)
	older := bars(now.Add(-199*time.Minute), 101, 2) // last bar overlaps recent[0]
	src := stub.New("stub").Script("EURUSD",
		stub.Response{Bars: recent},
		stub.Response{Bars: older},
		stub.Response{},
	)
	b := New(Config{MaxBarsPerRequest: 101}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	require.NoError(t, err)

	require.Len(t, res.Bars, 200, "one bar overlap yields 200 distinct bars")
	assert.NoError(t, series.Validate(res.Bars))
	overlap := res.Bars[100]
	assert.Equal(t, now.Add(-99*time.Minute).UnixMilli(), overlap.Timestamp)
	assert.Equal(t, 2.0, overlap.Close, "most recently fetched bar wins")
}

func TestRunWalksDatasetUntilDry(t *testing.T) {
	src := stub.New("stub").AddSymbol("EURUSD", bars(now.Add(-249*time.Minute), 250, 1)...)
	b := New(Config{MaxBarsPerRequest: 100}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	require.NoError(t, err)
	assert.Len(t, res.Bars, 250)
	assert.Equal(t, 4, res.Requests)
	assert.Equal(t, StopExhausted, res.Stop)
}

func TestRunRespectsMaxAttempts(t *testing.T) {
	src := stub.New("stub").AddSymbol("EURUSD", bars(now.Add(-999*time.Minute), 1000, 1)...)
	b := New(Config{MaxBarsPerRequest: 100, MaxAttempts: 3}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	require.NoError(t, err)
	assert.Len(t, res.Bars, 300)
	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, StopAttempts, res.Stop)
}

func TestRunStopsWhenStalled(t *testing.T) {
	same := bars(now.Add(-9*time.Minute), 10, 1)
	src := stub.New("stub").Script("EURUSD",
		stub.Response{Bars: same},
		stub.Response{Bars: same},
		stub.Response{Bars: same},
		stub.Response{Bars: same},
	)
	b := New(Config{MaxBarsPerRequest: 10}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	require.NoError(t, err)
	assert.Len(t, res.Bars, 10)
	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, StopStalled, res.Stop)
}

func TestRunReturnsPartialOnFailure(t *testing.T) {
	boom := errors.New("terminal disconnected")
	src := stub.New("stub").Script("EURUSD",
		stub.Response{Bars: bars(now.Add(-99*time.Minute), 100, 1)},
		stub.Response{Err: boom},
	)
	b := New(Config{MaxBarsPerRequest: 100}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, res.Partial)
	assert.Len(t, res.Bars, 100)
	assert.True(t, IsPartial(res, err))
}

func TestRunPartialWhenSymbolVanishesMidWalk(t *testing.T) {
	src := stub.New("stub").Script("EURUSD",
		stub.Response{Bars: bars(now.Add(-99*time.Minute), 100, 1)},
		stub.Response{Err: xerrors.ErrSymbolUnavailable},
	)
	b := New(Config{MaxBarsPerRequest: 100}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	assert.ErrorIs(t, err, xerrors.ErrSymbolUnavailable)
	assert.Len(t, res.Bars, 100)
	assert.True(t, IsPartial(res, err), "bars already stitched are kept")
}

func TestRunFailsWithoutData(t *testing.T) {
	boom := errors.New("terminal disconnected")
	src := stub.New("stub").Script("EURUSD", stub.Response{Err: boom})
	b := New(Config{}, clock, nil)

	res, err := b.Run(context.Background(), session(src), eurusd)
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Partial)
	assert.Empty(t, res.Bars)
}

func TestRunUnavailableSymbol(t *testing.T) {
	src := stub.New("stub")
	b := New(Config{}, clock, nil)

	_, err := b.Run(context.Background(), session(src), eurusd)
	assert.ErrorIs(t, err, xerrors.ErrSymbolUnavailable)
	assert.Empty(t, src.Calls())
}

func TestRunWithFloor(t *testing.T) {
	data := bars(now.Add(-499*time.Minute), 500, 1)
	floor := time.UnixMilli(data[300].Timestamp)
	src := stub.New("stub").AddSymbol("EURUSD", data...)
	b := New(Config{MaxBarsPerRequest: 100}, clock, nil)

	res, err := b.RunWith(context.Background(), session(src), eurusd, Options{Floor: floor})
	require.NoError(t, err)
	assert.Len(t, res.Bars, 199)
	assert.Equal(t, 2, res.Requests)
	assert.Equal(t, StopFloor, res.Stop)
	assert.Greater(t, res.Bars[0].Timestamp, floor.UnixMilli())
	for _, c := range src.Calls() {
		assert.Equal(t, floor, c.FromExclusive)
	}
}

func TestRunCancelled(t *testing.T) {
	src := stub.New("stub").AddSymbol("EURUSD", bars(now.Add(-99*time.Minute), 100, 1)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New(Config{}, clock, nil)

	_, err := b.Run(ctx, session(src), eurusd)
	assert.ErrorIs(t, err, context.Canceled)
}
