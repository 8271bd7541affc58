package bridge

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
	"fx-data/internal/provider"
)

// newTestSource serves handler over an in-memory listener.
func newTestSource(t *testing.T, handler fasthttp.RequestHandler) *Source {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go fasthttp.Serve(ln, handler) //nolint:errcheck
	t.Cleanup(func() { ln.Close() })

	client := &fasthttp.Client{Dial: func(addr string) (net.Conn, error) { return ln.Dial() }}
	s, err := New(Config{BaseURL: "http://bridge.local/", Timeout: 5 * time.Second}, client, nil)
	require.NoError(t, err)
	return s
}

func TestLookup(t *testing.T) {
	s := newTestSource(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.QueryArgs().Peek("name")) {
		case "EURUSD":
			ctx.SetStatusCode(fasthttp.StatusOK)
		case "BROKEN":
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	ok, err := s.Lookup(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Lookup(context.Background(), "EURUSD.a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Lookup(context.Background(), "BROKEN")
	assert.ErrorIs(t, err, xerrors.ErrSourceUnavailable)
}

func TestFetchWindow(t *testing.T) {
	var gotQuery map[string]string
	s := newTestSource(t, func(ctx *fasthttp.RequestCtx) {
		gotQuery = map[string]string{}
		ctx.QueryArgs().VisitAll(func(k, v []byte) { gotQuery[string(k)] = string(v) })
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"rates":[
			{"time":1700000120,"open":"1.07010","high":"1.07050","low":"1.07000","close":"1.07040","tick_volume":31,"spread":2,"real_volume":0},
			{"time":1700000060,"open":1.0701,"high":1.0702,"low":1.0700,"close":1.0701,"tick_volume":12,"spread":3,"real_volume":0},
			{"time":1700000000,"open":1.0700,"high":1.0701,"low":1.0699,"close":1.0700,"tick_volume":9,"spread":3,"real_volume":0}
		]}`)
	})

	to := time.Unix(1700000120, 0)
	bars, err := s.FetchWindow(context.Background(), provider.Request{
		Symbol:        "EURUSD",
		Granularity:   model.Minute,
		FromExclusive: time.Unix(1700000000, 0),
		ToInclusive:   to,
		MaxBars:       100,
	})
	require.NoError(t, err)

	assert.Equal(t, "EURUSD", gotQuery["symbol"])
	assert.Equal(t, "M1", gotQuery["timeframe"])
	assert.Equal(t, strconv.FormatInt(to.Unix(), 10), gotQuery["to"])
	assert.Equal(t, "1700000000", gotQuery["from"])
	assert.Equal(t, "100", gotQuery["count"])

	require.Len(t, bars, 2, "bar at from is excluded")
	assert.Equal(t, int64(1700000060000), bars[0].Timestamp)
	assert.Equal(t, int64(1700000120000), bars[1].Timestamp)
	assert.Equal(t, 1.0705, bars[1].High)
	require.NotNil(t, bars[1].Spread)
	assert.Equal(t, int64(2), *bars[1].Spread)
}

func TestFetchWindowMaxBarsKeepsNewest(t *testing.T) {
	s := newTestSource(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"rates":[
			{"time":60,"open":1,"high":1,"low":1,"close":1,"tick_volume":1},
			{"time":120,"open":2,"high":2,"low":2,"close":2,"tick_volume":1},
			{"time":180,"open":3,"high":3,"low":3,"close":3,"tick_volume":1}
		]}`)
	})
	bars, err := s.FetchWindow(context.Background(), provider.Request{Symbol: "X", ToInclusive: time.Unix(180, 0), MaxBars: 2})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2.0, bars[0].Close)
	assert.Nil(t, bars[0].Spread)
}

func TestFetchWindowErrors(t *testing.T) {
	s := newTestSource(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.QueryArgs().Peek("symbol")) {
		case "GONE":
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		case "DOWN":
			ctx.SetStatusCode(fasthttp.StatusBadGateway)
		case "BAD":
			ctx.SetBodyString(`{"error":"terminal not connected"}`)
		default:
			ctx.SetBodyString(`{"rates":[{"time":60,"open":{},"high":1,"low":1,"close":1}]}`)
		}
	})
	fetch := func(sym string) error {
		_, err := s.FetchWindow(context.Background(), provider.Request{Symbol: sym, ToInclusive: time.Unix(600, 0), MaxBars: 10})
		return err
	}

	assert.ErrorIs(t, fetch("GONE"), xerrors.ErrSymbolUnavailable)
	assert.ErrorIs(t, fetch("DOWN"), xerrors.ErrSourceUnavailable)
	assert.ErrorContains(t, fetch("BAD"), "terminal not connected")
	assert.Error(t, fetch("ODD"))
}

func TestTimeframe(t *testing.T) {
	assert.Equal(t, "M1", timeframe(model.Minute))
	assert.Equal(t, "M15", timeframe(model.Granularity(15*time.Minute)))
	assert.Equal(t, "H1", timeframe(model.Granularity(time.Hour)))
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)
}
