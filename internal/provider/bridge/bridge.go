// Package bridge is a QuoteSource that talks to a trading-terminal HTTP bridge.
//
// The bridge exposes the terminal's symbol table and rate history:
//
//	GET /symbol?name=EURUSD                                  200 listed, 404 not listed
//	GET /rates?symbol=EURUSD&timeframe=M1&to=<unix s>&count=N[&from=<unix s>]
//	    {"rates":[{"time":1700000000,"open":1.07,"high":...,"low":...,"close":...,
//	               "tick_volume":12,"spread":3,"real_volume":0}, ...]}
//
// Prices may arrive as numbers or decimal strings. Times are unix seconds.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
	"fx-data/internal/provider"
	"fx-data/internal/series"
)

// Config configures the bridge client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Source is the bridge QuoteSource.
type Source struct {
	client  *fasthttp.Client
	base    string
	timeout time.Duration
	log     *slog.Logger
}

var _ provider.QuoteSource = (*Source)(nil)

// New creates a bridge source. A nil client gets a default fasthttp.Client.
func New(cfg Config, client *fasthttp.Client, logger *slog.Logger) (*Source, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BRIDGE_URL not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if client == nil {
		client = &fasthttp.Client{
			Name:                "fx-data",
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:  client,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		log:     logger,
	}, nil
}

func (s *Source) Name() string { return "bridge" }

func (s *Source) Lookup(ctx context.Context, name string) (bool, error) {
	status, _, err := s.get(ctx, "/symbol", map[string]string{"name": name})
	if err != nil {
		return false, err
	}
	switch {
	case status == fasthttp.StatusOK:
		return true, nil
	case status == fasthttp.StatusNotFound:
		return false, nil
	default:
		return false, statusErr(status, nil)
	}
}

func (s *Source) FetchWindow(ctx context.Context, req provider.Request) ([]model.Bar, error) {
	q := map[string]string{
		"symbol":    req.Symbol,
		"timeframe": timeframe(req.Granularity),
		"to":        strconv.FormatInt(req.ToInclusive.Unix(), 10),
		"count":     strconv.Itoa(req.MaxBars),
	}
	if !req.FromExclusive.IsZero() {
		q["from"] = strconv.FormatInt(req.FromExclusive.Unix(), 10)
	}
	status, body, err := s.get(ctx, "/rates", q)
	if err != nil {
		return nil, err
	}
	switch {
	case status == fasthttp.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", req.Symbol, xerrors.ErrSymbolUnavailable)
	case status != fasthttp.StatusOK:
		return nil, statusErr(status, body)
	}

	bars, err := parseRates(body)
	if err != nil {
		return nil, fmt.Errorf("bridge: %s: %w", req.Symbol, err)
	}
	bars, _ = series.Normalize(bars)
	var lo int64 = -1 << 63
	if !req.FromExclusive.IsZero() {
		lo = req.FromExclusive.UnixMilli()
	}
	hi := req.ToInclusive.UnixMilli()
	out := bars[:0]
	for _, b := range bars {
		if b.Timestamp > lo && b.Timestamp <= hi {
			out = append(out, b)
		}
	}
	if req.MaxBars > 0 && len(out) > req.MaxBars {
		out = out[len(out)-req.MaxBars:]
	}
	return out, nil
}

func (s *Source) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Source) get(ctx context.Context, path string, query map[string]string) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.base + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	args := req.URI().QueryArgs()
	for k, v := range query {
		args.Set(k, v)
	}

	var err error
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < s.timeout {
		err = s.client.DoDeadline(req, resp, dl)
	} else {
		err = s.client.DoTimeout(req, resp, s.timeout)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("bridge %s: %v: %w", path, err, xerrors.ErrSourceUnavailable)
	}
	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}

func statusErr(status int, body []byte) error {
	msg := gjson.GetBytes(body, "error").String()
	if status == fasthttp.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("bridge: status %d %s: %w", status, msg, xerrors.ErrSourceUnavailable)
	}
	return fmt.Errorf("bridge: status %d %s", status, msg)
}

// parseRates decodes the "rates" array.
func parseRates(body []byte) ([]model.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON")
	}
	doc := gjson.ParseBytes(body)
	if e := doc.Get("error"); e.Exists() {
		return nil, fmt.Errorf("bridge error: %s", e.String())
	}
	rates := doc.Get("rates")
	if !rates.Exists() {
		return nil, errors.New(`missing "rates"`)
	}
	items := rates.Array()
	bars := make([]model.Bar, 0, len(items))
	for i, r := range items {
		var b model.Bar
		b.Timestamp = r.Get("time").Int() * 1000
		var err error
		if b.Open, err = price(r.Get("open")); err != nil {
			return nil, fmt.Errorf("rate %d open: %w", i, err)
		}
		if b.High, err = price(r.Get("high")); err != nil {
			return nil, fmt.Errorf("rate %d high: %w", i, err)
		}
		if b.Low, err = price(r.Get("low")); err != nil {
			return nil, fmt.Errorf("rate %d low: %w", i, err)
		}
		if b.Close, err = price(r.Get("close")); err != nil {
			return nil, fmt.Errorf("rate %d close: %w", i, err)
		}
		b.Volume = r.Get("tick_volume").Int()
		if v := r.Get("spread"); v.Exists() {
			b.Spread = model.Int64(v.Int())
		}
		if v := r.Get("real_volume"); v.Exists() {
			b.RealVolume = model.Int64(v.Int())
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// price reads a number or a decimal string. Missing is an error.
func price(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		d, err := decimal.NewFromString(v.Str)
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	default:
		return 0, fmt.Errorf("unexpected %s", v.Type)
	}
}

func timeframe(g model.Granularity) string {
	d := g.Duration()
	switch {
	case d <= 0:
		return "M1"
	case d%time.Hour == 0:
		return "H" + strconv.Itoa(int(d/time.Hour))
	default:
		return "M" + strconv.Itoa(int(d/time.Minute))
	}
}
