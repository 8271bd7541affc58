// Package polygon is a QuoteSource backed by the Polygon REST aggregates API.
// FX pairs are listed as "C:EURUSD", indices as "I:DJI"; put those in a
// symbol's aliases to reach them.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
	"fx-data/internal/provider"
)

const (
	// Max 50k base aggregates per page
	maxLimit = 50000

	// Lower bound used when a request has no FromExclusive.
	historyStart = "2000-01-01T00:00:00Z"
)

// Source fetches minute aggregates from Polygon.
type Source struct {
	client  *polygonrest.Client
	limiter *rateLimiter
	log     *slog.Logger
}

var _ provider.QuoteSource = (*Source)(nil)

// New creates a Polygon source. timeout bounds each HTTP request;
// minInterval spaces calls (FreeTierInterval for a free key, 0 for none).
func New(apiKey string, timeout, minInterval time.Duration, logger *slog.Logger) (*Source, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("POLYGON_API_KEY not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:  polygonrest.NewWithClient(apiKey, newHTTPClient(timeout)),
		limiter: newRateLimiter(minInterval, logger),
		log:     logger,
	}, nil
}

func (s *Source) Name() string { return "polygon" }

// Lookup checks the reference ticker endpoint. Unknown tickers are (false, nil).
func (s *Source) Lookup(ctx context.Context, name string) (bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}
	_, err := s.client.GetTickerDetails(ctx, &models.GetTickerDetailsParams{Ticker: name})
	if err == nil {
		return true, nil
	}
	if statusOf(err) == http.StatusNotFound {
		return false, nil
	}
	return false, classify(err)
}

// FetchWindow pages aggregates newest first until MaxBars are collected, then returns them ascending.
func (s *Source) FetchWindow(ctx context.Context, req provider.Request) ([]model.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	from := req.FromExclusive
	if from.IsZero() {
		from, _ = time.Parse(time.RFC3339, historyStart)
	}
	mult := int(req.Granularity.Duration() / time.Minute)
	if mult < 1 {
		mult = 1
	}
	limit := req.MaxBars
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	params := (&models.ListAggsParams{
		Ticker:     req.Symbol,
		Multiplier: mult,
		Timespan:   models.Minute,
		From:       models.Millis(from),
		To:         models.Millis(req.ToInclusive),
	}).WithOrder(models.Desc).WithLimit(limit).WithAdjusted(true)

	lo, hi := req.FromExclusive.UnixMilli(), req.ToInclusive.UnixMilli()
	desc := make([]model.Bar, 0, limit)
	iter := s.client.ListAggs(ctx, params)
	for iter.Next() {
		b := aggToBar(iter.Item())
		if (!req.FromExclusive.IsZero() && b.Timestamp <= lo) || b.Timestamp > hi {
			continue
		}
		desc = append(desc, b)
		if req.MaxBars > 0 && len(desc) >= req.MaxBars {
			break
		}
	}
	if err := iter.Err(); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", req.Symbol, xerrors.ErrSymbolUnavailable)
		}
		return nil, classify(err)
	}

	out := make([]model.Bar, len(desc))
	for i, b := range desc {
		out[len(desc)-1-i] = b
	}
	return out, nil
}

func (s *Source) Close() error { return nil }

// aggToBar converts a Polygon aggregate. Volume is fractional for FX; it is truncated.
func aggToBar(a models.Agg) model.Bar {
	return model.Bar{
		Timestamp: time.Time(a.Timestamp).UnixMilli(),
		Open:      a.Open,
		High:      a.High,
		Low:       a.Low,
		Close:     a.Close,
		Volume:    int64(a.Volume),
	}
}

func statusOf(err error) int {
	var er *models.ErrorResponse
	if errors.As(err, &er) {
		return er.StatusCode
	}
	return 0
}

// classify maps rate limits, 5xx and transport errors to ErrSourceUnavailable.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch code := statusOf(err); {
	case code == 0, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("polygon: %v: %w", err, xerrors.ErrSourceUnavailable)
	default:
		return fmt.Errorf("polygon: status %d: %w", code, err)
	}
}
