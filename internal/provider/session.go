package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
)

// RetryConfig bounds the backoff applied to transient source errors.
type RetryConfig struct {
	MaxRetries  int
	Initial     time.Duration
	MaxInterval time.Duration
}

// DefaultRetry is used when a zero RetryConfig is passed to NewSession.
var DefaultRetry = RetryConfig{MaxRetries: 3, Initial: time.Second, MaxInterval: 15 * time.Second}

// Resolution is the result of resolving a symbol against the source.
type Resolution struct {
	Symbol model.Symbol
	Name   string // alias the source accepted
}

// Session is the one exclusive handle on a QuoteSource for a run.
// Every source call goes through its mutex, so workers may share it.
type Session struct {
	mu       sync.Mutex
	src      QuoteSource
	retry    RetryConfig
	resolved map[string]Resolution
	log      *slog.Logger

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(op string, err error, wait time.Duration)
}

// NewSession wraps src. logger nil → slog.Default().
func NewSession(src QuoteSource, retry RetryConfig, logger *slog.Logger) *Session {
	if retry == (RetryConfig{}) {
		retry = DefaultRetry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{src: src, retry: retry, resolved: make(map[string]Resolution), log: logger}
}

// Name returns the source name.
func (s *Session) Name() string { return s.src.Name() }

// Close closes the underlying source.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Close()
}

// Resolve finds the first alias of sym the source lists. Results are cached for the session.
// No alias listed → ErrSymbolUnavailable.
func (s *Session) Resolve(ctx context.Context, sym model.Symbol) (Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.resolved[sym.Name]; ok {
		return r, nil
	}
	tried := sym.Candidates()
	for _, name := range tried {
		var ok bool
		err := s.withRetry(ctx, "lookup", func() error {
			var err error
			ok, err = s.src.Lookup(ctx, name)
			return err
		})
		if err != nil {
			return Resolution{}, fmt.Errorf("lookup %s: %w", name, err)
		}
		if ok {
			r := Resolution{Symbol: sym, Name: name}
			s.resolved[sym.Name] = r
			if name != sym.Name {
				s.log.Info("symbol resolved via alias", "symbol", sym.Name, "alias", name)
			}
			return r, nil
		}
	}
	return Resolution{}, fmt.Errorf("%s not listed by %s (tried %v): %w", sym.Name, s.src.Name(), tried, xerrors.ErrSymbolUnavailable)
}

// Fetch requests one window for a resolved symbol. Transient errors are retried.
func (s *Session) Fetch(ctx context.Context, res Resolution, req Request) ([]model.Bar, error) {
	req.Symbol = res.Name
	if req.Granularity == 0 {
		req.Granularity = model.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var bars []model.Bar
	err := s.withRetry(ctx, "fetch", func() error {
		var err error
		bars, err = s.src.FetchWindow(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("window fetched", "symbol", res.Symbol.Name, "alias", res.Name,
		"to", req.ToInclusive.Format(time.RFC3339), "max", req.MaxBars, "bars", len(bars))
	return bars, nil
}

func (s *Session) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.Initial
	bo.MaxInterval = s.retry.MaxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.retry.MaxRetries)), ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !xerrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		s.log.Warn("source call failed, retrying", "op", op, "source", s.src.Name(), "wait", wait, "error", err)
		if s.OnRetry != nil {
			s.OnRetry(op, err, wait)
		}
	})
}
