// Package stub is an in-memory QuoteSource for tests.
//
// A Source serves each symbol either from a full dataset (answering any window
// the way a real vendor would) or from a script of canned responses consumed
// in order. A script, when present, wins until it runs out.
package stub

import (
	"context"
	"sync"

	"fx-data/internal/model"
	"fx-data/internal/provider"
	"fx-data/internal/series"
)

// Response is one scripted FetchWindow result.
type Response struct {
	Bars []model.Bar
	Err  error
}

// Source is a scripted QuoteSource.
type Source struct {
	mu        sync.Mutex
	name      string
	data      map[string][]model.Bar
	scripts   map[string][]Response
	lookupErr map[string]error
	calls     []provider.Request
	lookups   []string
	closed    bool
}

var _ provider.QuoteSource = (*Source)(nil)

// New creates an empty source.
func New(name string) *Source {
	return &Source{
		name:      name,
		data:      make(map[string][]model.Bar),
		scripts:   make(map[string][]Response),
		lookupErr: make(map[string]error),
	}
}

// AddSymbol lists name and sets its dataset (sorted and de-duplicated on the way in).
func (s *Source) AddSymbol(name string, bars ...model.Bar) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	norm, _ := series.Normalize(bars)
	s.data[name] = norm
	return s
}

// Script lists name and queues responses for its next FetchWindow calls.
func (s *Source) Script(name string, rs ...Response) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[name]; !ok {
		s.data[name] = nil
	}
	s.scripts[name] = append(s.scripts[name], rs...)
	return s
}

// FailLookup makes Lookup(name) return err.
func (s *Source) FailLookup(name string, err error) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupErr[name] = err
	return s
}

func (s *Source) Name() string { return s.name }

func (s *Source) Lookup(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, name)
	if err := s.lookupErr[name]; err != nil {
		return false, err
	}
	_, ok := s.data[name]
	return ok, nil
}

func (s *Source) FetchWindow(ctx context.Context, req provider.Request) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	if q := s.scripts[req.Symbol]; len(q) > 0 {
		r := q[0]
		s.scripts[req.Symbol] = q[1:]
		return append([]model.Bar(nil), r.Bars...), r.Err
	}

	var lo int64 = -1 << 63
	if !req.FromExclusive.IsZero() {
		lo = req.FromExclusive.UnixMilli()
	}
	hi := req.ToInclusive.UnixMilli()
	var out []model.Bar
	for _, b := range s.data[req.Symbol] {
		if b.Timestamp > lo && b.Timestamp <= hi {
			out = append(out, b)
		}
	}
	if req.MaxBars > 0 && len(out) > req.MaxBars {
		out = out[len(out)-req.MaxBars:]
	}
	return append([]model.Bar(nil), out...), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Calls returns the FetchWindow requests seen so far.
func (s *Source) Calls() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Request(nil), s.calls...)
}

// Lookups returns the names passed to Lookup so far.
func (s *Source) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lookups...)
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
