package provider

import (
	"context"
	"time"

	"fx-data/internal/model"
)

// Request asks a source for one bounded window of bars.
type Request struct {
	Symbol        string // name as the source knows it (a resolved alias)
	Granularity   model.Granularity
	FromExclusive time.Time // zero: no lower bound
	ToInclusive   time.Time
	MaxBars       int
}

// QuoteSource is the abstraction over a read-only market data vendor.
//
// FetchWindow returns at most req.MaxBars bars with FromExclusive < t <= ToInclusive,
// the most recent ones when more exist, in ascending order. No data is an empty
// slice, not an error. Errors wrap ErrSymbolUnavailable or ErrSourceUnavailable
// when they are one of those.
type QuoteSource interface {
	Name() string
	Lookup(ctx context.Context, name string) (bool, error)
	FetchWindow(ctx context.Context, req Request) ([]model.Bar, error)
	Close() error
}
