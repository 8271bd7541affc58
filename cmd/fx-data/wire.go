//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"fx-data/internal/app"
)

// InitializeApp builds App via Wire.
// Caller must call the cleanup when done; it closes the quote source.
func InitializeApp() (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideLogger,
		app.ProvideSymbols,
		app.ProvideStore,
		app.ProvideQuoteSource,
		app.ProvideMetrics,
		app.ProvideSession,
		app.ProvideBackfiller,
		app.ProvideMerger,
		app.ProvideWriter,
		app.ProvideAuditor,
		app.ProvidePipeline,
		app.ProvideRunner,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
