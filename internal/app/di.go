package app

import (
	"fmt"
	"log/slog"

	"fx-data/internal/audit"
	"fx-data/internal/backfill"
	"fx-data/internal/crawl"
	"fx-data/internal/merge"
	"fx-data/internal/metrics"
	"fx-data/internal/model"
	"fx-data/internal/provider"
	"fx-data/internal/slogx"
	"fx-data/internal/store"
	"fx-data/internal/writer"
)

// ProvideConfig loads config from environment (for Wire).
func ProvideConfig() (*Config, error) {
	return LoadConfig()
}

// ProvideLogger builds the logger from LOG_LEVEL/LOG_FORMAT and installs it as slog default.
func ProvideLogger(cfg *Config) *slog.Logger {
	l := slogx.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(l)
	return l
}

// ProvideSymbols loads the tracked symbols (for Wire).
func ProvideSymbols(cfg *Config) ([]model.Symbol, error) {
	return LoadSymbols(cfg.SymbolsFile)
}

// ProvideStore creates the FileStore for DATA_DIR and SAVE_FORMAT (for Wire).
// Returns error if SaveFormat is not supported.
func ProvideStore(cfg *Config, logger *slog.Logger) (*store.FileStore, error) {
	codec, mirror := store.NewCodecs(cfg.SaveFormat)
	if codec == nil {
		return nil, fmt.Errorf("unsupported SAVE_FORMAT %q (use: parquet, csv, json, both)", cfg.SaveFormat)
	}
	return store.New(cfg.DataDir, codec, logger.With("component", "store")).WithMirror(mirror), nil
}

// ProvideQuoteSource creates the configured QuoteSource (for Wire).
func ProvideQuoteSource(cfg *Config, logger *slog.Logger) (provider.QuoteSource, error) {
	return CreateQuoteSource(cfg, logger.With("component", "source"))
}

// ProvideMetrics creates the run metrics (for Wire).
func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideSession wraps src in a retrying session. The cleanup closes the source.
func ProvideSession(cfg *Config, src provider.QuoteSource, m *metrics.Metrics, logger *slog.Logger) (*provider.Session, func()) {
	s := provider.NewSession(src, provider.RetryConfig{
		MaxRetries:  cfg.RetryMax,
		Initial:     cfg.RetryInitial,
		MaxInterval: cfg.RetryMaxInterval,
	}, logger.With("component", "session"))
	s.OnRetry = m.Retry
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("close source", "error", err)
		}
	}
}

// ProvideBackfiller creates the chunked backfiller (for Wire).
func ProvideBackfiller(cfg *Config, logger *slog.Logger) *backfill.Backfiller {
	return backfill.New(backfill.Config{
		MaxBarsPerRequest: cfg.MaxBarsPerRequest,
		MaxAttempts:       cfg.MaxAttempts,
		Policy:            cfg.ConflictPolicy,
		Granularity:       model.Minute,
	}, nil, logger.With("component", "backfill"))
}

// ProvideMerger creates the incremental merger (for Wire).
func ProvideMerger(cfg *Config, bf *backfill.Backfiller, logger *slog.Logger) *merge.Merger {
	return merge.New(merge.Config{
		Lookback:          cfg.Lookback(),
		StaleAfter:        cfg.StaleAfter,
		FutureTolerance:   cfg.FutureTolerance,
		NoFutureTolerance: cfg.FutureTolerance == 0,
		MaxBarsPerRequest: cfg.MaxBarsPerRequest,
		Policy:            cfg.ConflictPolicy,
		Granularity:       model.Minute,
	}, bf, nil, logger.With("component", "merge"))
}

// ProvideWriter creates the durable writer over the store (for Wire).
func ProvideWriter(st *store.FileStore, logger *slog.Logger) *writer.Writer {
	return writer.New(st, logger.With("component", "writer"))
}

// ProvideAuditor creates an auditor with the configured gap threshold (for Wire).
func ProvideAuditor(cfg *Config, logger *slog.Logger) *audit.Auditor {
	return NewAuditor(cfg, 0, false, logger)
}

// ProvidePipeline assembles the per-symbol flows (for Wire).
func ProvidePipeline(sess *provider.Session, st *store.FileStore, w *writer.Writer, bf *backfill.Backfiller,
	mg *merge.Merger, au *audit.Auditor, m *metrics.Metrics) *crawl.Pipeline {
	return &crawl.Pipeline{
		Session:    sess,
		Store:      st,
		Writer:     w,
		Backfiller: bf,
		Merger:     mg,
		Auditor:    au,
		Metrics:    m,
	}
}

// ProvideRunner creates the worker pool runner (for Wire).
func ProvideRunner(cfg *Config, m *metrics.Metrics) *crawl.Runner {
	return crawl.NewRunner(cfg.Workers, m)
}
