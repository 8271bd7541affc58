package app

import (
	"context"
	"log/slog"

	"fx-data/internal/crawl"
	"fx-data/internal/metrics"
	"fx-data/internal/model"
	"fx-data/internal/store"
)

// RunFlow runs one command over symbols: warn about leftovers, run, then
// write the run report, the optional JSON summary and the metrics textfile.
func RunFlow(ctx context.Context, cfg *Config, st *store.FileStore, runner *crawl.Runner, m *metrics.Metrics,
	command string, symbols []model.Symbol, job crawl.JobFunc) crawl.Summary {
	if left, err := st.Leftovers(); err != nil {
		slog.Warn("scan leftovers", "error", err)
	} else if len(left) > 0 {
		slog.Warn("leftover files from an interrupted run", "count", len(left), "files", left)
	}

	slog.Info("run start", "cmd", command, "symbols", len(symbols), "workers", runner.Workers,
		"dir", st.Dir(), "format", st.Format())
	sum := runner.Run(ctx, command, symbols, job)

	if err := crawl.WriteRunReport(cfg.ReportDir(), sum); err != nil {
		slog.Error("write run report", "error", err)
	}
	if err := crawl.WriteSummary(cfg.ReportPath, sum); err != nil {
		slog.Error("write summary", "path", cfg.ReportPath, "error", err)
	}
	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		slog.Error("write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
	}
	return sum
}
