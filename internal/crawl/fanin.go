package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"fx-data/internal/metrics"
)

func runLogWriter(lines <-chan string) {
	for s := range lines {
		fmt.Fprintln(os.Stderr, s)
	}
}

func runJobResultCollector(results <-chan JobResult, mu *sync.Mutex, sum *Summary, m *metrics.Metrics) {
	for r := range results {
		mu.Lock()
		sum.Counts[r.Status]++
		sum.Results = append(sum.Results, r)
		mu.Unlock()
		if m == nil {
			continue
		}
		m.SymbolsTotal.WithLabelValues(sum.Command, string(r.Status)).Inc()
		if r.Fetched > 0 {
			m.BarsFetched.WithLabelValues(r.Symbol).Add(float64(r.Fetched))
		}
		if r.Added > 0 {
			m.BarsAdded.WithLabelValues(r.Symbol).Add(float64(r.Added))
		}
		if r.Bars > 0 {
			m.BarsStored.WithLabelValues(r.Symbol).Set(float64(r.Bars))
		}
		if r.Status == StatusOK {
			m.LastSuccess.WithLabelValues(r.Symbol).SetToCurrentTime()
		}
	}
}

func runHeartbeat(ctx context.Context, interval time.Duration, total int, mu *sync.Mutex, sum *Summary, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mu.Lock()
			done := len(sum.Results)
			ok, failed := sum.Counts[StatusOK]+sum.Counts[StatusSkipped], sum.Counts[StatusFailed]+sum.Counts[StatusPartial]
			var bars int
			for _, r := range sum.Results {
				bars += r.Bars
			}
			mu.Unlock()
			logger.Info("heartbeat", "done", done, "total", total, "ok", ok, "failed", failed, "bars", bars)
		}
	}
}
