package crawl

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fx-data/internal/metrics"
	"fx-data/internal/model"
	"fx-data/internal/slogx"
)

// Status of one symbol in a run.
type Status string

const (
	StatusOK        Status = "ok"
	StatusSkipped   Status = "skipped"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// JobResult is sent by workers for fan-in.
type JobResult struct {
	Symbol   string        `json:"symbol"`
	Category string        `json:"category"`
	Status   Status        `json:"status"`
	Stage    string        `json:"stage,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Fetched  int           `json:"fetched,omitempty"`
	Added    int           `json:"added,omitempty"`
	Bars     int           `json:"bars"`
	Duration time.Duration `json:"duration_ns"`
	Detail   any           `json:"detail,omitempty"`
}

// JobFunc processes one symbol. logger is the run's fan-in logger.
type JobFunc func(ctx context.Context, sym model.Symbol, logger *slog.Logger) JobResult

// Summary is the outcome of one run.
type Summary struct {
	Command  string         `json:"command"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Counts   map[Status]int `json:"counts"`
	Results  []JobResult    `json:"results"`
}

// Failed reports whether any symbol failed, was partial or was cancelled.
func (s Summary) Failed() bool {
	return s.Counts[StatusFailed]+s.Counts[StatusPartial]+s.Counts[StatusCancelled] > 0
}

// Runner runs a JobFunc over symbols on a bounded worker pool.
// At most one job per symbol runs at a time, across runs sharing the Runner.
type Runner struct {
	Workers   int
	Heartbeat time.Duration
	Metrics   *metrics.Metrics // optional

	locks keyedMutex
}

// NewRunner creates a Runner with workers (min 1) and a 30s heartbeat.
func NewRunner(workers int, m *metrics.Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{Workers: workers, Heartbeat: 30 * time.Second, Metrics: m}
}

// Run processes every symbol and returns the summary. Cancellation is checked
// between symbols; symbols not started when ctx is done are reported cancelled.
func (r *Runner) Run(ctx context.Context, command string, symbols []model.Symbol, job JobFunc) Summary {
	sum := Summary{Command: command, Started: time.Now().UTC(), Counts: make(map[Status]int)}

	logs := make(chan string, 2048)
	logger := slogx.NewChanLogger(logs).With("cmd", command)
	var logWg sync.WaitGroup
	logWg.Add(1)
	go func() {
		defer logWg.Done()
		runLogWriter(logs)
	}()

	results := make(chan JobResult, len(symbols))
	var mu sync.Mutex
	var resWg sync.WaitGroup
	resWg.Add(1)
	go func() {
		defer resWg.Done()
		runJobResultCollector(results, &mu, &sum, r.Metrics)
	}()

	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	var hbWg sync.WaitGroup
	hbWg.Add(1)
	go func() {
		defer hbWg.Done()
		runHeartbeat(hbCtx, r.Heartbeat, len(symbols), &mu, &sum, logger)
	}()

	g := new(errgroup.Group)
	g.SetLimit(r.Workers)
	for _, sym := range symbols {
		if ctx.Err() != nil {
			results <- JobResult{Symbol: sym.Name, Category: sym.Category, Status: StatusCancelled, Reason: ctx.Err().Error()}
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				results <- JobResult{Symbol: sym.Name, Category: sym.Category, Status: StatusCancelled, Reason: ctx.Err().Error()}
				return nil
			}
			unlock := r.locks.Lock(sym.Name)
			defer unlock()

			start := time.Now()
			res := job(ctx, sym, logger)
			res.Symbol, res.Category = sym.Name, sym.Category
			res.Duration = time.Since(start)
			if r.Metrics != nil {
				r.Metrics.SymbolDuration.WithLabelValues(command).Observe(res.Duration.Seconds())
			}
			logResult(logger, res)
			results <- res
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	resWg.Wait()
	stopHeartbeat()
	hbWg.Wait()

	sort.Slice(sum.Results, func(i, j int) bool {
		if sum.Results[i].Category != sum.Results[j].Category {
			return sum.Results[i].Category < sum.Results[j].Category
		}
		return sum.Results[i].Symbol < sum.Results[j].Symbol
	})
	sum.Finished = time.Now().UTC()
	logSummary(logger, sum)

	close(logs)
	logWg.Wait()
	return sum
}

func logResult(logger *slog.Logger, r JobResult) {
	switch r.Status {
	case StatusOK, StatusSkipped:
		logger.Info("symbol done", "symbol", r.Symbol, "status", r.Status, "bars", r.Bars, "added", r.Added, "reason", r.Reason, "took", r.Duration.Round(time.Millisecond))
	default:
		logger.Error("symbol failed", "symbol", r.Symbol, "status", r.Status, "stage", r.Stage, "reason", r.Reason)
	}
}

func logSummary(logger *slog.Logger, sum Summary) {
	var total int
	byCategory := make(map[string]int)
	var failed []JobResult
	for _, r := range sum.Results {
		total += r.Bars
		byCategory[r.Category]++
		if r.Status != StatusOK && r.Status != StatusSkipped {
			failed = append(failed, r)
		}
	}
	logger.Info("summary", "symbols", len(sum.Results), "ok", sum.Counts[StatusOK], "skipped", sum.Counts[StatusSkipped],
		"partial", sum.Counts[StatusPartial], "failed", sum.Counts[StatusFailed], "cancelled", sum.Counts[StatusCancelled],
		"total_bars", total, "took", sum.Finished.Sub(sum.Started).Round(time.Millisecond))
	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		logger.Info("summary category", "category", c, "symbols", byCategory[c])
	}
	if len(failed) > 0 {
		logger.Info("summary failed", "count", len(failed), "reasons", joinFailedReasons(failed))
	}
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
