package crawl

import (
	"context"
	"log/slog"

	"fx-data/internal/audit"
	"fx-data/internal/backfill"
	xerrors "fx-data/internal/errors"
	"fx-data/internal/merge"
	"fx-data/internal/metrics"
	"fx-data/internal/model"
	"fx-data/internal/series"
	"fx-data/internal/writer"
)

// Pipeline holds the per-symbol flows. Each method returns a JobFunc for Runner.Run.
type Pipeline struct {
	Session    backfill.Session
	Store      audit.Reader
	Writer     *writer.Writer
	Backfiller *backfill.Backfiller
	Merger     *merge.Merger
	Auditor    *audit.Auditor
	Metrics    *metrics.Metrics // optional
}

// Backfill populates each symbol's history and merges it into what is stored.
// A walk interrupted after some chunks is still written and reported partial.
func (p *Pipeline) Backfill() JobFunc {
	return func(ctx context.Context, sym model.Symbol, logger *slog.Logger) JobResult {
		if err := p.Writer.Recover(sym); err != nil {
			return failed(xerrors.StageWrite, err)
		}
		res, err := p.Backfiller.Run(ctx, p.Session, sym)
		partial := backfill.IsPartial(res, err)
		if err != nil && !partial {
			return failed(fetchStage(err), err)
		}

		existing, rerr := p.readExisting(sym)
		if rerr != nil {
			return failed(xerrors.StageRead, rerr)
		}
		conformed, cerr := series.Conform(existing, res.Bars)
		if cerr != nil {
			return failed(xerrors.StageMerge, cerr)
		}
		merged, st := series.Merge(existing, conformed, p.Backfiller.Config().Policy)
		if verr := series.Validate(merged); verr != nil {
			return failed(xerrors.StageMerge, verr)
		}

		out := JobResult{Status: StatusOK, Fetched: len(res.Bars), Added: st.Added, Bars: len(merged), Detail: res.Stop}
		if len(existing) > 0 && series.Equal(existing, merged) {
			out.Status, out.Reason = StatusSkipped, "unchanged"
			return out
		}
		if len(merged) == 0 {
			out.Status, out.Stage, out.Reason = StatusFailed, string(xerrors.StageFetch), xerrors.ErrNoData.Error()
			return out
		}
		if _, werr := p.Writer.Write(context.WithoutCancel(ctx), sym, merged); werr != nil {
			return failed(xerrors.StageWrite, werr)
		}
		if partial {
			out.Status, out.Stage, out.Reason = StatusPartial, string(xerrors.StageFetch), err.Error()
			logger.Warn("partial backfill written", "symbol", sym.Name, "bars", len(merged), "error", err)
		}
		return out
	}
}

// Update refreshes each symbol with its recent window. A missing series is
// treated as empty; an unchanged series is not rewritten.
func (p *Pipeline) Update(opts merge.Options) JobFunc {
	return func(ctx context.Context, sym model.Symbol, logger *slog.Logger) JobResult {
		if err := p.Writer.Recover(sym); err != nil {
			return failed(xerrors.StageWrite, err)
		}
		existing, err := p.readExisting(sym)
		if err != nil {
			return failed(xerrors.StageRead, err)
		}
		r, err := p.Merger.Merge(ctx, p.Session, sym, existing, opts)
		if err != nil {
			stage := xerrors.StageOf(err)
			if stage == "" {
				stage = xerrors.StageMerge
			}
			return failed(stage, err)
		}
		out := JobResult{Status: StatusOK, Fetched: r.Fetched, Added: r.Added, Bars: len(r.Series)}
		switch {
		case r.Skipped:
			out.Status, out.Reason = StatusSkipped, "fresh"
			return out
		case !r.Changed:
			out.Status, out.Reason = StatusSkipped, "unchanged"
			return out
		case len(r.Series) == 0:
			out.Status, out.Stage, out.Reason = StatusFailed, string(xerrors.StageFetch), xerrors.ErrNoData.Error()
			return out
		}
		if _, err := p.Writer.Write(context.WithoutCancel(ctx), sym, r.Series); err != nil {
			return failed(xerrors.StageWrite, err)
		}
		return out
	}
}

// Audit scans each stored series. Duplicates and out-of-order rows fail the
// symbol; gaps and value anomalies are reported only.
func (p *Pipeline) Audit() JobFunc {
	return func(ctx context.Context, sym model.Symbol, logger *slog.Logger) JobResult {
		rep, err := p.Auditor.Audit(sym, p.Store)
		if err != nil {
			return failed(xerrors.StageRead, err)
		}
		if p.Metrics != nil {
			p.Metrics.AuditGaps.WithLabelValues(sym.Name).Set(float64(rep.GapCount))
			p.Metrics.AuditDuplicates.WithLabelValues(sym.Name).Set(float64(rep.Duplicates))
		}
		logger.Info("audit", "report", rep.Summary())
		out := JobResult{Status: StatusOK, Bars: rep.Rows, Detail: rep}
		if !rep.Structural() {
			out.Status, out.Stage = StatusFailed, string(xerrors.StageAudit)
			out.Reason = xerrors.ErrMergeInvariant.Error()
		}
		return out
	}
}

func (p *Pipeline) readExisting(sym model.Symbol) ([]model.Bar, error) {
	bars, err := p.Store.ReadAll(sym)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	return bars, err
}

func failed(stage xerrors.Stage, err error) JobResult {
	status := StatusFailed
	if xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded) {
		status = StatusCancelled
	}
	return JobResult{Status: status, Stage: string(stage), Reason: err.Error()}
}

func fetchStage(err error) xerrors.Stage {
	if s := xerrors.StageOf(err); s != "" {
		return s
	}
	if xerrors.Is(err, xerrors.ErrSymbolUnavailable) {
		return xerrors.StageResolve
	}
	return xerrors.StageFetch
}
