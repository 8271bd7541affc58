// Package errors holds the sentinel errors shared by every stage of the
// ingestion pipeline, and the StageError wrapper used in run summaries.
//
// Callers classify failures with errors.Is against the sentinels; the
// wrapped cause keeps the vendor or filesystem detail for logs.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Source errors
	ErrSymbolUnavailable = errors.New("symbol unavailable")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrNoData            = errors.New("no data")

	// Store errors
	ErrNotFound     = errors.New("not found")
	ErrBackupFailed = errors.New("backup failed")
	ErrWriteFailed  = errors.New("write failed")

	// Series errors
	ErrMergeInvariant = errors.New("merge invariant violated")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Stage names a step of the per-symbol pipeline.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageRead    Stage = "read"
	StageMerge   Stage = "merge"
	StageWrite   Stage = "write"
	StageAudit   Stage = "audit"
)

// StageError records which symbol failed and at which stage.
type StageError struct {
	Symbol string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with symbol and stage. A nil err stays nil.
func AtStage(symbol string, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Symbol: symbol, Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "" if none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// Is is errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As.
func As(err error, target any) bool { return errors.As(err, target) }

// New is errors.New.
func New(text string) error { return errors.New(text) }

// Join is errors.Join.
func Join(errs ...error) error { return errors.Join(errs...) }
