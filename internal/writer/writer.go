// Package writer commits a new version of a series file so that an
// interruption at any point leaves either the old or the new version in
// place, never a torn file.
package writer

import (
	"context"
	"fmt"
	"log/slog"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
)

// Store is the part of the series store the writer drives.
type Store interface {
	Path(sym model.Symbol) string
	BackupPath(sym model.Symbol) string
	TempPath(sym model.Symbol) string
	WriteTemp(sym model.Symbol, bars []model.Bar) (string, error)
	CountRows(path string) (int, error)
	Replace(src, dst string) error
	Copy(src, dst string) error
	Remove(path string) error
	Exists(path string) (bool, error)
}

// Mirror is implemented by stores that export a second copy after each commit.
type Mirror interface {
	WriteMirror(sym model.Symbol, bars []model.Bar) (string, error)
}

// Outcome describes a committed write.
type Outcome struct {
	Path     string
	Mirror   string // export copy, "" if none
	Rows     int
	BackedUp bool // a previous version existed and was backed up
}

// Writer is the durable write protocol over a Store.
type Writer struct {
	store Store
	log   *slog.Logger
}

// New creates a Writer. logger nil → slog.Default().
func New(store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, log: logger}
}

// Write replaces the series file for sym with bars:
// backup, write temp, verify, rename, drop backup.
//
// ctx is only checked before the first step; once started the protocol runs to the end.
func (w *Writer) Write(ctx context.Context, sym model.Symbol, bars []model.Bar) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if len(bars) == 0 {
		return Outcome{}, fmt.Errorf("%s: refusing to write an empty series: %w", sym.Name, xerrors.ErrWriteFailed)
	}
	primary := w.store.Path(sym)
	backup := w.store.BackupPath(sym)
	out := Outcome{Path: primary, Rows: len(bars)}

	exists, err := w.store.Exists(primary)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: stat primary: %v: %w", sym.Name, err, xerrors.ErrBackupFailed)
	}
	if exists {
		if err := w.store.Copy(primary, backup); err != nil {
			_ = w.store.Remove(backup)
			return Outcome{}, fmt.Errorf("%s: %v: %w", sym.Name, err, xerrors.ErrBackupFailed)
		}
		out.BackedUp = true
	}

	tmp, err := w.store.WriteTemp(sym, bars)
	if err != nil {
		return Outcome{}, w.abort(sym, tmp, fmt.Errorf("write temp: %w", err))
	}
	n, err := w.store.CountRows(tmp)
	if err != nil {
		return Outcome{}, w.abort(sym, tmp, fmt.Errorf("verify temp: %w", err))
	}
	if n != len(bars) {
		return Outcome{}, w.abort(sym, tmp, fmt.Errorf("verify temp: %d rows on disk, want %d", n, len(bars)))
	}
	if err := w.store.Replace(tmp, primary); err != nil {
		return Outcome{}, w.abort(sym, tmp, err)
	}

	if out.BackedUp {
		if err := w.store.Remove(backup); err != nil {
			w.log.Warn("could not delete backup", "symbol", sym.Name, "path", backup, "error", err)
		}
	}
	w.log.Info("series committed", "symbol", sym.Name, "path", primary, "rows", len(bars))

	// The primary is committed; a failed export is reported but does not undo it.
	if m, ok := w.store.(Mirror); ok {
		path, err := m.WriteMirror(sym, bars)
		if err != nil {
			w.log.Warn("mirror export failed", "symbol", sym.Name, "path", path, "error", err)
			return out, nil
		}
		out.Mirror = path
	}
	return out, nil
}

// abort removes the temp file and leaves primary and backup as they are.
func (w *Writer) abort(sym model.Symbol, tmp string, cause error) error {
	if tmp == "" {
		tmp = w.store.TempPath(sym)
	}
	if err := w.store.Remove(tmp); err != nil {
		w.log.Warn("could not delete temp file", "symbol", sym.Name, "path", tmp, "error", err)
	}
	return fmt.Errorf("%s: %v: %w", sym.Name, cause, xerrors.ErrWriteFailed)
}

// Recover cleans up after an interrupted process. A stray temp file is removed.
// If the primary is missing but a backup exists, the backup is restored.
func (w *Writer) Recover(sym model.Symbol) error {
	primary, backup, tmp := w.store.Path(sym), w.store.BackupPath(sym), w.store.TempPath(sym)
	if err := w.store.Remove(tmp); err != nil {
		return err
	}
	hasPrimary, err := w.store.Exists(primary)
	if err != nil {
		return err
	}
	hasBackup, err := w.store.Exists(backup)
	if err != nil || !hasBackup {
		return err
	}
	if hasPrimary {
		// Left by a failed write; the next write overwrites it.
		w.log.Info("stale backup present", "symbol", sym.Name, "path", backup)
		return nil
	}
	w.log.Warn("primary missing, restoring backup", "symbol", sym.Name, "path", backup)
	return w.store.Replace(backup, primary)
}
