// Package store keeps one series file per symbol under the data dir:
//
//	{dataDir}/{category}/{symbol_lower}_1m.{ext}
//
// plus the transient .tmp and .backup siblings used while a new version is
// committed. Every read is a full read; there is no append path.
package store

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	xerrors "fx-data/internal/errors"
	"fx-data/internal/model"
)

const (
	backupSuffix = ".backup"
	tempSuffix   = ".tmp"
	defaultCat   = "other"
)

// FileStore is the columnar series store on the local filesystem.
type FileStore struct {
	dir    string
	codec  Codec
	mirror Codec // optional export copy, e.g. csv next to parquet
	gran   model.Granularity
	log    *slog.Logger
}

// New creates a FileStore rooted at dir. logger nil → slog.Default().
func New(dir string, codec Codec, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, codec: codec, gran: model.Minute, log: logger}
}

// WithMirror makes every committed write also export the series with c.
// The mirror is never read back; the primary file stays the source of truth.
func (s *FileStore) WithMirror(c Codec) *FileStore {
	if c != nil && c.Extension() != s.codec.Extension() {
		s.mirror = c
	}
	return s
}

// Dir returns the data dir.
func (s *FileStore) Dir() string { return s.dir }

// Format returns the codec extension, e.g. "parquet".
func (s *FileStore) Format() string { return s.codec.Extension() }

// Path returns the primary series file for sym.
func (s *FileStore) Path(sym model.Symbol) string {
	cat := sym.Category
	if cat == "" {
		cat = defaultCat
	}
	name := fmt.Sprintf("%s_%s.%s", sym.Lower(), s.gran.Suffix(), s.codec.Extension())
	return filepath.Join(s.dir, cat, name)
}

// MirrorPath returns the export copy for sym, or "" without a mirror.
func (s *FileStore) MirrorPath(sym model.Symbol) string {
	if s.mirror == nil {
		return ""
	}
	p := s.Path(sym)
	return strings.TrimSuffix(p, filepath.Ext(p)) + "." + s.mirror.Extension()
}

// BackupPath returns the sibling the previous version is copied to during a write.
func (s *FileStore) BackupPath(sym model.Symbol) string { return s.Path(sym) + backupSuffix }

// TempPath returns the sibling a new version is written to before the rename.
func (s *FileStore) TempPath(sym model.Symbol) string { return s.Path(sym) + tempSuffix }

// ReadAll reads the whole series for sym. A missing file is ErrNotFound.
func (s *FileStore) ReadAll(sym model.Symbol) ([]model.Bar, error) {
	return s.ReadFile(s.Path(sym))
}

// ReadFile decodes the series at path.
func (s *FileStore) ReadFile(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	bars, err := s.codec.Decode(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return bars, nil
}

// WriteTemp encodes bars to the temp path for sym and fsyncs it.
func (s *FileStore) WriteTemp(sym model.Symbol, bars []model.Bar) (string, error) {
	path := s.TempPath(sym)
	return path, encodeFile(path, s.codec, bars)
}

// WriteMirror exports bars to MirrorPath via temp file and rename.
// Without a mirror it does nothing and returns "".
func (s *FileStore) WriteMirror(sym model.Symbol, bars []model.Bar) (string, error) {
	path := s.MirrorPath(sym)
	if path == "" {
		return "", nil
	}
	tmp := path + tempSuffix
	if err := encodeFile(tmp, s.mirror, bars); err != nil {
		_ = s.Remove(tmp)
		return path, err
	}
	return path, s.Replace(tmp, path)
}

func encodeFile(path string, c Codec, bars []model.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.Encode(f, bars); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// CountRows decodes path and returns its row count.
func (s *FileStore) CountRows(path string) (int, error) {
	bars, err := s.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}

// Replace atomically renames src over dst and syncs the parent dir.
func (s *FileStore) Replace(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	if err := syncDir(filepath.Dir(dst)); err != nil {
		s.log.Warn("dir sync after rename failed", "dir", filepath.Dir(dst), "error", err)
	}
	return nil
}

// Copy copies src to dst byte for byte and fsyncs dst.
func (s *FileStore) Copy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}

// Remove deletes path. A missing file is not an error.
func (s *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists.
func (s *FileStore) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Size returns the size of path in bytes.
func (s *FileStore) Size(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s: %w", path, xerrors.ErrNotFound)
		}
		return 0, err
	}
	return st.Size(), nil
}

// Leftovers lists .tmp and .backup files under the data dir, e.g. after a crash.
func (s *FileStore) Leftovers() ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case backupSuffix, tempSuffix:
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
