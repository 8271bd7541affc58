package crawl

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type failedEntry struct {
	Symbol string `json:"symbol"`
	Status Status `json:"status"`
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason"`
}

// WriteRunReport writes .lastrun.<command>.success.json and .failed.json under dir.
func WriteRunReport(dir string, sum Summary) error {
	var success []string
	var failed []failedEntry
	for _, r := range sum.Results {
		switch r.Status {
		case StatusOK, StatusSkipped:
			success = append(success, r.Symbol)
		default:
			failed = append(failed, failedEntry{Symbol: r.Symbol, Status: r.Status, Stage: r.Stage, Reason: r.Reason})
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	prefix := filepath.Join(dir, ".lastrun."+sum.Command)
	if len(success) > 0 {
		if err := writeJSON(prefix+".success.json", success); err != nil {
			return err
		}
		slog.Info("report wrote success", "path", prefix+".success.json", "symbols", len(success))
	}
	if len(failed) > 0 {
		if err := writeJSON(prefix+".failed.json", failed); err != nil {
			return err
		}
		slog.Info("report wrote failed", "path", prefix+".failed.json", "count", len(failed))
	} else if err := os.Remove(prefix + ".failed.json"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteSummary writes the whole summary as JSON to path. Empty path is a no-op.
func WriteSummary(path string, sum Summary) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeJSON(path, sum)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func joinFailedReasons(failed []JobResult) string {
	if len(failed) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failed {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Symbol)
		b.WriteString(": ")
		b.WriteString(f.Reason)
		if i >= 4 && len(failed) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failed)-5))
			break
		}
	}
	return b.String()
}
