package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-data/internal/model"
	"fx-data/internal/series"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"SAVE_FORMAT", "PROFILE", "QUOTE_SOURCE", "WORKERS", "STALE_AFTER", "CONFLICT_POLICY", "MAX_ATTEMPTS"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "parquet", cfg.SaveFormat)
	assert.Equal(t, "bridge", cfg.QuoteSource)
	assert.Equal(t, 99999, cfg.MaxBarsPerRequest)
	assert.Equal(t, 11, cfg.MaxAttempts)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 7*24*time.Hour, cfg.Lookback())
	assert.Equal(t, 12*time.Hour, cfg.StaleAfter)
	assert.Equal(t, 4*time.Hour, cfg.FutureTolerance)
	assert.Equal(t, 2*time.Hour, cfg.GapThreshold)
	assert.Equal(t, series.PreferFetched, cfg.ConflictPolicy)
	assert.Equal(t, 3, cfg.RetryMax)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PROFILE", "dev")
	t.Setenv("SAVE_FORMAT", "")
	t.Setenv("QUOTE_SOURCE", "Polygon")
	t.Setenv("WORKERS", "4")
	t.Setenv("LOOKBACK_DAYS", "2")
	t.Setenv("STALE_AFTER", "30m")
	t.Setenv("CONFLICT_POLICY", "existing")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.SaveFormat)
	assert.Equal(t, "polygon", cfg.QuoteSource)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 48*time.Hour, cfg.Lookback())
	assert.Equal(t, 30*time.Minute, cfg.StaleAfter)
	assert.Equal(t, series.PreferExisting, cfg.ConflictPolicy)
}

func TestLoadConfigRejectsMalformed(t *testing.T) {
	t.Setenv("WORKERS", "zero")
	t.Setenv("STALE_AFTER", "soon")
	t.Setenv("QUOTE_SOURCE", "ftp")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKERS")
	assert.Contains(t, err.Error(), "STALE_AFTER")
	assert.Contains(t, err.Error(), "QUOTE_SOURCE")
}

func TestProvideStoreRejectsUnknownFormat(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir(), SaveFormat: "xlsx"}
	_, err := ProvideStore(cfg, ProvideLogger(&Config{}))
	assert.Error(t, err)
}

func TestProvideStoreBothExportsCSV(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir(), SaveFormat: "both"}
	st, err := ProvideStore(cfg, ProvideLogger(&Config{}))
	require.NoError(t, err)
	assert.Equal(t, "parquet", st.Format())
	assert.Equal(t, filepath.Join(cfg.DataDir, "fx", "eurusd_1m.csv"), st.MirrorPath(model.Symbol{Name: "EURUSD", Category: model.CategoryFX}))
}

func TestQuoteSourceRejectsStub(t *testing.T) {
	t.Setenv("QUOTE_SOURCE", "stub")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "use bridge or polygon")

	src, err := CreateQuoteSource(&Config{QuoteSource: "stub"}, ProvideLogger(&Config{}))
	assert.Error(t, err)
	assert.Nil(t, src)
}
