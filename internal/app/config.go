package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fx-data/internal/provider/polygon"
	"fx-data/internal/series"
)

// Config holds application configuration from env
type Config struct {
	DataDir    string
	SaveFormat string // parquet | csv | json | both (parquet plus a csv export)
	LogLevel   string // debug | info | warn | error
	LogFormat  string // text | json

	QuoteSource        string // bridge | polygon
	BridgeURL          string
	BridgeTimeout      time.Duration
	PolygonAPIKey      string
	PolygonMinInterval time.Duration // 12s fits a free key
	SymbolsFile        string

	MaxBarsPerRequest int
	MaxAttempts       int
	Workers           int
	LookbackDays      int
	StaleAfter        time.Duration
	FutureTolerance   time.Duration
	GapThreshold      time.Duration
	ConflictPolicy    series.ConflictPolicy

	RetryMax         int
	RetryInitial     time.Duration
	RetryMaxInterval time.Duration

	ReportPath      string
	MetricsTextfile string
}

// LoadConfig reads config from environment. Malformed numbers and durations are errors.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DataDir:         getEnv("DATA_DIR", "data"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		QuoteSource:     strings.ToLower(getEnv("QUOTE_SOURCE", "bridge")),
		BridgeURL:       getEnv("BRIDGE_URL", "http://127.0.0.1:8228"),
		PolygonAPIKey:   os.Getenv("POLYGON_API_KEY"),
		SymbolsFile:     os.Getenv("SYMBOLS_FILE"),
		ReportPath:      os.Getenv("REPORT_PATH"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
	}
	cfg.SaveFormat = getSaveFormat()

	var errs []string
	intVar := func(dst *int, key string, def, min int) {
		*dst = def
		s := os.Getenv(key)
		if s == "" {
			return
		}
		v, err := strconv.Atoi(s)
		if err != nil || v < min {
			errs = append(errs, fmt.Sprintf("%s=%q: want integer >= %d", key, s, min))
			return
		}
		*dst = v
	}
	durVar := func(dst *time.Duration, key string, def time.Duration) {
		*dst = def
		s := os.Getenv(key)
		if s == "" {
			return
		}
		v, err := time.ParseDuration(s)
		if err != nil || v < 0 {
			errs = append(errs, fmt.Sprintf("%s=%q: want duration like 30s or 12h", key, s))
			return
		}
		*dst = v
	}

	intVar(&cfg.MaxBarsPerRequest, "MAX_BARS_PER_REQUEST", 99999, 1)
	intVar(&cfg.MaxAttempts, "MAX_ATTEMPTS", 11, 1)
	intVar(&cfg.Workers, "WORKERS", 1, 1)
	intVar(&cfg.LookbackDays, "LOOKBACK_DAYS", 7, 1)
	intVar(&cfg.RetryMax, "RETRY_MAX", 3, 0)
	durVar(&cfg.BridgeTimeout, "BRIDGE_TIMEOUT", 60*time.Second)
	durVar(&cfg.PolygonMinInterval, "POLYGON_MIN_INTERVAL", polygon.FreeTierInterval)
	durVar(&cfg.StaleAfter, "STALE_AFTER", 12*time.Hour)
	durVar(&cfg.FutureTolerance, "FUTURE_TOLERANCE", 4*time.Hour)
	durVar(&cfg.GapThreshold, "GAP_THRESHOLD", 2*time.Hour)
	durVar(&cfg.RetryInitial, "RETRY_INITIAL", time.Second)
	durVar(&cfg.RetryMaxInterval, "RETRY_MAX_INTERVAL", 15*time.Second)

	p, err := series.ParseConflictPolicy(getEnv("CONFLICT_POLICY", "fetched"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.ConflictPolicy = p

	switch cfg.QuoteSource {
	case "bridge", "polygon":
	default:
		errs = append(errs, fmt.Sprintf("QUOTE_SOURCE=%q: use bridge or polygon", cfg.QuoteSource))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getSaveFormat() string {
	if v := os.Getenv("SAVE_FORMAT"); v != "" {
		return strings.ToLower(v)
	}
	switch os.Getenv("PROFILE") {
	case "dev", "development":
		return "csv"
	default:
		return "parquet"
	}
}

// Lookback returns LookbackDays as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// ReportDir is where the .lastrun files go.
func (c *Config) ReportDir() string {
	return filepath.Clean(c.DataDir)
}
