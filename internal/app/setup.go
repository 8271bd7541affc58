package app

import (
	"fmt"
	"log/slog"
	"time"

	"fx-data/internal/audit"
	"fx-data/internal/provider"
	"fx-data/internal/provider/bridge"
	"fx-data/internal/provider/polygon"
)

// CreateQuoteSource creates the QuoteSource named by QUOTE_SOURCE.
func CreateQuoteSource(cfg *Config, logger *slog.Logger) (provider.QuoteSource, error) {
	switch cfg.QuoteSource {
	case "bridge":
		src, err := bridge.New(bridge.Config{BaseURL: cfg.BridgeURL, Timeout: cfg.BridgeTimeout}, nil, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "polygon":
		src, err := polygon.New(cfg.PolygonAPIKey, 0, cfg.PolygonMinInterval, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported quote source: %s. Options: bridge, polygon", cfg.QuoteSource)
	}
}

// NewAuditor creates an Auditor from config; gap > 0 overrides GAP_THRESHOLD.
func NewAuditor(cfg *Config, gap time.Duration, marketClosed bool, logger *slog.Logger) *audit.Auditor {
	if gap <= 0 {
		gap = cfg.GapThreshold
	}
	return audit.New(audit.Config{
		GapThreshold:    gap,
		MarketClosed:    marketClosed,
		FutureTolerance: cfg.FutureTolerance,
	}, nil, logger.With("component", "audit"))
}
