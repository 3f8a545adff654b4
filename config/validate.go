package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("symbols must not be empty")
	}
	if _, err := c.MarketSymbols(); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}

	if len(c.Markets) == 0 {
		return errors.New("markets must not be empty")
	}
	if _, err := c.MarketTypes(); err != nil {
		return fmt.Errorf("markets: %w", err)
	}

	if _, ok := c.MinQuantities[DefaultAsset]; !ok {
		return fmt.Errorf("min_quantities.%s is required", DefaultAsset)
	}
	for asset, q := range c.MinQuantities {
		if q.Spot.IsNegative() || q.Futures.IsNegative() {
			return fmt.Errorf("min_quantities.%s must be >= 0", asset)
		}
	}

	if c.WarmupPreset != "" {
		if _, ok := WarmupPreset(c.WarmupPreset); !ok {
			return fmt.Errorf("unknown warmup_preset %q", c.WarmupPreset)
		}
	}
	if c.Warmup.StartupWaitTime.Duration < 0 {
		return errors.New("warmup.startup_wait_time must be >= 0")
	}
	if c.Warmup.MinUpdateCount < 0 || c.Warmup.MinOrderCount < 0 {
		return errors.New("warmup counts must be >= 0")
	}

	if len(c.AnalysisRanges) == 0 {
		return errors.New("analysis_ranges must not be empty")
	}
	for i, r := range c.AnalysisRanges {
		if r.Lower < 0 || r.Upper <= r.Lower {
			return fmt.Errorf("analysis_ranges[%d]: need 0 <= lower < upper, got [%v, %v]", i, r.Lower, r.Upper)
		}
		if i > 0 && r.Lower < c.AnalysisRanges[i-1].Upper {
			return fmt.Errorf("analysis_ranges[%d] overlaps the previous range", i)
		}
	}

	if c.Report.Enabled {
		if c.Report.Interval.Duration <= 0 {
			return errors.New("report.interval must be > 0")
		}
		if c.Report.DisplayOrderCount < 1 {
			return errors.New("report.display_order_count must be >= 1")
		}
	}

	if c.Binance.SpotSnapshotLimit < 1 || c.Binance.FuturesSnapshotLimit < 1 {
		return errors.New("binance snapshot limits must be >= 1")
	}
	if c.Binance.RequestTimeout.Duration <= 0 {
		return errors.New("binance.request_timeout must be > 0")
	}

	if c.RateLimit.MaxRequests < 1 {
		return errors.New("rate_limit.max_requests must be >= 1")
	}
	if c.RateLimit.Window.Duration <= 0 {
		return errors.New("rate_limit.window must be > 0")
	}

	if c.SnapshotRetry.MaxAttempts < 1 {
		return errors.New("snapshot_retry.max_attempts must be >= 1")
	}
	if c.SnapshotRetry.MinBackoff.Duration > c.SnapshotRetry.MaxBackoff.Duration {
		return errors.New("snapshot_retry.min_backoff cannot exceed max_backoff")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required")
	}
	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}
