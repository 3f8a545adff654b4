package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults() and applies DEPTH_*
// environment overrides. A warmup preset replaces the default warmup values;
// keys set in the [warmup] table or in DEPTH_WARMUP_* still win over it.
// An empty path skips the file. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	var md toml.MetaData
	if path != "" {
		var err error
		if md, err = toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	setStr(&cfg.WarmupPreset, "DEPTH_WARMUP_PRESET")
	applyWarmupPreset(&cfg, md)
	applyEnvOverrides(&cfg)

	DebugMode = cfg.DebugMode
	return &cfg, nil
}

func applyWarmupPreset(cfg *Config, md toml.MetaData) {
	preset, ok := WarmupPreset(cfg.WarmupPreset)
	if !ok {
		return
	}

	file := cfg.Warmup
	cfg.Warmup = preset

	if md.IsDefined("warmup", "startup_wait_time") {
		cfg.Warmup.StartupWaitTime = file.StartupWaitTime
	}
	if md.IsDefined("warmup", "min_update_count") {
		cfg.Warmup.MinUpdateCount = file.MinUpdateCount
	}
	if md.IsDefined("warmup", "min_order_count") {
		cfg.Warmup.MinOrderCount = file.MinOrderCount
	}
	if md.IsDefined("warmup", "enable_warmup_check") {
		cfg.Warmup.EnableWarmupCheck = file.EnableWarmupCheck
	}
}

func applyEnvOverrides(cfg *Config) {
	setStringSlice(&cfg.Symbols, "DEPTH_SYMBOLS")
	setStringSlice(&cfg.QuoteAssets, "DEPTH_QUOTE_ASSETS")
	setStringSlice(&cfg.Markets, "DEPTH_MARKETS")
	setStr(&cfg.WarmupPreset, "DEPTH_WARMUP_PRESET")

	setDuration(&cfg.Warmup.StartupWaitTime, "DEPTH_WARMUP_STARTUP_WAIT_TIME")
	setInt(&cfg.Warmup.MinUpdateCount, "DEPTH_WARMUP_MIN_UPDATE_COUNT")
	setInt(&cfg.Warmup.MinOrderCount, "DEPTH_WARMUP_MIN_ORDER_COUNT")
	setBool(&cfg.Warmup.EnableWarmupCheck, "DEPTH_WARMUP_ENABLE_CHECK")

	setBool(&cfg.Report.Enabled, "DEPTH_REPORT_ENABLED")
	setDuration(&cfg.Report.Interval, "DEPTH_REPORT_INTERVAL")
	setInt(&cfg.Report.DisplayOrderCount, "DEPTH_REPORT_DISPLAY_ORDER_COUNT")

	setStr(&cfg.Binance.SpotRestURL, "DEPTH_BINANCE_SPOT_REST_URL")
	setStr(&cfg.Binance.FuturesRestURL, "DEPTH_BINANCE_FUTURES_REST_URL")
	setStr(&cfg.Binance.SpotStreamURL, "DEPTH_BINANCE_SPOT_STREAM_URL")
	setStr(&cfg.Binance.FuturesStreamURL, "DEPTH_BINANCE_FUTURES_STREAM_URL")
	setInt(&cfg.Binance.SpotSnapshotLimit, "DEPTH_BINANCE_SPOT_SNAPSHOT_LIMIT")
	setInt(&cfg.Binance.FuturesSnapshotLimit, "DEPTH_BINANCE_FUTURES_SNAPSHOT_LIMIT")
	setDuration(&cfg.Binance.RequestTimeout, "DEPTH_BINANCE_REQUEST_TIMEOUT")
	setBool(&cfg.Binance.FuturesContinuityCheck, "DEPTH_BINANCE_FUTURES_CONTINUITY_CHECK")

	setInt(&cfg.RateLimit.MaxRequests, "DEPTH_RATE_LIMIT_MAX_REQUESTS")
	setDuration(&cfg.RateLimit.Window, "DEPTH_RATE_LIMIT_WINDOW")

	setInt(&cfg.SnapshotRetry.MaxAttempts, "DEPTH_SNAPSHOT_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.SnapshotRetry.MinBackoff, "DEPTH_SNAPSHOT_RETRY_MIN_BACKOFF")
	setDuration(&cfg.SnapshotRetry.MaxBackoff, "DEPTH_SNAPSHOT_RETRY_MAX_BACKOFF")

	setBool(&cfg.Metrics.Enabled, "DEPTH_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "DEPTH_METRICS_ADDR")
	setBool(&cfg.GRPC.Enabled, "DEPTH_GRPC_ENABLED")
	setStr(&cfg.GRPC.Addr, "DEPTH_GRPC_ADDR")

	setBool(&cfg.Redis.Enabled, "DEPTH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEPTH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEPTH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEPTH_REDIS_DB")
	setStr(&cfg.Redis.ChannelPrefix, "DEPTH_REDIS_CHANNEL_PREFIX")
	setDuration(&cfg.Redis.LatestTTL, "DEPTH_REDIS_LATEST_TTL")

	setStr(&cfg.LogLevel, "DEPTH_LOG_LEVEL")
	setBool(&cfg.DebugMode, "DEPTH_DEBUG_MODE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
