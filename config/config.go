// Package config holds the runtime configuration of the depth monitor.
package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
)

// DebugMode turns on verbose diagnostics across packages.
var DebugMode = false

const DefaultAsset = "DEFAULT"

type Config struct {
	Symbols        []string               `toml:"symbols"`
	QuoteAssets    []string               `toml:"quote_assets"`
	Markets        []string               `toml:"markets"`
	MinQuantities  map[string]MinQuantity `toml:"min_quantities"`
	WarmupPreset   string                 `toml:"warmup_preset"`
	Warmup         WarmupConfig           `toml:"warmup"`
	AnalysisRanges []domain.AnalysisRange `toml:"analysis_ranges"`
	Report         ReportConfig           `toml:"report"`
	Binance        BinanceConfig          `toml:"binance"`
	RateLimit      RateLimitConfig        `toml:"rate_limit"`
	SnapshotRetry  RetryConfig            `toml:"snapshot_retry"`
	Metrics        MetricsConfig          `toml:"metrics"`
	GRPC           GRPCConfig             `toml:"grpc"`
	Redis          RedisConfig            `toml:"redis"`
	LogLevel       string                 `toml:"log_level"`
	DebugMode      bool                   `toml:"debug_mode"`
}

// MinQuantity is the noise threshold of one base asset on each market.
type MinQuantity struct {
	Spot    decimal.Decimal `toml:"spot"`
	Futures decimal.Decimal `toml:"futures"`
}

type WarmupConfig struct {
	StartupWaitTime   Duration `toml:"startup_wait_time"`
	MinUpdateCount    int      `toml:"min_update_count"`
	MinOrderCount     int      `toml:"min_order_count"`
	EnableWarmupCheck bool     `toml:"enable_warmup_check"`
}

type ReportConfig struct {
	Enabled           bool     `toml:"enabled"`
	Interval          Duration `toml:"interval"`
	DisplayOrderCount int      `toml:"display_order_count"`
}

type BinanceConfig struct {
	SpotRestURL            string   `toml:"spot_rest_url"`
	FuturesRestURL         string   `toml:"futures_rest_url"`
	SpotStreamURL          string   `toml:"spot_stream_url"`
	FuturesStreamURL       string   `toml:"futures_stream_url"`
	SpotSnapshotLimit      int      `toml:"spot_snapshot_limit"`
	FuturesSnapshotLimit   int      `toml:"futures_snapshot_limit"`
	RequestTimeout         Duration `toml:"request_timeout"`
	FuturesContinuityCheck bool     `toml:"futures_continuity_check"`
}

type RateLimitConfig struct {
	MaxRequests int      `toml:"max_requests"`
	Window      Duration `toml:"window"`
}

type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	MinBackoff  Duration `toml:"min_backoff"`
	MaxBackoff  Duration `toml:"max_backoff"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type GRPCConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type RedisConfig struct {
	Enabled       bool     `toml:"enabled"`
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	ChannelPrefix string   `toml:"channel_prefix"`
	LatestTTL     Duration `toml:"latest_ttl"`
}

// Duration wraps time.Duration so the TOML decoder can parse strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var warmupPresets = map[string]WarmupConfig{
	"immediate_start": {
		StartupWaitTime:   Duration{0},
		MinUpdateCount:    0,
		MinOrderCount:     0,
		EnableWarmupCheck: false,
	},
	"fast_mode": {
		StartupWaitTime:   Duration{15 * time.Second},
		MinUpdateCount:    5,
		MinOrderCount:     2,
		EnableWarmupCheck: true,
	},
	"standard_mode": {
		StartupWaitTime:   Duration{30 * time.Second},
		MinUpdateCount:    10,
		MinOrderCount:     3,
		EnableWarmupCheck: true,
	},
	"stable_mode": {
		StartupWaitTime:   Duration{60 * time.Second},
		MinUpdateCount:    20,
		MinOrderCount:     5,
		EnableWarmupCheck: true,
	},
}

func WarmupPreset(name string) (WarmupConfig, bool) {
	preset, ok := warmupPresets[name]
	return preset, ok
}

func Defaults() Config {
	return Config{
		Symbols:     []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		QuoteAssets: []string{"USDT", "USDC", "BTC"},
		Markets:     []string{string(domain.MarketType_Spot), string(domain.MarketType_Futures)},
		MinQuantities: map[string]MinQuantity{
			"BTC":        {Spot: decimal.NewFromInt(50), Futures: decimal.NewFromInt(100)},
			"ETH":        {Spot: decimal.NewFromInt(200), Futures: decimal.NewFromInt(400)},
			"SOL":        {Spot: decimal.NewFromInt(3000), Futures: decimal.NewFromInt(2500)},
			"BNB":        {Spot: decimal.NewFromInt(1000), Futures: decimal.NewFromInt(800)},
			DefaultAsset: {Spot: decimal.NewFromInt(1000), Futures: decimal.NewFromInt(800)},
		},
		Warmup: WarmupConfig{
			StartupWaitTime:   Duration{30 * time.Second},
			MinUpdateCount:    10,
			MinOrderCount:     2,
			EnableWarmupCheck: true,
		},
		AnalysisRanges: []domain.AnalysisRange{
			{Lower: 0, Upper: 1},
			{Lower: 1, Upper: 2.5},
			{Lower: 2.5, Upper: 5},
			{Lower: 5, Upper: 10},
		},
		Report: ReportConfig{
			Enabled:           true,
			Interval:          Duration{5 * time.Minute},
			DisplayOrderCount: 10,
		},
		Binance: BinanceConfig{
			SpotRestURL:            "https://api.binance.com",
			FuturesRestURL:         "https://fapi.binance.com",
			SpotStreamURL:          "wss://stream.binance.com:9443/stream",
			FuturesStreamURL:       "wss://fstream.binance.com/stream",
			SpotSnapshotLimit:      5000,
			FuturesSnapshotLimit:   1000,
			RequestTimeout:         Duration{10 * time.Second},
			FuturesContinuityCheck: true,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 5,
			Window:      Duration{time.Minute},
		},
		SnapshotRetry: RetryConfig{
			MaxAttempts: 3,
			MinBackoff:  Duration{2 * time.Second},
			MaxBackoff:  Duration{30 * time.Second},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":2112",
		},
		GRPC: GRPCConfig{
			Enabled: true,
			Addr:    ":50051",
		},
		Redis: RedisConfig{
			Enabled:       false,
			Addr:          "localhost:6379",
			ChannelPrefix: "depth",
			LatestTTL:     Duration{15 * time.Minute},
		},
		LogLevel: "info",
	}
}

// MinQuantity returns the threshold for symbol on market, falling back to
// the DEFAULT entry when the base asset has none.
func (c *Config) MinQuantity(symbol *domain.MarketSymbol, market domain.MarketType) decimal.Decimal {
	entry, ok := c.MinQuantities[strings.ToUpper(symbol.BaseAsset)]
	if !ok {
		entry = c.MinQuantities[DefaultAsset]
	}

	if market == domain.MarketType_Futures {
		return entry.Futures
	}
	return entry.Spot
}

func (c *Config) DomainWarmup() domain.WarmupConfig {
	return domain.WarmupConfig{
		StartupWaitTime:   c.Warmup.StartupWaitTime.Duration,
		MinUpdateCount:    c.Warmup.MinUpdateCount,
		MinOrderCount:     c.Warmup.MinOrderCount,
		EnableWarmupCheck: c.Warmup.EnableWarmupCheck,
	}
}

// MarketSymbols parses the configured exchange pairs.
func (c *Config) MarketSymbols() ([]*domain.MarketSymbol, error) {
	result := make([]*domain.MarketSymbol, 0, len(c.Symbols))
	for _, pair := range c.Symbols {
		symbol, err := domain.NewMarketSymbolFromPair(pair, c.QuoteAssets)
		if err != nil {
			return nil, err
		}
		result = append(result, symbol)
	}

	return result, nil
}

func (c *Config) MarketTypes() ([]domain.MarketType, error) {
	result := make([]domain.MarketType, 0, len(c.Markets))
	for _, m := range c.Markets {
		market, err := domain.ParseMarketType(m)
		if err != nil {
			return nil, err
		}
		result = append(result, market)
	}

	return result, nil
}

func (c *Config) SnapshotLimit(market domain.MarketType) int {
	if market == domain.MarketType_Futures {
		return c.Binance.FuturesSnapshotLimit
	}
	return c.Binance.SpotSnapshotLimit
}
