package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
)

var logger = logrus.WithField("module", "redis")

type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a go-redis client and pings it.
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return rdb, nil
}

// ReportPublisher fans analysis reports out over pub/sub and keeps the latest
// one per symbol under a key with a TTL.
//
// Key schema:
//
//	{prefix}:report:{symbol}  - pub/sub channel
//	{prefix}:latest:{symbol}  - last published report (JSON)
type ReportPublisher struct {
	rdb       *redis.Client
	prefix    string
	latestTTL time.Duration
}

func NewReportPublisher(rdb *redis.Client, prefix string, latestTTL time.Duration) *ReportPublisher {
	return &ReportPublisher{
		rdb:       rdb,
		prefix:    prefix,
		latestTTL: latestTTL,
	}
}

func (p *ReportPublisher) ReportChannel(symbol string) string {
	return p.prefix + ":report:" + symbol
}

func (p *ReportPublisher) LatestKey(symbol string) string {
	return p.prefix + ":latest:" + symbol
}

func (p *ReportPublisher) Publish(ctx context.Context, report *domain.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("redis: encode report %s: %w", report.Symbol, err)
	}

	channel := p.ReportChannel(report.Symbol)
	receivers, err := p.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}

	key := p.LatestKey(report.Symbol)
	if err := p.rdb.Set(ctx, key, payload, p.latestTTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}

	logger.WithField("symbol", report.Symbol).
		WithField("receivers", receivers).
		Debug("report published")

	return nil
}

func (p *ReportPublisher) Close() error {
	return p.rdb.Close()
}

var _ domain.ReportPublisher = (*ReportPublisher)(nil)
