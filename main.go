package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-cryptomarkets-depth/config"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	promclient "github.com/spooky-finn/go-cryptomarkets-depth/infrastructure/prometheus"
	"github.com/spooky-finn/go-cryptomarkets-depth/infrastructure/redis"
	"github.com/spooky-finn/go-cryptomarkets-depth/provider"
	"github.com/spooky-finn/go-cryptomarkets-depth/provider/binance"
	"github.com/spooky-finn/go-cryptomarkets-depth/rpc"
	"github.com/spooky-finn/go-cryptomarkets-depth/usecase"
	"golang.org/x/sync/errgroup"
)

var logger = logrus.WithField("module", "main")

func main() {
	if err := run(); err != nil {
		logger.WithError(err).Fatal("stopped with error")
	}

	logger.Info("stopped")
}

func run() error {
	configPath := flag.String("config", os.Getenv("DEPTH_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)
	if config.DebugMode {
		logrus.SetLevel(logrus.DebugLevel)
	}

	symbols, err := cfg.MarketSymbols()
	if err != nil {
		return fmt.Errorf("invalid symbols: %w", err)
	}
	markets, err := cfg.MarketTypes()
	if err != nil {
		return fmt.Errorf("invalid markets: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connManager := provider.NewConnectionManager(cfg, markets)
	defer connManager.Close()

	if err := connManager.Init(ctx); err != nil {
		return fmt.Errorf("failed to connect to binance streams: %w", err)
	}

	storage := domain.NewOrderBookStorage()
	validators := func(market domain.MarketType) (domain.IDepthUpdateValidator, error) {
		return binance.NewDepthUpdateValidator(market, cfg.Binance.FuturesContinuityCheck)
	}
	syncUseCase := usecase.NewOrderBookSyncUseCase(cfg, storage, connManager.SyncAPI(), validators)
	feed := usecase.NewDepthFeedUseCase(storage, syncUseCase, cfg.QuoteAssets)

	g, ctx := errgroup.WithContext(ctx)

	// Streams are subscribed before the snapshots are taken so no diff after
	// a snapshot cursor is missed.
	for _, market := range markets {
		market := market
		client, err := connManager.StreamClient(market)
		if err != nil {
			return fmt.Errorf("no stream client: %w", err)
		}
		streamAPI, err := connManager.StreamAPI(market)
		if err != nil {
			return fmt.Errorf("no stream api: %w", err)
		}

		subscription, err := streamAPI.DepthDiffStream(ctx, symbols)
		if err != nil {
			return fmt.Errorf("failed to subscribe to depth streams: %w", err)
		}

		g.Go(func() error { return client.Run(ctx) })
		g.Go(func() error { return feed.Run(ctx, market, subscription.Stream) })
	}

	// A book that fails its first load is left out; the others keep running.
	g.Go(func() error {
		if err := syncUseCase.InitializeAll(ctx, symbols, markets); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("some order books failed to initialize")
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error { return promclient.StartPromClientServer(ctx, cfg.Metrics.Addr) })
	}

	if cfg.GRPC.Enabled {
		srv := rpc.NewServer(storage, syncUseCase, &rpc.ValidationServiceConfig{
			AvailableMarkets: markets,
			Symbols:          symbols,
		}, cfg.AnalysisRanges, cfg.Report.DisplayOrderCount)
		g.Go(func() error { return rpc.Serve(ctx, cfg.GRPC.Addr, srv) })
	}

	if cfg.Report.Enabled {
		var publisher domain.ReportPublisher = usecase.LogReportPublisher{}
		if cfg.Redis.Enabled {
			rdb, err := redis.NewClient(ctx, redis.ClientConfig{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			redisPublisher := redis.NewReportPublisher(rdb, cfg.Redis.ChannelPrefix, cfg.Redis.LatestTTL.Duration)
			defer redisPublisher.Close()
			publisher = redisPublisher
		}

		report := usecase.NewAnalysisReportUseCase(cfg, storage, publisher)
		g.Go(func() error { return report.Run(ctx) })
	}

	err = g.Wait()
	syncUseCase.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
