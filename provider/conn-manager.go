package provider

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-cryptomarkets-depth/config"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	"github.com/spooky-finn/go-cryptomarkets-depth/infrastructure/ratelimit"
	"github.com/spooky-finn/go-cryptomarkets-depth/provider/binance"
	"golang.org/x/sync/errgroup"
)

var logger = logrus.WithField("module", "conn-manager")

// ConnectionManager owns one stream connection per market and the shared
// REST client. Snapshot requests of every market go through one rate gate.
type ConnectionManager struct {
	markets []domain.MarketType

	StreamClients map[domain.MarketType]*binance.BinanceStreamClient
	StreamAPIs    map[domain.MarketType]*binance.BinanceStreamAPI

	BinanceSyncAPI *binance.BinanceSyncAPI
	RateGate       *ratelimit.RateGate
}

func NewConnectionManager(cfg *config.Config, markets []domain.MarketType) *ConnectionManager {
	gate := ratelimit.NewRateGate(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window.Duration)

	cm := &ConnectionManager{
		markets:       markets,
		StreamClients: make(map[domain.MarketType]*binance.BinanceStreamClient),
		StreamAPIs:    make(map[domain.MarketType]*binance.BinanceStreamAPI),
		RateGate:      gate,
		BinanceSyncAPI: binance.NewBinanceSyncAPI(
			binance.WithEndpoints(cfg.Binance.SpotRestURL, cfg.Binance.FuturesRestURL),
			binance.WithTimeout(cfg.Binance.RequestTimeout.Duration),
			binance.WithRequestGate(gate),
		),
	}

	for _, market := range markets {
		endpoint := cfg.Binance.SpotStreamURL
		if market == domain.MarketType_Futures {
			endpoint = cfg.Binance.FuturesStreamURL
		}

		client := binance.NewBinanceStreamClient(endpoint)
		cm.StreamClients[market] = client
		cm.StreamAPIs[market] = binance.NewBinanceStreamAPI(market, client)
	}

	return cm
}

// Init dials every stream connection and waits until all of them are up.
func (cm *ConnectionManager) Init(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, market := range cm.markets {
		market := market
		client := cm.StreamClients[market]
		g.Go(func() error {
			if err := client.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to binance %s stream: %w", market, err)
			}
			logger.WithField("market", market).Info("stream connected")
			return nil
		})
	}

	return g.Wait()
}

func (cm *ConnectionManager) StreamAPI(market domain.MarketType) (*binance.BinanceStreamAPI, error) {
	api, ok := cm.StreamAPIs[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, market)
	}
	return api, nil
}

func (cm *ConnectionManager) StreamClient(market domain.MarketType) (*binance.BinanceStreamClient, error) {
	client, ok := cm.StreamClients[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, market)
	}
	return client, nil
}

func (cm *ConnectionManager) SyncAPI() domain.ProviderSyncAPI {
	return cm.BinanceSyncAPI
}

func (cm *ConnectionManager) Markets() []domain.MarketType {
	return cm.markets
}

func (cm *ConnectionManager) Close() {
	for _, client := range cm.StreamClients {
		client.Close()
	}
}
