package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-cryptomarkets-depth/config"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	"github.com/spooky-finn/go-cryptomarkets-depth/provider/binance"
	"github.com/stretchr/testify/require"
)

func levels(pairs ...string) []domain.PriceLevel {
	result := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		result = append(result, domain.PriceLevel{
			Price:    decimal.RequireFromString(pairs[i]),
			Quantity: decimal.RequireFromString(pairs[i+1]),
		})
	}
	return result
}

func mustSymbol(t *testing.T, s string) *domain.MarketSymbol {
	t.Helper()
	symbol, err := domain.NewMarketSymbolFromString(s)
	require.NoError(t, err)
	return symbol
}

// fakeSyncAPI serves queued snapshots per market. Calls listed in failOn
// return a SnapshotError instead.
type fakeSyncAPI struct {
	mu        sync.Mutex
	snapshots map[domain.MarketType][]*domain.OrderBookSnapshot
	failOn    map[int]bool
	calls     int
}

func newFakeSyncAPI() *fakeSyncAPI {
	return &fakeSyncAPI{
		snapshots: make(map[domain.MarketType][]*domain.OrderBookSnapshot),
		failOn:    make(map[int]bool),
	}
}

func (f *fakeSyncAPI) push(market domain.MarketType, cursor int64, bids, asks []domain.PriceLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshots[market] = append(f.snapshots[market], &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_Provider,
		Market:       market,
		LastUpdateId: cursor,
		Bids:         bids,
		Asks:         asks,
	})
}

func (f *fakeSyncAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, market domain.MarketType, limit int) (*domain.OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failOn[f.calls] {
		return nil, &domain.SnapshotError{Endpoint: "fake", StatusCode: 503, Err: errors.New("unavailable")}
	}

	queue := f.snapshots[market]
	if len(queue) == 0 {
		return nil, &domain.SnapshotError{Endpoint: "fake", Err: errors.New("no snapshot queued")}
	}

	snapshot := queue[0]
	if len(queue) > 1 {
		f.snapshots[market] = queue[1:]
	}
	return snapshot, nil
}

type fakePublisher struct {
	reports []*domain.AnalysisReport
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, report *domain.AnalysisReport) error {
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, report)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Warmup.EnableWarmupCheck = false
	cfg.SnapshotRetry = config.RetryConfig{
		MaxAttempts: 3,
		MinBackoff:  config.Duration{Duration: time.Millisecond},
		MaxBackoff:  config.Duration{Duration: 2 * time.Millisecond},
	}
	return &cfg
}

func newSyncUseCase(cfg *config.Config, api domain.ProviderSyncAPI) (*OrderBookSyncUseCase, *domain.OrderBookStorage) {
	storage := domain.NewOrderBookStorage()
	validators := func(market domain.MarketType) (domain.IDepthUpdateValidator, error) {
		return binance.NewDepthUpdateValidator(market, cfg.Binance.FuturesContinuityCheck)
	}
	return NewOrderBookSyncUseCase(cfg, storage, api, validators), storage
}

func spotUpdate(first, final int64, bids, asks []domain.PriceLevel) *domain.SpotDepthUpdate {
	return &domain.SpotDepthUpdate{
		Symbol:        "BTCUSDT",
		FirstUpdateID: first,
		FinalUpdateID: final,
		Bids:          bids,
		Asks:          asks,
	}
}
