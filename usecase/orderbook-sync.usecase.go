package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-cryptomarkets-depth/config"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	promclient "github.com/spooky-finn/go-cryptomarkets-depth/infrastructure/prometheus"
)

const STARTING = "starting"

var logger = logrus.WithField("module", "usecase")

var ErrOrderBookInitializing = errors.New("order book is being initialized")

// ValidatorFactory returns the diff validation protocol of a market.
type ValidatorFactory func(market domain.MarketType) (domain.IDepthUpdateValidator, error)

// OrderBookSyncUseCase creates books, loads their first snapshot and reloads
// them in the background when a gap-driven resync fails.
type OrderBookSyncUseCase struct {
	config       *config.Config
	storage      *domain.OrderBookStorage
	syncAPI      domain.ProviderSyncAPI
	newValidator ValidatorFactory

	waitingRoom sync.Map
	wg          sync.WaitGroup
}

func NewOrderBookSyncUseCase(
	cfg *config.Config,
	storage *domain.OrderBookStorage,
	syncAPI domain.ProviderSyncAPI,
	newValidator ValidatorFactory,
) *OrderBookSyncUseCase {
	return &OrderBookSyncUseCase{
		config:       cfg,
		storage:      storage,
		syncAPI:      syncAPI,
		newValidator: newValidator,

		waitingRoom: sync.Map{},
	}
}

// Initialize builds the book of (symbol, market), loads its first snapshot
// with retry and registers it. A book that is already registered is left as is.
func (o *OrderBookSyncUseCase) Initialize(ctx context.Context, symbol *domain.MarketSymbol, market domain.MarketType) error {
	key := o.getWaitingRoomKey(market, symbol)
	if _, loaded := o.waitingRoom.LoadOrStore(key, STARTING); loaded {
		return ErrOrderBookInitializing
	}
	defer o.waitingRoom.Delete(key)

	if _, err := o.storage.Get(market, symbol); err == nil {
		return nil
	}

	validator, err := o.newValidator(market)
	if err != nil {
		return err
	}

	orderBook := domain.NewOrderBook(market, symbol, o.config.MinQuantity(symbol, market), o.config.DomainWarmup())
	maintainer := domain.NewOrderBookMaintainer(orderBook, o.syncAPI, validator, o.config.SnapshotLimit(market))

	if err := o.withRetry(ctx, maintainer); err != nil {
		return fmt.Errorf("initialize %s %s: %w", market, symbol.String(), err)
	}

	o.storage.Add(maintainer)
	promclient.OpenOrderBookGauge.Inc()

	logger.WithField("symbol", symbol.String()).
		WithField("market", market).
		WithField("minQuantity", orderBook.MinQuantity.String()).
		Info("order book is added to the runtime storage")

	return nil
}

// InitializeAll initializes every (symbol, market) pair one after another so
// that the snapshot requests stay inside the rate gate. A pair that fails is
// skipped; the failures are returned joined once every pair was tried.
func (o *OrderBookSyncUseCase) InitializeAll(ctx context.Context, symbols []*domain.MarketSymbol, markets []domain.MarketType) error {
	var errs []error

	for _, market := range markets {
		for _, symbol := range symbols {
			if ctx.Err() != nil {
				return errors.Join(append(errs, ctx.Err())...)
			}

			if err := o.Initialize(ctx, symbol, market); err != nil {
				logger.WithField("symbol", symbol.String()).
					WithField("market", market).
					WithError(err).
					Error("order book is not initialized")
				errs = append(errs, err)
			}
		}
	}

	ready, total := o.storage.ReadyCount()
	logger.WithField("ready", ready).
		WithField("total", total).
		WithField("failed", len(errs)).
		Info("order books initialized")

	return errors.Join(errs...)
}

// ResyncInBackground reloads the book with retry on its own goroutine. It
// returns false when a reload of the same book is already scheduled.
func (o *OrderBookSyncUseCase) ResyncInBackground(ctx context.Context, maintainer *domain.OrderbookMaintainer) bool {
	ob := maintainer.OrderBook()
	key := "resync-" + o.getWaitingRoomKey(ob.Market, ob.Symbol)
	if _, loaded := o.waitingRoom.LoadOrStore(key, STARTING); loaded {
		return false
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.waitingRoom.Delete(key)

		if err := o.withRetry(ctx, maintainer); err != nil {
			logger.WithField("symbol", ob.Symbol.String()).
				WithField("market", ob.Market).
				WithError(err).
				Error("background resync gave up")
		}
	}()

	return true
}

// Wait blocks until every background resync has returned.
func (o *OrderBookSyncUseCase) Wait() {
	o.wg.Wait()
}

// GetOrderBookSnapshot returns the local snapshot when the book is registered
// and synced, otherwise the snapshot straight from the exchange.
func (o *OrderBookSyncUseCase) GetOrderBookSnapshot(
	ctx context.Context, market domain.MarketType, symbol *domain.MarketSymbol, limit int,
) (*domain.OrderBookSnapshot, error) {
	if _, ok := o.waitingRoom.Load(o.getWaitingRoomKey(market, symbol)); ok {
		logger.WithField("symbol", symbol.String()).
			WithField("market", market).
			Debug("order book is initializing, provider snapshot returned")
		return o.syncAPI.OrderBookSnapshot(ctx, symbol, market, limit)
	}

	orderBook, err := o.storage.GetOrderBook(market, symbol)
	if err != nil || orderBook.Status() != domain.OrderBookStatus_Synced {
		return o.syncAPI.OrderBookSnapshot(ctx, symbol, market, limit)
	}

	return orderBook.TakeSnapshot(limit), nil
}

func (o *OrderBookSyncUseCase) withRetry(ctx context.Context, maintainer *domain.OrderbookMaintainer) error {
	ob := maintainer.OrderBook()
	labels := []string{ob.Market.String(), ob.Symbol.String()}
	retry := o.config.SnapshotRetry

	b := &backoff.Backoff{
		Min:    retry.MinBackoff.Duration,
		Max:    retry.MaxBackoff.Duration,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 1; ; attempt++ {
		err := maintainer.Resync(ctx)
		if err == nil {
			promclient.OrderBookSyncedGauge.WithLabelValues(labels...).Set(1)
			return nil
		}
		if errors.Is(err, domain.ErrResyncInProgress) {
			return err
		}

		promclient.SnapshotErrorsCounter.WithLabelValues(labels...).Inc()
		promclient.OrderBookSyncedGauge.WithLabelValues(labels...).Set(0)

		if attempt >= retry.MaxAttempts || ctx.Err() != nil {
			return fmt.Errorf("snapshot failed after %d attempts: %w", attempt, err)
		}

		wait := retryWait(b, retry, attempt, err)
		logger.WithField("symbol", ob.Symbol.String()).
			WithField("market", ob.Market).
			WithField("attempt", attempt).
			WithField("wait", wait).
			WithError(err).
			Warn("snapshot failed, retrying")

		if err := sleepContext(ctx, wait); err != nil {
			return err
		}
	}
}

// retryWait grows exponentially, except when the exchange throttles us: then
// it grows linearly from the cap so the ban window can pass.
func retryWait(b *backoff.Backoff, retry config.RetryConfig, attempt int, err error) time.Duration {
	wait := b.Duration()

	var snapshotErr *domain.SnapshotError
	if errors.As(err, &snapshotErr) && snapshotErr.IsThrottled() {
		if throttled := retry.MaxBackoff.Duration * time.Duration(attempt); throttled > wait {
			return throttled
		}
	}

	return wait
}

func (o *OrderBookSyncUseCase) getWaitingRoomKey(market domain.MarketType, symbol *domain.MarketSymbol) string {
	return fmt.Sprintf("%s-%s", market, symbol.String())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
