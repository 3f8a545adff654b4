package usecase

import (
	"context"
	"errors"

	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	promclient "github.com/spooky-finn/go-cryptomarkets-depth/infrastructure/prometheus"
)

// DepthFeedUseCase routes decoded diff events of one market to their books.
type DepthFeedUseCase struct {
	storage     *domain.OrderBookStorage
	sync        *OrderBookSyncUseCase
	quoteAssets []string
}

func NewDepthFeedUseCase(storage *domain.OrderBookStorage, sync *OrderBookSyncUseCase, quoteAssets []string) *DepthFeedUseCase {
	return &DepthFeedUseCase{
		storage:     storage,
		sync:        sync,
		quoteAssets: quoteAssets,
	}
}

// Run consumes events until the channel closes or ctx is cancelled. Each
// event is applied synchronously; a failed gap resync is handed to a
// background retry so the feed keeps flowing for the other books. A book
// left unsynced after that retry gave up is rescheduled by its next event.
func (f *DepthFeedUseCase) Run(ctx context.Context, market domain.MarketType, events <-chan domain.DepthEvent) error {
	routes := make(map[string]*domain.OrderbookMaintainer)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				logger.WithField("market", market).Info("depth feed closed")
				return nil
			}

			maintainer, err := f.route(routes, market, event.Stream)
			if err != nil {
				logger.WithField("market", market).
					WithField("stream", event.Stream).
					WithError(err).
					Debug("no order book for stream")
				continue
			}

			f.ingest(ctx, maintainer, event.Update)
		}
	}
}

func (f *DepthFeedUseCase) route(routes map[string]*domain.OrderbookMaintainer, market domain.MarketType, stream string) (*domain.OrderbookMaintainer, error) {
	if maintainer, ok := routes[stream]; ok {
		return maintainer, nil
	}

	symbol, err := domain.NewMarketSymbolFromPair(stream, f.quoteAssets)
	if err != nil {
		return nil, err
	}

	maintainer, err := f.storage.Get(market, symbol)
	if err != nil {
		return nil, err
	}

	routes[stream] = maintainer
	return maintainer, nil
}

func (f *DepthFeedUseCase) ingest(ctx context.Context, maintainer *domain.OrderbookMaintainer, update domain.DepthUpdate) {
	ob := maintainer.OrderBook()
	labels := []string{ob.Market.String(), ob.Symbol.String()}

	result, err := maintainer.Ingest(ctx, update)
	switch result {
	case domain.IngestResult_Applied:
		promclient.UpdatesAppliedCounter.WithLabelValues(labels...).Inc()
	case domain.IngestResult_Dropped:
		promclient.UpdatesDroppedCounter.WithLabelValues(labels...).Inc()
	case domain.IngestResult_Resynced:
		promclient.ResyncsCounter.WithLabelValues(labels...).Inc()
		promclient.OrderBookSyncedGauge.WithLabelValues(labels...).Set(1)
	}

	if err == nil {
		if result == domain.IngestResult_Dropped && maintainer.NeedsResync() && f.sync.ResyncInBackground(ctx, maintainer) {
			logger.WithField("symbol", ob.Symbol.String()).
				WithField("market", ob.Market).
				Warn("order book is unsynced, reload scheduled")
		}
		return
	}

	if errors.Is(err, domain.ErrUnexpectedUpdateKind) {
		logger.WithField("symbol", ob.Symbol.String()).
			WithField("market", ob.Market).
			WithError(err).
			Error("update rejected")
		return
	}

	promclient.ResyncsCounter.WithLabelValues(labels...).Inc()
	promclient.SnapshotErrorsCounter.WithLabelValues(labels...).Inc()
	promclient.OrderBookSyncedGauge.WithLabelValues(labels...).Set(0)

	logger.WithField("symbol", ob.Symbol.String()).
		WithField("market", ob.Market).
		WithError(err).
		Warn("resync failed, retrying in background")

	f.sync.ResyncInBackground(ctx, maintainer)
}
