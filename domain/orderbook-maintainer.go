package domain

import (
	"context"
	"errors"
	"sync/atomic"
)

type IngestResult string

const (
	IngestResult_Applied  IngestResult = "applied"
	IngestResult_Dropped  IngestResult = "dropped"
	IngestResult_Resynced IngestResult = "resynced"
)

// ProviderSyncAPI fetches a full depth snapshot over request/response.
type ProviderSyncAPI interface {
	OrderBookSnapshot(ctx context.Context, symbol *MarketSymbol, market MarketType, limit int) (*OrderBookSnapshot, error)
}

// OrderbookMaintainer keeps one order book consistent with the diff stream
// and reloads it from a snapshot when a gap is detected.
type OrderbookMaintainer struct {
	orderBook *OrderBook
	syncAPI   ProviderSyncAPI
	limit     int

	depthUpdateValidator IDepthUpdateValidator

	resyncing atomic.Bool
}

func NewOrderBookMaintainer(
	orderBook *OrderBook,
	syncAPI ProviderSyncAPI,
	depthUpdateValidator IDepthUpdateValidator,
	limit int,
) *OrderbookMaintainer {
	return &OrderbookMaintainer{
		orderBook:            orderBook,
		syncAPI:              syncAPI,
		limit:                limit,
		depthUpdateValidator: depthUpdateValidator,
	}
}

func (m *OrderbookMaintainer) OrderBook() *OrderBook {
	return m.orderBook
}

// Ingest applies one diff event. Stale updates and updates that arrive while
// the book is reloading are dropped without error. A gap triggers a resync;
// a failure of that resync is returned and leaves the book empty.
func (m *OrderbookMaintainer) Ingest(ctx context.Context, update DepthUpdate) (IngestResult, error) {
	err := m.orderBook.ApplyUpdate(update, m.depthUpdateValidator)
	switch {
	case err == nil:
		return IngestResult_Applied, nil
	case errors.Is(err, ErrOrderBookUpdateIsOutdated), errors.Is(err, ErrOrderBookNotSynced):
		return IngestResult_Dropped, nil
	case errors.Is(err, ErrOrderBookUpdateIsOutOfSequence):
		cursor := m.orderBook.Cursor()
		logger.WithField("symbol", m.orderBook.Symbol.String()).
			WithField("market", m.orderBook.Market).
			WithField("cursor", cursor.Sequence).
			WithField("next", update.NextCursor().Sequence).
			Warn("gap in depth stream, reloading snapshot")

		if err := m.Resync(ctx); err != nil {
			if errors.Is(err, ErrResyncInProgress) {
				return IngestResult_Dropped, nil
			}
			return IngestResult_Dropped, err
		}
		return IngestResult_Resynced, nil
	default:
		return IngestResult_Dropped, err
	}
}

// Resync clears the book, fetches a fresh snapshot without holding the book
// lock and swaps it in. Only one resync runs at a time per book.
func (m *OrderbookMaintainer) Resync(ctx context.Context) error {
	if !m.resyncing.CompareAndSwap(false, true) {
		return ErrResyncInProgress
	}
	defer m.resyncing.Store(false)

	m.orderBook.Reset()

	snapshot, err := m.syncAPI.OrderBookSnapshot(ctx, m.orderBook.Symbol, m.orderBook.Market, m.limit)
	if err != nil {
		return err
	}

	m.orderBook.LoadSnapshot(snapshot)
	logger.WithField("symbol", m.orderBook.Symbol.String()).
		WithField("market", m.orderBook.Market).
		WithField("cursor", snapshot.LastUpdateId).
		WithField("bids", len(snapshot.Bids)).
		WithField("asks", len(snapshot.Asks)).
		Info("order book snapshot loaded")

	return nil
}

func (m *OrderbookMaintainer) IsResyncing() bool {
	return m.resyncing.Load()
}

// NeedsResync reports whether the book is unsynced with no reload running,
// e.g. after every retry of a failed reload was used up.
func (m *OrderbookMaintainer) NeedsResync() bool {
	return !m.resyncing.Load() && m.orderBook.Status() == OrderBookStatus_Unsynced
}
