package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func levels(pairs ...string) []PriceLevel {
	if len(pairs)%2 != 0 {
		panic("levels expects price/qty pairs")
	}
	result := make([]PriceLevel, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		result = append(result, PriceLevel{Price: dec(pairs[i]), Quantity: dec(pairs[i+1])})
	}
	return result
}

func levelStrings(depth []PriceLevel) [][]string {
	return SerializePriceLevels(depth)
}

// spotRuleValidator mirrors the U <= cursor+1 <= u rule.
type spotRuleValidator struct{}

func (spotRuleValidator) IsValidUpd(update DepthUpdate, cursor SequenceCursor) error {
	upd, ok := update.(*SpotDepthUpdate)
	if !ok {
		return ErrUnexpectedUpdateKind
	}
	next := cursor.Sequence + 1
	if upd.FirstUpdateID <= next && next <= upd.FinalUpdateID {
		return nil
	}
	if upd.FirstUpdateID > next {
		return ErrOrderBookUpdateIsOutOfSequence
	}
	return ErrOrderBookUpdateIsOutdated
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSyncAPI struct {
	mu        sync.Mutex
	snapshots []*OrderBookSnapshot
	err       error
	calls     int
}

func (f *fakeSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *MarketSymbol, market MarketType, limit int) (*OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.snapshots) == 0 {
		return &OrderBookSnapshot{Source: OrderBookSource_Provider, Market: market}, nil
	}
	snapshot := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return snapshot, nil
}

func newSpotBook(t *testing.T, minQuantity string, warmup WarmupConfig) *OrderBook {
	t.Helper()
	symbol, err := NewMarketSymbol("BTC", "USDT")
	if err != nil {
		t.Fatal(err)
	}
	return NewOrderBook(MarketType_Spot, symbol, dec(minQuantity), warmup)
}

func spotUpdate(first, final int64, bids, asks []PriceLevel) *SpotDepthUpdate {
	return &SpotDepthUpdate{
		Symbol:        "BTCUSDT",
		FirstUpdateID: first,
		FinalUpdateID: final,
		Bids:          bids,
		Asks:          asks,
	}
}
