package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

type OrderBookSource string
type OrderBookStatus string

const (
	OrderBookSource_Provider       OrderBookSource = "Provider"
	OrderBookSource_LocalOrderBook OrderBookSource = "LocalOrderBook"

	OrderBookStatus_Unsynced OrderBookStatus = "Unsynced"
	OrderBookStatus_Synced   OrderBookStatus = "Synced"
)

const btreeDegree = 32

type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBookSnapshot is a full copy of one side pair of the book. LastUpdateId
// is the sequence cursor the snapshot is valid at: the last update id for
// spot and the server event time for futures.
type OrderBookSnapshot struct {
	Source       OrderBookSource `json:"source"`
	Market       MarketType      `json:"market"`
	LastUpdateId int64           `json:"lastUpdateId"`
	Bids         []PriceLevel    `json:"bids"`
	Asks         []PriceLevel    `json:"asks"`
}

// SequenceCursor tracks the position of the book in the diff stream.
// LastFinalUpdateID is zero until known.
type SequenceCursor struct {
	Sequence          int64
	LastFinalUpdateID int64
}

type bookChanges struct {
	bids map[string]PriceLevel
	asks map[string]PriceLevel
}

func newBookChanges() bookChanges {
	return bookChanges{
		bids: make(map[string]PriceLevel),
		asks: make(map[string]PriceLevel),
	}
}

// OrderBook is the in-memory replica of one (symbol, market) book. Every read
// and write goes through mu.
type OrderBook struct {
	Market      MarketType
	Symbol      *MarketSymbol
	MinQuantity decimal.Decimal

	bids *btree.BTreeG[PriceLevel]
	asks *btree.BTreeG[PriceLevel]

	pendingChanges bookChanges
	removedOrders  bookChanges

	cursor         SequenceCursor
	status         OrderBookStatus
	lastUpdateTime time.Time

	warmupConfig WarmupConfig
	warmup       warmupState
	now          func() time.Time

	mu sync.Mutex
}

func NewOrderBook(market MarketType, symbol *MarketSymbol, minQuantity decimal.Decimal, warmup WarmupConfig) *OrderBook {
	return &OrderBook{
		Market:      market,
		Symbol:      symbol,
		MinQuantity: minQuantity,

		bids: btree.NewG[PriceLevel](btreeDegree, lessByPrice),
		asks: btree.NewG[PriceLevel](btreeDegree, lessByPrice),

		pendingChanges: newBookChanges(),
		removedOrders:  newBookChanges(),

		status:       OrderBookStatus_Unsynced,
		warmupConfig: warmup,
		now:          time.Now,
	}
}

func lessByPrice(a, b PriceLevel) bool {
	return a.Price.LessThan(b.Price)
}

// LoadSnapshot replaces both sides with the snapshot and marks the book synced.
func (ob *OrderBook) LoadSnapshot(snapshot *OrderBookSnapshot) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.clearSidesLocked()
	for _, level := range snapshot.Bids {
		if level.Quantity.IsPositive() {
			ob.bids.ReplaceOrInsert(level)
		}
	}
	for _, level := range snapshot.Asks {
		if level.Quantity.IsPositive() {
			ob.asks.ReplaceOrInsert(level)
		}
	}

	ob.cursor = SequenceCursor{Sequence: snapshot.LastUpdateId}
	if ob.Market == MarketType_Spot {
		ob.cursor.LastFinalUpdateID = snapshot.LastUpdateId
	}
	ob.status = OrderBookStatus_Synced
	ob.lastUpdateTime = ob.now()
}

// Reset empties both sides, marks the book unsynced and re-arms warmup.
// Pending changes and removed orders are left for the next flush.
func (ob *OrderBook) Reset() {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.clearSidesLocked()
	ob.status = OrderBookStatus_Unsynced
	ob.warmup = warmupState{}
}

func (ob *OrderBook) clearSidesLocked() {
	ob.bids.Clear(false)
	ob.asks.Clear(false)
}

// ApplyUpdate validates the update against the cursor and applies it. A nil
// error means the book moved to update.NextCursor().
func (ob *OrderBook) ApplyUpdate(update DepthUpdate, validator IDepthUpdateValidator) error {
	if update.Market() != ob.Market {
		return fmt.Errorf("%w: %s update for %s book", ErrUnexpectedUpdateKind, update.Market(), ob.Market)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if ob.status != OrderBookStatus_Synced {
		return ErrOrderBookNotSynced
	}

	if err := validator.IsValidUpd(update, ob.cursor); err != nil {
		return err
	}

	bids, asks := update.Changes()
	ob.updateDepth(ob.bids, bids, ob.pendingChanges.bids, ob.removedOrders.bids)
	ob.updateDepth(ob.asks, asks, ob.pendingChanges.asks, ob.removedOrders.asks)

	next := update.NextCursor()
	if next.Sequence > ob.cursor.Sequence {
		ob.cursor.Sequence = next.Sequence
	}
	ob.cursor.LastFinalUpdateID = next.LastFinalUpdateID
	ob.lastUpdateTime = ob.now()

	ob.recordUpdateLocked()
	return nil
}

func (ob *OrderBook) updateDepth(side *btree.BTreeG[PriceLevel], changes []PriceLevel, pending, removed map[string]PriceLevel) {
	for _, level := range changes {
		key := level.Price.String()

		oldQty := decimal.Zero
		if old, ok := side.Get(PriceLevel{Price: level.Price}); ok {
			oldQty = old.Quantity
		}

		if level.Quantity.IsZero() {
			side.Delete(PriceLevel{Price: level.Price})
			if oldQty.GreaterThan(ob.MinQuantity) {
				pending[key] = PriceLevel{Price: level.Price, Quantity: oldQty.Neg()}
				removed[key] = PriceLevel{Price: level.Price, Quantity: oldQty}
			}
			continue
		}

		side.ReplaceOrInsert(level)
		change := level.Quantity.Sub(oldQty)
		if change.Abs().GreaterThan(ob.MinQuantity) {
			pending[key] = PriceLevel{Price: level.Price, Quantity: change}
		}
	}
}

func (ob *OrderBook) Status() OrderBookStatus {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.status
}

func (ob *OrderBook) Cursor() SequenceCursor {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.cursor
}

func (ob *OrderBook) LastUpdateTime() time.Time {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.lastUpdateTime
}

// TakeSnapshot copies the top limit levels of each side. limit <= 0 copies everything.
func (ob *OrderBook) TakeSnapshot(limit int) *OrderBookSnapshot {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bids := make([]PriceLevel, 0, ob.bids.Len())
	ob.bids.Descend(func(level PriceLevel) bool {
		bids = append(bids, level)
		return true
	})

	asks := make([]PriceLevel, 0, ob.asks.Len())
	ob.asks.Ascend(func(level PriceLevel) bool {
		asks = append(asks, level)
		return true
	})

	return &OrderBookSnapshot{
		Source:       OrderBookSource_LocalOrderBook,
		Market:       ob.Market,
		LastUpdateId: ob.cursor.Sequence,
		Bids:         ob.limitDepth(bids, limit),
		Asks:         ob.limitDepth(asks, limit),
	}
}

func (ob *OrderBook) limitDepth(depth []PriceLevel, limit int) []PriceLevel {
	if limit > 0 && len(depth) > limit {
		return depth[:limit]
	}

	return depth
}

// ParsePriceLevels converts exchange [price, qty] string pairs. Extra
// elements in a pair are ignored.
func ParsePriceLevels(depth [][]string) ([]PriceLevel, error) {
	result := make([]PriceLevel, len(depth))
	for i, level := range depth {
		if len(level) < 2 {
			return nil, fmt.Errorf("price level %d: expected [price, qty], got %v", i, level)
		}

		price, err := decimal.NewFromString(level[0])
		if err != nil {
			return nil, fmt.Errorf("price level %d: price %q: %w", i, level[0], err)
		}
		quantity, err := decimal.NewFromString(level[1])
		if err != nil {
			return nil, fmt.Errorf("price level %d: quantity %q: %w", i, level[1], err)
		}
		if quantity.IsNegative() {
			return nil, fmt.Errorf("price level %d: negative quantity %s", i, level[1])
		}

		result[i] = PriceLevel{Price: price, Quantity: quantity}
	}

	return result, nil
}

func SerializePriceLevels(depth []PriceLevel) [][]string {
	result := make([][]string, len(depth))
	for i, level := range depth {
		result[i] = []string{level.Price.String(), level.Quantity.String()}
	}

	return result
}

func sortedLevels(levels map[string]PriceLevel, descending bool) []PriceLevel {
	result := make([]PriceLevel, 0, len(levels))
	for _, level := range levels {
		result = append(result, level)
	}

	sort.Slice(result, func(i, j int) bool {
		if descending {
			return result[i].Price.GreaterThan(result[j].Price)
		}
		return result[i].Price.LessThan(result[j].Price)
	})

	return result
}
