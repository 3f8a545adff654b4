package domain

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "orderbook")

// OrderBookStorage is the registry of every monitored book, keyed by market
// and symbol. It is created by the process entry point and injected.
type OrderBookStorage struct {
	storage map[MarketType]map[string]*OrderbookMaintainer
	mu      sync.RWMutex
}

func NewOrderBookStorage() *OrderBookStorage {
	return &OrderBookStorage{
		storage: make(map[MarketType]map[string]*OrderbookMaintainer),
	}
}

func (o *OrderBookStorage) Add(maintainer *OrderbookMaintainer) {
	ob := maintainer.OrderBook()

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.storage[ob.Market]; !ok {
		o.storage[ob.Market] = make(map[string]*OrderbookMaintainer)
	}

	o.storage[ob.Market][ob.Symbol.String()] = maintainer
}

func (o *OrderBookStorage) Get(market MarketType, symbol *MarketSymbol) (*OrderbookMaintainer, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	books, ok := o.storage[market]
	if !ok {
		return nil, ErrMarketNotFound
	}

	maintainer, ok := books[symbol.String()]
	if !ok {
		return nil, ErrOrderBookNotFound
	}

	return maintainer, nil
}

func (o *OrderBookStorage) GetOrderBook(market MarketType, symbol *MarketSymbol) (*OrderBook, error) {
	maintainer, err := o.Get(market, symbol)
	if err != nil {
		return nil, err
	}

	return maintainer.OrderBook(), nil
}

func (o *OrderBookStorage) OrderBookCount(market MarketType) int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if _, ok := o.storage[market]; !ok {
		logger.WithField("market", market).Debug("market not found")
		return 0
	}

	return len(o.storage[market])
}

// All returns every maintainer ordered by market and symbol.
func (o *OrderBookStorage) All() []*OrderbookMaintainer {
	o.mu.RLock()
	result := make([]*OrderbookMaintainer, 0)
	for _, books := range o.storage {
		for _, maintainer := range books {
			result = append(result, maintainer)
		}
	}
	o.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].OrderBook(), result[j].OrderBook()
		if a.Market != b.Market {
			return a.Market > b.Market
		}
		return a.Symbol.String() < b.Symbol.String()
	})

	return result
}

// SystemReady is the conjunction of IsReady over every registered book.
func (o *OrderBookStorage) SystemReady() bool {
	for _, maintainer := range o.All() {
		if !maintainer.OrderBook().IsReady() {
			return false
		}
	}

	return true
}

// ReadyCount returns how many books passed warmup and how many are registered.
func (o *OrderBookStorage) ReadyCount() (ready int, total int) {
	all := o.All()
	for _, maintainer := range all {
		if maintainer.OrderBook().IsReady() {
			ready++
		}
	}

	return ready, len(all)
}
