package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

type MarketSummary struct {
	Market      MarketType      `json:"market"`
	Symbol      string          `json:"symbol"`
	HighestBid  decimal.Decimal `json:"highestBid"`
	LowestAsk   decimal.Decimal `json:"lowestAsk"`
	MidPrice    decimal.Decimal `json:"midPrice"`
	Spread      decimal.Decimal `json:"spread"`
	MinQuantity decimal.Decimal `json:"minQuantity"`
}

// BandRatio is the normalized bid/ask imbalance inside a price band.
// Available is false when either side of the book is empty.
type BandRatio struct {
	Available bool            `json:"available"`
	Ratio     decimal.Decimal `json:"ratio"`
	BidVolume decimal.Decimal `json:"bidVolume"`
	AskVolume decimal.Decimal `json:"askVolume"`
	Delta     decimal.Decimal `json:"delta"`
}

// AnalysisRange is a band measured in percent distance from the mid price.
type AnalysisRange struct {
	Lower float64 `json:"lower" toml:"lower"`
	Upper float64 `json:"upper" toml:"upper"`
}

func (r AnalysisRange) Label(first bool) string {
	lower := strconv.FormatFloat(r.Lower, 'f', -1, 64)
	if first {
		lower = "0"
	}
	return lower + "-" + strconv.FormatFloat(r.Upper, 'f', -1, 64) + "%"
}

type RangeRatio struct {
	Label string        `json:"label"`
	Range AnalysisRange `json:"range"`
	BandRatio
}

// Summary returns best prices, mid and spread. ok is false when either side is empty.
func (ob *OrderBook) Summary() (*MarketSummary, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	highestBid, lowestAsk, mid, ok := ob.bestPricesLocked()
	if !ok {
		return nil, false
	}

	return &MarketSummary{
		Market:      ob.Market,
		Symbol:      ob.Symbol.String(),
		HighestBid:  highestBid,
		LowestAsk:   lowestAsk,
		MidPrice:    mid,
		Spread:      lowestAsk.Sub(highestBid),
		MinQuantity: ob.MinQuantity,
	}, true
}

func (ob *OrderBook) bestPricesLocked() (highestBid, lowestAsk, mid decimal.Decimal, ok bool) {
	bestBid, hasBid := ob.bids.Max()
	bestAsk, hasAsk := ob.asks.Min()
	if !hasBid || !hasAsk {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}

	mid = bestBid.Price.Add(bestAsk.Price).Div(two)
	return bestBid.Price, bestAsk.Price, mid, true
}

// FilteredOrders returns levels with quantity >= MinQuantity: bids by price
// descending, asks ascending, each at most limit long.
func (ob *OrderBook) FilteredOrders(limit int) (bids []PriceLevel, asks []PriceLevel) {
	if limit < 0 {
		limit = 0
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	bids = make([]PriceLevel, 0, limit)
	ob.bids.Descend(func(level PriceLevel) bool {
		if len(bids) >= limit {
			return false
		}
		if level.Quantity.GreaterThanOrEqual(ob.MinQuantity) {
			bids = append(bids, level)
		}
		return true
	})

	asks = make([]PriceLevel, 0, limit)
	ob.asks.Ascend(func(level PriceLevel) bool {
		if len(asks) >= limit {
			return false
		}
		if level.Quantity.GreaterThanOrEqual(ob.MinQuantity) {
			asks = append(asks, level)
		}
		return true
	})

	return bids, asks
}

// BandRatio sums bids priced at or above mid*(1-p/100) and asks priced at or
// below mid*(1+p/100).
func (ob *OrderBook) BandRatio(upperPercent float64) BandRatio {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.bandRatioLocked(upperPercent)
}

// BandRatioRange excludes the inner core: bids in [mid*(1-u/100), mid*(1-l/100))
// and asks in (mid*(1+l/100), mid*(1+u/100)].
func (ob *OrderBook) BandRatioRange(lowerPercent, upperPercent float64) BandRatio {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.bandRatioRangeLocked(lowerPercent, upperPercent)
}

// BandRatios evaluates every range under one lock. The first range is
// measured as a core band, the rest as annuli.
func (ob *OrderBook) BandRatios(ranges []AnalysisRange) []RangeRatio {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	result := make([]RangeRatio, 0, len(ranges))
	for i, r := range ranges {
		var ratio BandRatio
		if i == 0 {
			ratio = ob.bandRatioLocked(r.Upper)
		} else {
			ratio = ob.bandRatioRangeLocked(r.Lower, r.Upper)
		}

		result = append(result, RangeRatio{
			Label:     r.Label(i == 0),
			Range:     r,
			BandRatio: ratio,
		})
	}

	return result
}

func (ob *OrderBook) bandRatioLocked(upperPercent float64) BandRatio {
	_, _, mid, ok := ob.bestPricesLocked()
	if !ok {
		return unavailableBandRatio()
	}

	lowerBound := below(mid, upperPercent)
	upperBound := above(mid, upperPercent)

	bidVolume := decimal.Zero
	ob.bids.AscendGreaterOrEqual(PriceLevel{Price: lowerBound}, func(level PriceLevel) bool {
		bidVolume = bidVolume.Add(level.Quantity)
		return true
	})

	askVolume := decimal.Zero
	ob.asks.Ascend(func(level PriceLevel) bool {
		if level.Price.GreaterThan(upperBound) {
			return false
		}
		askVolume = askVolume.Add(level.Quantity)
		return true
	})

	return newBandRatio(bidVolume, askVolume)
}

func (ob *OrderBook) bandRatioRangeLocked(lowerPercent, upperPercent float64) BandRatio {
	_, _, mid, ok := ob.bestPricesLocked()
	if !ok {
		return unavailableBandRatio()
	}

	outerLower := below(mid, upperPercent)
	innerLower := below(mid, lowerPercent)
	innerUpper := above(mid, lowerPercent)
	outerUpper := above(mid, upperPercent)

	bidVolume := decimal.Zero
	ob.bids.AscendRange(PriceLevel{Price: outerLower}, PriceLevel{Price: innerLower}, func(level PriceLevel) bool {
		bidVolume = bidVolume.Add(level.Quantity)
		return true
	})

	askVolume := decimal.Zero
	ob.asks.AscendGreaterOrEqual(PriceLevel{Price: innerUpper}, func(level PriceLevel) bool {
		if level.Price.GreaterThan(outerUpper) {
			return false
		}
		if level.Price.GreaterThan(innerUpper) {
			askVolume = askVolume.Add(level.Quantity)
		}
		return true
	})

	return newBandRatio(bidVolume, askVolume)
}

func below(mid decimal.Decimal, percent float64) decimal.Decimal {
	return mid.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(percent).Div(hundred)))
}

func above(mid decimal.Decimal, percent float64) decimal.Decimal {
	return mid.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(percent).Div(hundred)))
}

func newBandRatio(bidVolume, askVolume decimal.Decimal) BandRatio {
	delta := bidVolume.Sub(askVolume)
	total := bidVolume.Add(askVolume)

	ratio := decimal.Zero
	if !total.IsZero() {
		ratio = delta.Div(total)
	}

	return BandRatio{
		Available: true,
		Ratio:     ratio,
		BidVolume: bidVolume,
		AskVolume: askVolume,
		Delta:     delta,
	}
}

func unavailableBandRatio() BandRatio {
	return BandRatio{
		Ratio:     decimal.Zero,
		BidVolume: decimal.Zero,
		AskVolume: decimal.Zero,
		Delta:     decimal.Zero,
	}
}

// PendingChanges returns the signed deltas recorded since the last flush.
func (ob *OrderBook) PendingChanges() (bids []PriceLevel, asks []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return sortedLevels(ob.pendingChanges.bids, true), sortedLevels(ob.pendingChanges.asks, false)
}

// RemovedOrders returns the last known quantity of removed significant levels.
func (ob *OrderBook) RemovedOrders() (bids []PriceLevel, asks []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return sortedLevels(ob.removedOrders.bids, true), sortedLevels(ob.removedOrders.asks, false)
}

// FlushChanges clears pending changes and removed orders for both sides.
func (ob *OrderBook) FlushChanges() {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.pendingChanges = newBookChanges()
	ob.removedOrders = newBookChanges()
}
