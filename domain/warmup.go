package domain

import (
	"time"

	"github.com/google/btree"
)

// WarmupConfig decides when a freshly loaded book is representative enough
// to be consumed downstream.
type WarmupConfig struct {
	StartupWaitTime   time.Duration
	MinUpdateCount    int
	MinOrderCount     int
	EnableWarmupCheck bool
}

type WarmupStatus struct {
	Ready          bool
	UpdateCount    int
	Elapsed        time.Duration
	QualifyingBids int
	QualifyingAsks int
}

type warmupState struct {
	updateCount   int
	firstUpdateAt time.Time
	warmedUp      bool
}

// recordUpdateLocked counts an applied diff and latches warmup when the
// criteria are met.
func (ob *OrderBook) recordUpdateLocked() {
	ob.warmup.updateCount++
	if ob.warmup.firstUpdateAt.IsZero() {
		ob.warmup.firstUpdateAt = ob.now()
	}

	if !ob.warmup.warmedUp {
		ob.checkWarmupLocked()
	}
}

func (ob *OrderBook) checkWarmupLocked() bool {
	if ob.warmup.warmedUp {
		return true
	}

	if !ob.warmupConfig.EnableWarmupCheck {
		ob.warmup.warmedUp = true
		return true
	}

	if ob.warmup.firstUpdateAt.IsZero() {
		return false
	}

	elapsed := ob.now().Sub(ob.warmup.firstUpdateAt)
	if elapsed < ob.warmupConfig.StartupWaitTime {
		return false
	}
	if ob.warmup.updateCount < ob.warmupConfig.MinUpdateCount {
		return false
	}
	if ob.qualifyingCountLocked(ob.bids) < ob.warmupConfig.MinOrderCount {
		return false
	}
	if ob.qualifyingCountLocked(ob.asks) < ob.warmupConfig.MinOrderCount {
		return false
	}

	ob.warmup.warmedUp = true
	logger.WithField("symbol", ob.Symbol.String()).
		WithField("market", ob.Market).
		WithField("elapsed", elapsed).
		WithField("updates", ob.warmup.updateCount).
		Info("order book warmed up")
	return true
}

func (ob *OrderBook) qualifyingCountLocked(side *btree.BTreeG[PriceLevel]) int {
	count := 0
	side.Ascend(func(level PriceLevel) bool {
		if level.Quantity.GreaterThanOrEqual(ob.MinQuantity) {
			count++
		}
		return true
	})
	return count
}

// IsReady reports whether the book passed warmup. Once true it stays true
// until a gap-driven resync re-arms it.
func (ob *OrderBook) IsReady() bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.checkWarmupLocked()
}

func (ob *OrderBook) WarmupStatus() WarmupStatus {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	status := WarmupStatus{
		Ready:          ob.checkWarmupLocked(),
		UpdateCount:    ob.warmup.updateCount,
		QualifyingBids: ob.qualifyingCountLocked(ob.bids),
		QualifyingAsks: ob.qualifyingCountLocked(ob.asks),
	}
	if !ob.warmup.firstUpdateAt.IsZero() {
		status.Elapsed = ob.now().Sub(ob.warmup.firstUpdateAt)
	}

	return status
}
