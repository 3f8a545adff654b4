package domain

import (
	"context"
	"time"
)

// MarketReport is one book's analytics at report time.
type MarketReport struct {
	Market  MarketType     `json:"market"`
	Summary *MarketSummary `json:"summary"`
	Bids    []PriceLevel   `json:"bids"`
	Asks    []PriceLevel   `json:"asks"`
	Ratios  []RangeRatio   `json:"ratios"`

	PendingBids []PriceLevel `json:"pendingBids"`
	PendingAsks []PriceLevel `json:"pendingAsks"`
	RemovedBids []PriceLevel `json:"removedBids"`
	RemovedAsks []PriceLevel `json:"removedAsks"`

	Warmup WarmupStatus `json:"warmup"`
}

type AnalysisReport struct {
	Symbol      string         `json:"symbol"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Markets     []MarketReport `json:"markets"`
}

// ReportPublisher hands reports to external subscribers (webhooks, charts).
type ReportPublisher interface {
	Publish(ctx context.Context, report *AnalysisReport) error
}

// BuildMarketReport collects the read-side analytics of ob. ok is false when
// either side of the book is empty.
func BuildMarketReport(ob *OrderBook, displayCount int, ranges []AnalysisRange) (MarketReport, bool) {
	summary, ok := ob.Summary()
	if !ok {
		return MarketReport{}, false
	}

	report := MarketReport{
		Market:  ob.Market,
		Summary: summary,
		Ratios:  ob.BandRatios(ranges),
		Warmup:  ob.WarmupStatus(),
	}
	report.Bids, report.Asks = ob.FilteredOrders(displayCount)
	report.PendingBids, report.PendingAsks = ob.PendingChanges()
	report.RemovedBids, report.RemovedAsks = ob.RemovedOrders()

	return report, true
}
