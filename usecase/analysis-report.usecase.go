package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spooky-finn/go-cryptomarkets-depth/config"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	"github.com/spooky-finn/go-cryptomarkets-depth/helpers"
)

// AnalysisReportUseCase periodically publishes per-symbol analytics and
// flushes the change accumulators of the books it reported on.
type AnalysisReportUseCase struct {
	storage      *domain.OrderBookStorage
	publisher    domain.ReportPublisher
	ranges       []domain.AnalysisRange
	displayCount int
	interval     time.Duration

	now func() time.Time
}

func NewAnalysisReportUseCase(cfg *config.Config, storage *domain.OrderBookStorage, publisher domain.ReportPublisher) *AnalysisReportUseCase {
	return &AnalysisReportUseCase{
		storage:      storage,
		publisher:    publisher,
		ranges:       cfg.AnalysisRanges,
		displayCount: cfg.Report.DisplayOrderCount,
		interval:     cfg.Report.Interval.Duration,
		now:          time.Now,
	}
}

func (u *AnalysisReportUseCase) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := u.Report(ctx); err != nil {
				logger.WithError(err).Warn("analysis report incomplete")
			}
		}
	}
}

// Report publishes one report per symbol whose books are all ready and
// non-empty. Nothing is published before the whole system passed warmup.
// Changes are flushed only after a successful publish so a failed delivery
// carries them into the next report.
func (u *AnalysisReportUseCase) Report(ctx context.Context) (int, error) {
	if !u.storage.SystemReady() {
		ready, total := u.storage.ReadyCount()
		logger.WithField("ready", ready).WithField("total", total).Debug("system warming up, report skipped")
		return 0, nil
	}

	var (
		published int
		errs      []error
	)

	for _, group := range groupBySymbol(u.storage.All()) {
		report, ok := u.build(group)
		if !ok {
			continue
		}

		if err := u.publisher.Publish(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", report.Symbol, err))
			continue
		}

		for _, maintainer := range group {
			maintainer.OrderBook().FlushChanges()
		}
		published++

		if config.DebugMode {
			logger.WithField("symbol", report.Symbol).Debug(helpers.ToJsonString(report))
		}
	}

	return published, errors.Join(errs...)
}

func (u *AnalysisReportUseCase) build(group []*domain.OrderbookMaintainer) (*domain.AnalysisReport, bool) {
	report := &domain.AnalysisReport{
		Symbol:      group[0].OrderBook().Symbol.String(),
		GeneratedAt: u.now(),
		Markets:     make([]domain.MarketReport, 0, len(group)),
	}

	for _, maintainer := range group {
		ob := maintainer.OrderBook()
		if !ob.IsReady() {
			return nil, false
		}

		market, ok := domain.BuildMarketReport(ob, u.displayCount, u.ranges)
		if !ok {
			logger.WithField("symbol", report.Symbol).
				WithField("market", ob.Market).
				Debug("book has an empty side, report skipped")
			return nil, false
		}
		report.Markets = append(report.Markets, market)
	}

	return report, true
}

// groupBySymbol keeps the storage order: spot before futures within a symbol.
func groupBySymbol(all []*domain.OrderbookMaintainer) [][]*domain.OrderbookMaintainer {
	index := make(map[string]int)
	groups := make([][]*domain.OrderbookMaintainer, 0)

	for _, maintainer := range all {
		symbol := maintainer.OrderBook().Symbol.String()
		i, ok := index[symbol]
		if !ok {
			i = len(groups)
			index[symbol] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], maintainer)
	}

	return groups
}

// LogReportPublisher writes report headlines to the log. It is used when no
// external publisher is configured.
type LogReportPublisher struct{}

func (LogReportPublisher) Publish(ctx context.Context, report *domain.AnalysisReport) error {
	for _, market := range report.Markets {
		entry := logger.WithField("symbol", report.Symbol).
			WithField("market", market.Market).
			WithField("mid", market.Summary.MidPrice.String()).
			WithField("spread", market.Summary.Spread.String())
		for _, ratio := range market.Ratios {
			if ratio.Available {
				entry = entry.WithField(ratio.Label, ratio.Ratio.StringFixed(4))
			}
		}
		entry.Info("analysis report")
	}

	return nil
}
