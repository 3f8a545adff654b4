package promclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("module", "promclient")

var bookLabels = []string{"market", "symbol"}

var OpenOrderBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "depth_orderbooks_open",
		Help: "number of registered order books",
	},
)

var OrderBookSyncedGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "depth_orderbook_synced",
		Help: "1 when the order book is synced with the exchange, 0 while it reloads",
	},
	bookLabels,
)

var UpdatesAppliedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "depth_updates_applied_total",
		Help: "diff events applied to an order book",
	},
	bookLabels,
)

var UpdatesDroppedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "depth_updates_dropped_total",
		Help: "diff events dropped as stale or while the book was reloading",
	},
	bookLabels,
)

var ResyncsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "depth_resyncs_total",
		Help: "snapshot reloads triggered by a sequence gap",
	},
	bookLabels,
)

var SnapshotErrorsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "depth_snapshot_errors_total",
		Help: "failed depth snapshot requests",
	},
	bookLabels,
)

// NewRegistry returns a registry holding every depth collector plus the Go
// runtime collector.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(OrderBookSyncedGauge)
	reg.MustRegister(UpdatesAppliedCounter)
	reg.MustRegister(UpdatesDroppedCounter)
	reg.MustRegister(ResyncsCounter)
	reg.MustRegister(SnapshotErrorsCounter)
	reg.MustRegister(collectors.NewGoCollector())

	return reg
}

// StartPromClientServer serves /metrics on addr until ctx is cancelled.
func StartPromClientServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(NewRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("prometheus server listening at %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
