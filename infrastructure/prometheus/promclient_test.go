package promclient

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsAreExposed(t *testing.T) {
	reg := NewRegistry()

	OpenOrderBookGauge.Set(2)
	UpdatesAppliedCounter.WithLabelValues("spot", "btc_usdt").Add(3)
	OrderBookSyncedGauge.WithLabelValues("futures", "btc_usdt").Set(1)

	assert.Equal(t, float64(3), testutil.ToFloat64(UpdatesAppliedCounter.WithLabelValues("spot", "btc_usdt")))

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"depth_orderbooks_open 2",
		`depth_updates_applied_total{market="spot",symbol="btc_usdt"} 3`,
		`depth_orderbook_synced{market="futures",symbol="btc_usdt"} 1`,
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
