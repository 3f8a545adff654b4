package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/go-cryptomarkets-depth/config"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	"github.com/spooky-finn/go-cryptomarkets-depth/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type unusedSyncAPI struct{}

func (unusedSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, market domain.MarketType, limit int) (*domain.OrderBookSnapshot, error) {
	return nil, &domain.SnapshotError{Endpoint: "unused"}
}

func levels(t *testing.T, depth ...[]string) []domain.PriceLevel {
	t.Helper()
	result, err := domain.ParsePriceLevels(depth)
	require.NoError(t, err)
	return result
}

func newTestClient(t *testing.T) *MarketDepthClient {
	t.Helper()

	btc, _ := domain.NewMarketSymbol("btc", "usdt")
	eth, _ := domain.NewMarketSymbol("eth", "usdt")
	storage := domain.NewOrderBookStorage()

	spot := domain.NewOrderBook(domain.MarketType_Spot, btc, decimal.NewFromInt(1), domain.WarmupConfig{})
	spot.LoadSnapshot(&domain.OrderBookSnapshot{
		LastUpdateId: 10,
		Bids:         levels(t, []string{"100", "5"}, []string{"99", "3"}),
		Asks:         levels(t, []string{"101", "4"}, []string{"102", "2"}),
	})
	storage.Add(domain.NewOrderBookMaintainer(spot, unusedSyncAPI{}, nil, 100))

	empty := domain.NewOrderBook(domain.MarketType_Futures, btc, decimal.NewFromInt(1), domain.WarmupConfig{})
	storage.Add(domain.NewOrderBookMaintainer(empty, unusedSyncAPI{}, nil, 100))

	cfg := config.Defaults()
	syncUseCase := usecase.NewOrderBookSyncUseCase(&cfg, storage, unusedSyncAPI{}, nil)
	srv := NewServer(storage, syncUseCase, &ValidationServiceConfig{
		AvailableMarkets: domain.MarketTypes,
		Symbols:          []*domain.MarketSymbol{btc, eth},
	}, cfg.AnalysisRanges, 10)

	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	RegisterMarketDepthServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewMarketDepthClient(conn)
}

func request(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return in
}

func TestGetBookSummary(t *testing.T) {
	client := newTestClient(t)

	out, err := client.Call(context.Background(), "GetBookSummary", request(t, map[string]interface{}{
		"market": "spot",
		"symbol": "btc_usdt",
	}))
	require.NoError(t, err)

	summary := out.AsMap()["summary"].(map[string]interface{})
	assert.Equal(t, "100", summary["highestBid"])
	assert.Equal(t, "101", summary["lowestAsk"])
	assert.Equal(t, "100.5", summary["midPrice"])
	assert.Equal(t, "1", summary["spread"])
	assert.Equal(t, "10", out.AsMap()["cursor"])
	assert.Equal(t, "Synced", out.AsMap()["status"])
	assert.Equal(t, true, out.AsMap()["ready"])

	lastUpdate, err := time.Parse(time.RFC3339Nano, out.AsMap()["lastUpdate"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), lastUpdate, time.Minute)
}

func TestGetFilteredOrders(t *testing.T) {
	client := newTestClient(t)

	out, err := client.Call(context.Background(), "GetFilteredOrders", request(t, map[string]interface{}{
		"market": "spot",
		"symbol": "btc_usdt",
		"limit":  1,
	}))
	require.NoError(t, err)

	assert.Equal(t, []interface{}{[]interface{}{"100", "5"}}, out.AsMap()["bids"])
	assert.Equal(t, []interface{}{[]interface{}{"101", "4"}}, out.AsMap()["asks"])
}

func TestGetBandRatios(t *testing.T) {
	client := newTestClient(t)

	out, err := client.Call(context.Background(), "GetBandRatios", request(t, map[string]interface{}{
		"market": "spot",
		"symbol": "btc_usdt",
		"ranges": []interface{}{
			map[string]interface{}{"lower": 0, "upper": 1},
			map[string]interface{}{"lower": 1, "upper": 2.5},
		},
	}))
	require.NoError(t, err)

	ratios := out.AsMap()["ratios"].([]interface{})
	require.Len(t, ratios, 2)

	first := ratios[0].(map[string]interface{})
	assert.Equal(t, "0-1%", first["label"])
	assert.Equal(t, true, first["available"])
	assert.Equal(t, "5", first["bidVolume"])
	assert.Equal(t, "4", first["askVolume"])

	ratio, err := decimal.NewFromString(first["ratio"].(string))
	require.NoError(t, err)
	assert.Equal(t, "0.1111", ratio.StringFixed(4))

	second := ratios[1].(map[string]interface{})
	assert.Equal(t, "1-2.5%", second["label"])
	assert.Equal(t, "3", second["bidVolume"])
	assert.Equal(t, "2", second["askVolume"])
}

func TestGetBandRatios_DefaultRanges(t *testing.T) {
	client := newTestClient(t)

	out, err := client.Call(context.Background(), "GetBandRatios", request(t, map[string]interface{}{
		"market": "spot",
		"symbol": "btc_usdt",
	}))
	require.NoError(t, err)

	assert.Len(t, out.AsMap()["ratios"], 4)
}

func TestGetWarmupStatus(t *testing.T) {
	client := newTestClient(t)

	t.Run("System", func(t *testing.T) {
		out, err := client.Call(context.Background(), "GetWarmupStatus", request(t, nil))
		require.NoError(t, err)

		assert.Equal(t, true, out.AsMap()["systemReady"])
		assert.Equal(t, float64(2), out.AsMap()["total"])
	})

	t.Run("Book", func(t *testing.T) {
		out, err := client.Call(context.Background(), "GetWarmupStatus", request(t, map[string]interface{}{
			"market": "spot",
			"symbol": "btc_usdt",
		}))
		require.NoError(t, err)

		assert.Equal(t, true, out.AsMap()["ready"])
		assert.Equal(t, float64(2), out.AsMap()["qualifyingBids"])
	})
}

func TestGetOrderBookSnapshot(t *testing.T) {
	client := newTestClient(t)

	out, err := client.Call(context.Background(), "GetOrderBookSnapshot", request(t, map[string]interface{}{
		"market": "spot",
		"symbol": "btc_usdt",
		"limit":  1,
	}))
	require.NoError(t, err)

	assert.Equal(t, "LocalOrderBook", out.AsMap()["source"])
	assert.Equal(t, "10", out.AsMap()["cursor"])
	assert.Len(t, out.AsMap()["bids"], 1)
}

func TestRequestErrors(t *testing.T) {
	client := newTestClient(t)

	tests := []struct {
		name   string
		method string
		fields map[string]interface{}
		code   codes.Code
	}{
		{"UnsupportedMarket", "GetBookSummary", map[string]interface{}{"market": "margin", "symbol": "btc_usdt"}, codes.InvalidArgument},
		{"MalformedSymbol", "GetBookSummary", map[string]interface{}{"market": "spot", "symbol": "BTCUSDT"}, codes.InvalidArgument},
		{"UnknownSymbol", "GetBookSummary", map[string]interface{}{"market": "spot", "symbol": "xrp_usdt"}, codes.NotFound},
		{"NotRegistered", "GetFilteredOrders", map[string]interface{}{"market": "spot", "symbol": "eth_usdt"}, codes.NotFound},
		{"EmptyBook", "GetBookSummary", map[string]interface{}{"market": "futures", "symbol": "btc_usdt"}, codes.FailedPrecondition},
		{"BadRange", "GetBandRatios", map[string]interface{}{
			"market": "spot",
			"symbol": "btc_usdt",
			"ranges": []interface{}{map[string]interface{}{"lower": 2, "upper": 1}},
		}, codes.InvalidArgument},
		{"ProviderUnavailable", "GetOrderBookSnapshot", map[string]interface{}{"market": "spot", "symbol": "eth_usdt"}, codes.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Call(context.Background(), tt.method, request(t, tt.fields))

			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
