package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
)

var logger = logrus.WithField("module", "binance")

const (
	SpotRestEndpoint    = "https://api.binance.com"
	FuturesRestEndpoint = "https://fapi.binance.com"

	spotDepthPath    = "/api/v3/depth"
	futuresDepthPath = "/fapi/v1/depth"

	defaultRequestTimeout = 10 * time.Second
	maxErrorBodySize      = 4096
)

var futuresDepthLimits = []int{5, 10, 20, 50, 100, 500, 1000}

// RequestGate blocks until a request may be issued.
type RequestGate interface {
	Wait(ctx context.Context) error
}

// BinanceSyncAPI fetches depth snapshots over REST. It issues exactly one
// request per call; retries are up to the caller.
type BinanceSyncAPI struct {
	spotEndpoint    string
	futuresEndpoint string
	httpClient      *http.Client
	timeout         time.Duration
	gate            RequestGate
}

type SyncAPIOption func(*BinanceSyncAPI)

func WithHTTPClient(hc *http.Client) SyncAPIOption {
	return func(api *BinanceSyncAPI) {
		api.httpClient = hc
	}
}

// WithTimeout bounds every request. It is applied to a copy of the HTTP
// client, so a shared client is never modified.
func WithTimeout(d time.Duration) SyncAPIOption {
	return func(api *BinanceSyncAPI) {
		api.timeout = d
	}
}

func WithRequestGate(gate RequestGate) SyncAPIOption {
	return func(api *BinanceSyncAPI) {
		api.gate = gate
	}
}

func WithEndpoints(spot, futures string) SyncAPIOption {
	return func(api *BinanceSyncAPI) {
		if spot != "" {
			api.spotEndpoint = spot
		}
		if futures != "" {
			api.futuresEndpoint = futures
		}
	}
}

func NewBinanceSyncAPI(opts ...SyncAPIOption) *BinanceSyncAPI {
	api := &BinanceSyncAPI{
		spotEndpoint:    SpotRestEndpoint,
		futuresEndpoint: FuturesRestEndpoint,
		httpClient:      http.DefaultClient,
		timeout:         defaultRequestTimeout,
	}

	for _, opt := range opts {
		opt(api)
	}

	if api.timeout > 0 {
		hc := *api.httpClient
		hc.Timeout = api.timeout
		api.httpClient = &hc
	}

	return api
}

type depthResponse struct {
	LastUpdateId    int64      `json:"lastUpdateId"`
	EventTime       int64      `json:"E"`
	TransactionTime int64      `json:"T"`
	Bids            [][]string `json:"bids"`
	Asks            [][]string `json:"asks"`
}

func (api *BinanceSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, market domain.MarketType, limit int) (*domain.OrderBookSnapshot, error) {
	endpoint, err := api.depthEndpoint(market)
	if err != nil {
		return nil, err
	}

	if market == domain.MarketType_Futures {
		limit = clampFuturesLimit(limit)
	}

	params := url.Values{}
	params.Set("symbol", symbol.Pair())
	params.Set("limit", strconv.Itoa(limit))

	snapshotErr := func(status int, body []byte, cause error) error {
		return &domain.SnapshotError{
			Endpoint:   endpoint,
			Params:     params,
			StatusCode: status,
			Body:       body,
			Err:        cause,
		}
	}

	if api.gate != nil {
		if err := api.gate.Wait(ctx); err != nil {
			return nil, snapshotErr(0, nil, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, snapshotErr(0, nil, err)
	}

	logger.WithField("symbol", symbol.String()).
		WithField("market", market).
		WithField("limit", limit).
		Debug("requesting depth snapshot")

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, snapshotErr(0, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, snapshotErr(resp.StatusCode, body, fmt.Errorf("unexpected status %s", resp.Status))
	}

	var payload depthResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, snapshotErr(resp.StatusCode, nil, fmt.Errorf("decode depth response: %w", err))
	}

	bids, err := domain.ParsePriceLevels(payload.Bids)
	if err != nil {
		return nil, snapshotErr(resp.StatusCode, nil, fmt.Errorf("bids: %w", err))
	}
	asks, err := domain.ParsePriceLevels(payload.Asks)
	if err != nil {
		return nil, snapshotErr(resp.StatusCode, nil, fmt.Errorf("asks: %w", err))
	}

	cursor := payload.LastUpdateId
	if market == domain.MarketType_Futures {
		if payload.EventTime == 0 {
			return nil, snapshotErr(resp.StatusCode, nil, fmt.Errorf("futures depth response has no event time"))
		}
		cursor = payload.EventTime
	}

	return &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_Provider,
		Market:       market,
		LastUpdateId: cursor,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func (api *BinanceSyncAPI) depthEndpoint(market domain.MarketType) (string, error) {
	switch market {
	case domain.MarketType_Spot:
		return api.spotEndpoint + spotDepthPath, nil
	case domain.MarketType_Futures:
		return api.futuresEndpoint + futuresDepthPath, nil
	}

	return "", fmt.Errorf("binance: unsupported market %q", market)
}

// clampFuturesLimit rounds limit up to the nearest depth the futures API
// accepts, capped at the largest one.
func clampFuturesLimit(limit int) int {
	for _, allowed := range futuresDepthLimits {
		if limit <= allowed {
			return allowed
		}
	}

	return futuresDepthLimits[len(futuresDepthLimits)-1]
}
