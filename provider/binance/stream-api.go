package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
)

const depthStreamSuffix = "@depth"

// ErrNotDepthMessage marks frames that carry no depth diff, such as
// subscription acks.
var ErrNotDepthMessage = errors.New("binance: not a depth message")

// DepthUpdateData covers both spot and futures diff payloads. Futures adds
// T and pu.
type DepthUpdateData struct {
	Event             string     `json:"e"`
	EventTime         int64      `json:"E"`
	TransactionTime   int64      `json:"T"`
	Symbol            string     `json:"s"`
	FirstUpdateId     int64      `json:"U"`
	FinalUpdateId     int64      `json:"u"`
	PrevFinalUpdateId int64      `json:"pu"`
	Bids              [][]string `json:"b"`
	Asks              [][]string `json:"a"`
}

type DepthEvent = domain.DepthEvent

type DepthUpdateSubscription = domain.Subscription[DepthEvent]

// BinanceStreamAPI decodes the diff streams of one market.
type BinanceStreamAPI struct {
	market       domain.MarketType
	streamClient *BinanceStreamClient
}

func NewBinanceStreamAPI(market domain.MarketType, client *BinanceStreamClient) *BinanceStreamAPI {
	return &BinanceStreamAPI{
		market:       market,
		streamClient: client,
	}
}

func (bs *BinanceStreamAPI) Market() domain.MarketType {
	return bs.market
}

func DepthTopic(symbol *domain.MarketSymbol) string {
	return symbol.Join("") + depthStreamSuffix
}

// DepthDiffStream subscribes to the diff stream of every symbol and decodes
// frames until the client stops or ctx is cancelled.
func (bs *BinanceStreamAPI) DepthDiffStream(ctx context.Context, symbols []*domain.MarketSymbol) (*DepthUpdateSubscription, error) {
	topics := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		topics = append(topics, DepthTopic(symbol))
	}

	if err := bs.streamClient.Subscribe(topics...); err != nil {
		return nil, fmt.Errorf("binance: subscribe %v: %w", topics, err)
	}

	s := make(chan DepthEvent, messageBufferSize)

	go func() {
		defer close(s)

		for msg := range bs.streamClient.Messages() {
			stream, update, err := ParseDepthMessage(bs.market, msg)
			if err != nil {
				if !errors.Is(err, ErrNotDepthMessage) {
					logger.WithField("market", bs.market).WithError(err).Warn("dropping malformed depth message")
				}
				continue
			}

			select {
			case s <- DepthEvent{Stream: stream, Update: update}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &DepthUpdateSubscription{
		Stream: s,
		Unsubscribe: func() error {
			return bs.streamClient.Unsubscribe(topics...)
		},
		Topics: topics,
	}, nil
}

// ParseDepthMessage decodes a combined-stream frame into the diff variant of
// market. The returned stream symbol is the lowercase pair, e.g. "btcusdt".
func ParseDepthMessage(market domain.MarketType, raw []byte) (string, domain.DepthUpdate, error) {
	var message Message[DepthUpdateData]
	if err := json.Unmarshal(raw, &message); err != nil {
		return "", nil, fmt.Errorf("binance: decode stream message: %w", err)
	}

	if message.Stream == "" || message.Data.Event != "depthUpdate" {
		return "", nil, ErrNotDepthMessage
	}

	stream := strings.ToLower(message.Stream)
	if i := strings.Index(stream, "@"); i >= 0 {
		stream = stream[:i]
	}

	data := message.Data
	bids, err := domain.ParsePriceLevels(data.Bids)
	if err != nil {
		return "", nil, fmt.Errorf("binance: %s bids: %w", message.Stream, err)
	}
	asks, err := domain.ParsePriceLevels(data.Asks)
	if err != nil {
		return "", nil, fmt.Errorf("binance: %s asks: %w", message.Stream, err)
	}

	switch market {
	case domain.MarketType_Spot:
		return stream, &domain.SpotDepthUpdate{
			Symbol:        data.Symbol,
			EventTime:     data.EventTime,
			FirstUpdateID: data.FirstUpdateId,
			FinalUpdateID: data.FinalUpdateId,
			Bids:          bids,
			Asks:          asks,
		}, nil
	case domain.MarketType_Futures:
		return stream, &domain.FuturesDepthUpdate{
			Symbol:            data.Symbol,
			EventTime:         data.EventTime,
			TransactionTime:   data.TransactionTime,
			FirstUpdateID:     data.FirstUpdateId,
			FinalUpdateID:     data.FinalUpdateId,
			PrevFinalUpdateID: data.PrevFinalUpdateId,
			Bids:              bids,
			Asks:              asks,
		}, nil
	}

	return "", nil, fmt.Errorf("binance: unsupported market %q", market)
}
