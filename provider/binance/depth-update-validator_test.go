package binance

import (
	"testing"

	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpotDepthUpdateValidator(t *testing.T) {
	v := &BinanceSpotDepthValidator{}

	tests := []struct {
		name     string
		first    int64
		final    int64
		cursor   int64
		expected error
	}{
		// u <= lastUpdateId
		{"Outdated", 123, 124, 124, domain.ErrOrderBookUpdateIsOutdated},
		{"OutdatedRange", 100, 110, 124, domain.ErrOrderBookUpdateIsOutdated},
		// 123 <= 124 && 124 >= 124
		{"ExactNext", 123, 124, 123, nil},
		{"Straddling", 123, 140, 123, nil},
		{"FirstEqualsNext", 124, 124, 123, nil},
		// 125 > 123+1
		{"Gap", 125, 136, 122, domain.ErrOrderBookUpdateIsOutOfSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd := &domain.SpotDepthUpdate{
				Symbol:        "BTCUSDT",
				FirstUpdateID: tt.first,
				FinalUpdateID: tt.final,
			}

			err := v.IsValidUpd(upd, domain.SequenceCursor{Sequence: tt.cursor, LastFinalUpdateID: tt.cursor})
			assert.Equal(t, tt.expected, err, "Error should match")
		})
	}
}

func TestSpotDepthUpdateValidator_WrongKind(t *testing.T) {
	v := &BinanceSpotDepthValidator{}

	err := v.IsValidUpd(&domain.FuturesDepthUpdate{EventTime: 1}, domain.SequenceCursor{})
	assert.ErrorIs(t, err, domain.ErrUnexpectedUpdateKind)
}

func TestFuturesDepthUpdateValidator(t *testing.T) {
	tests := []struct {
		name       string
		continuity bool
		eventTime  int64
		pu         int64
		cursor     domain.SequenceCursor
		expected   error
	}{
		{"Newer", false, 1001, 50, domain.SequenceCursor{Sequence: 1000, LastFinalUpdateID: 10}, nil},
		{"SameEventTime", false, 1000, 0, domain.SequenceCursor{Sequence: 1000}, domain.ErrOrderBookUpdateIsOutdated},
		{"Older", true, 900, 10, domain.SequenceCursor{Sequence: 1000, LastFinalUpdateID: 10}, domain.ErrOrderBookUpdateIsOutdated},
		{"ContinuityOffIgnoresPu", false, 1001, 7, domain.SequenceCursor{Sequence: 1000, LastFinalUpdateID: 10}, nil},
		{"Continuous", true, 1001, 10, domain.SequenceCursor{Sequence: 1000, LastFinalUpdateID: 10}, nil},
		{"Broken", true, 1001, 7, domain.SequenceCursor{Sequence: 1000, LastFinalUpdateID: 10}, domain.ErrOrderBookUpdateIsOutOfSequence},
		{"UnknownLastFinal", true, 1001, 7, domain.SequenceCursor{Sequence: 1000}, nil},
		{"MissingPu", true, 1001, 0, domain.SequenceCursor{Sequence: 1000, LastFinalUpdateID: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &BinanceFuturesDepthValidator{ContinuityCheck: tt.continuity}
			upd := &domain.FuturesDepthUpdate{
				Symbol:            "BTCUSDT",
				EventTime:         tt.eventTime,
				FirstUpdateID:     tt.pu + 1,
				FinalUpdateID:     tt.pu + 5,
				PrevFinalUpdateID: tt.pu,
			}

			assert.Equal(t, tt.expected, v.IsValidUpd(upd, tt.cursor))
		})
	}
}

func TestNewDepthUpdateValidator(t *testing.T) {
	spot, err := NewDepthUpdateValidator(domain.MarketType_Spot, true)
	require.NoError(t, err)
	assert.IsType(t, &BinanceSpotDepthValidator{}, spot)

	futures, err := NewDepthUpdateValidator(domain.MarketType_Futures, true)
	require.NoError(t, err)
	assert.Equal(t, &BinanceFuturesDepthValidator{ContinuityCheck: true}, futures)

	_, err = NewDepthUpdateValidator(domain.MarketType("margin"), false)
	assert.Error(t, err)
}

// The futures cursor is the event time while pu chains final update ids.
func TestFuturesBookFollowsEventTime(t *testing.T) {
	symbol, err := domain.NewMarketSymbol("btc", "usdt")
	require.NoError(t, err)

	ob := domain.NewOrderBook(domain.MarketType_Futures, symbol, decimalFromString(t, "1"), domain.WarmupConfig{})
	ob.LoadSnapshot(&domain.OrderBookSnapshot{
		LastUpdateId: 1000,
		Bids:         mustParseLevels(t, [][]string{{"100", "5"}}),
		Asks:         mustParseLevels(t, [][]string{{"101", "4"}}),
	})
	v := &BinanceFuturesDepthValidator{ContinuityCheck: true}

	first := &domain.FuturesDepthUpdate{EventTime: 1001, FirstUpdateID: 40, FinalUpdateID: 50, PrevFinalUpdateID: 39,
		Bids: mustParseLevels(t, [][]string{{"100", "6"}})}
	require.NoError(t, ob.ApplyUpdate(first, v), "pu is unchecked until the first u is known")
	assert.Equal(t, domain.SequenceCursor{Sequence: 1001, LastFinalUpdateID: 50}, ob.Cursor())

	second := &domain.FuturesDepthUpdate{EventTime: 1002, FirstUpdateID: 51, FinalUpdateID: 60, PrevFinalUpdateID: 50}
	require.NoError(t, ob.ApplyUpdate(second, v))

	gap := &domain.FuturesDepthUpdate{EventTime: 1003, FirstUpdateID: 70, FinalUpdateID: 80, PrevFinalUpdateID: 69}
	assert.ErrorIs(t, ob.ApplyUpdate(gap, v), domain.ErrOrderBookUpdateIsOutOfSequence)
	assert.Equal(t, int64(1002), ob.Cursor().Sequence)
}
