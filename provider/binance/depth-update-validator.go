package binance

import (
	"fmt"

	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
)

// BinanceSpotDepthValidator implements the spot diff rule: the first update id
// of an event must not skip past cursor+1 and its final id must reach it.
type BinanceSpotDepthValidator struct{}

func (v *BinanceSpotDepthValidator) IsValidUpd(update domain.DepthUpdate, cursor domain.SequenceCursor) error {
	upd, ok := update.(*domain.SpotDepthUpdate)
	if !ok {
		return fmt.Errorf("%w: spot validator got %s update", domain.ErrUnexpectedUpdateKind, update.Market())
	}

	next := cursor.Sequence + 1

	// U <= lastUpdateId+1 AND u >= lastUpdateId+1
	if upd.FirstUpdateID <= next && upd.FinalUpdateID >= next {
		return nil
	}

	if upd.FirstUpdateID > next {
		return domain.ErrOrderBookUpdateIsOutOfSequence
	}

	return domain.ErrOrderBookUpdateIsOutdated
}

// BinanceFuturesDepthValidator orders futures diffs by event time. With
// ContinuityCheck on, a pu that does not match the last applied u is a gap.
type BinanceFuturesDepthValidator struct {
	ContinuityCheck bool
}

func (v *BinanceFuturesDepthValidator) IsValidUpd(update domain.DepthUpdate, cursor domain.SequenceCursor) error {
	upd, ok := update.(*domain.FuturesDepthUpdate)
	if !ok {
		return fmt.Errorf("%w: futures validator got %s update", domain.ErrUnexpectedUpdateKind, update.Market())
	}

	if upd.EventTime <= cursor.Sequence {
		return domain.ErrOrderBookUpdateIsOutdated
	}

	if v.ContinuityCheck &&
		upd.PrevFinalUpdateID != 0 &&
		cursor.LastFinalUpdateID != 0 &&
		upd.PrevFinalUpdateID != cursor.LastFinalUpdateID {
		return domain.ErrOrderBookUpdateIsOutOfSequence
	}

	return nil
}

func NewDepthUpdateValidator(market domain.MarketType, continuityCheck bool) (domain.IDepthUpdateValidator, error) {
	switch market {
	case domain.MarketType_Spot:
		return &BinanceSpotDepthValidator{}, nil
	case domain.MarketType_Futures:
		return &BinanceFuturesDepthValidator{ContinuityCheck: continuityCheck}, nil
	}

	return nil, fmt.Errorf("binance: no depth validator for market %q", market)
}
