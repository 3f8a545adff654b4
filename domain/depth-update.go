package domain

// DepthUpdate is a diff event decoded at the ingestion boundary. The concrete
// type tells which market protocol produced it.
type DepthUpdate interface {
	Market() MarketType
	// NextCursor is the book cursor once the update has been applied.
	NextCursor() SequenceCursor
	Changes() (bids []PriceLevel, asks []PriceLevel)
}

// DepthEvent is a decoded diff together with the stream it came from, e.g.
// "btcusdt".
type DepthEvent struct {
	Stream string
	Update DepthUpdate
}

// SpotDepthUpdate is a spot diff covering update ids [FirstUpdateID, FinalUpdateID].
type SpotDepthUpdate struct {
	Symbol        string
	EventTime     int64
	FirstUpdateID int64
	FinalUpdateID int64
	Bids          []PriceLevel
	Asks          []PriceLevel
}

func (u *SpotDepthUpdate) Market() MarketType {
	return MarketType_Spot
}

func (u *SpotDepthUpdate) NextCursor() SequenceCursor {
	return SequenceCursor{Sequence: u.FinalUpdateID, LastFinalUpdateID: u.FinalUpdateID}
}

func (u *SpotDepthUpdate) Changes() ([]PriceLevel, []PriceLevel) {
	return u.Bids, u.Asks
}

// FuturesDepthUpdate is ordered by EventTime. PrevFinalUpdateID ("pu") is the
// final update id of the previous event on the same stream, 0 when absent.
type FuturesDepthUpdate struct {
	Symbol            string
	EventTime         int64
	TransactionTime   int64
	FirstUpdateID     int64
	FinalUpdateID     int64
	PrevFinalUpdateID int64
	Bids              []PriceLevel
	Asks              []PriceLevel
}

func (u *FuturesDepthUpdate) Market() MarketType {
	return MarketType_Futures
}

func (u *FuturesDepthUpdate) NextCursor() SequenceCursor {
	return SequenceCursor{Sequence: u.EventTime, LastFinalUpdateID: u.FinalUpdateID}
}

func (u *FuturesDepthUpdate) Changes() ([]PriceLevel, []PriceLevel) {
	return u.Bids, u.Asks
}
