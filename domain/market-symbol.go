package domain

import (
	"fmt"
	"strings"
)

type MarketSymbol struct {
	BaseAsset  string
	QuoteAsset string
}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	base = strings.ToLower(base)
	quote = strings.ToLower(quote)
	if base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	return &MarketSymbol{
		BaseAsset:  base,
		QuoteAsset: quote,
	}, nil
}

// NewMarketSymbolFromString parses "btc_usdt".
func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	split := strings.Split(s, "_")

	if len(split) != 2 {
		return nil, fmt.Errorf("invalid symbol string %q", s)
	}

	return NewMarketSymbol(split[0], split[1])
}

// NewMarketSymbolFromPair parses an exchange pair such as "BTCUSDT" by
// matching one of the known quote assets as a suffix.
func NewMarketSymbolFromPair(pair string, quotes []string) (*MarketSymbol, error) {
	lower := strings.ToLower(pair)
	for _, q := range quotes {
		q = strings.ToLower(q)
		if q != "" && strings.HasSuffix(lower, q) && len(lower) > len(q) {
			return NewMarketSymbol(strings.TrimSuffix(lower, q), q)
		}
	}

	return nil, fmt.Errorf("pair %q has no known quote asset", pair)
}

func (ms *MarketSymbol) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", ms.BaseAsset, separator, ms.QuoteAsset)
}

// Pair returns the exchange notation, e.g. BTCUSDT.
func (ms *MarketSymbol) Pair() string {
	return strings.ToUpper(ms.Join(""))
}

func (ms *MarketSymbol) String() string {
	return fmt.Sprintf("%s_%s", ms.BaseAsset, ms.QuoteAsset)
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	return ms.BaseAsset == other.BaseAsset && ms.QuoteAsset == other.QuoteAsset
}
