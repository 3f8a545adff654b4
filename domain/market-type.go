package domain

import (
	"fmt"
	"strings"
)

type MarketType string

const (
	MarketType_Spot    MarketType = "spot"
	MarketType_Futures MarketType = "futures"
)

var MarketTypes = []MarketType{MarketType_Spot, MarketType_Futures}

func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(strings.ToLower(strings.TrimSpace(s))) {
	case MarketType_Spot:
		return MarketType_Spot, nil
	case MarketType_Futures:
		return MarketType_Futures, nil
	}

	return "", fmt.Errorf("unknown market type %q", s)
}

func (mt MarketType) String() string {
	return string(mt)
}
