package rpc

import (
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
)

type ValidationServiceConfig struct {
	AvailableMarkets []domain.MarketType
	Symbols          []*domain.MarketSymbol
}

type ValidationService struct {
	config *ValidationServiceConfig
}

func NewValidationService(config *ValidationServiceConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

func (s *ValidationService) IsSupportedMarket(market domain.MarketType) bool {
	for _, m := range s.config.AvailableMarkets {
		if m == market {
			return true
		}
	}
	return false
}

func (s *ValidationService) IsKnownSymbol(symbol *domain.MarketSymbol) bool {
	for _, known := range s.config.Symbols {
		if known.Equal(symbol) {
			return true
		}
	}
	return false
}
