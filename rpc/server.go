package rpc

import (
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	"github.com/spooky-finn/go-cryptomarkets-depth/usecase"
	"google.golang.org/grpc"
)

var logger = logrus.WithField("module", "rpc")

type server struct {
	storage              *domain.OrderBookStorage
	orderBookSyncUseCase *usecase.OrderBookSyncUseCase
	validationService    *ValidationService
	defaultRanges        []domain.AnalysisRange
	defaultDisplayCount  int
}

func NewServer(
	storage *domain.OrderBookStorage,
	orderBookSyncUseCase *usecase.OrderBookSyncUseCase,
	conf *ValidationServiceConfig,
	defaultRanges []domain.AnalysisRange,
	defaultDisplayCount int,
) *server {
	return &server{
		storage:              storage,
		orderBookSyncUseCase: orderBookSyncUseCase,
		validationService:    NewValidationService(conf),
		defaultRanges:        defaultRanges,
		defaultDisplayCount:  defaultDisplayCount,
	}
}

// Serve listens on addr until ctx is cancelled, then stops gracefully.
func Serve(ctx context.Context, addr string, srv MarketDepthServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}

	s := grpc.NewServer()
	RegisterMarketDepthServer(s, srv)

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logger.Infof("grpc server listening at %v", lis.Addr())
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("rpc: serve: %w", err)
	}

	return nil
}
