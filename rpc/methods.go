package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spooky-finn/go-cryptomarkets-depth/domain"
	"github.com/spooky-finn/go-cryptomarkets-depth/helpers"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *server) GetBookSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ob, err := s.orderBook(in)
	if err != nil {
		return nil, err
	}

	summary, ok := ob.Summary()
	if !ok {
		return nil, status.Errorf(codes.FailedPrecondition, "order book %s %s has an empty side", ob.Market, ob.Symbol.String())
	}

	return toStruct(map[string]interface{}{
		"summary":    summary,
		"status":     ob.Status(),
		"cursor":     helpers.IntToString(ob.Cursor().Sequence),
		"ready":      ob.IsReady(),
		"lastUpdate": ob.LastUpdateTime().UTC().Format(time.RFC3339Nano),
	})
}

func (s *server) GetFilteredOrders(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ob, err := s.orderBook(in)
	if err != nil {
		return nil, err
	}

	limit := intField(in, "limit", s.defaultDisplayCount)
	bids, asks := ob.FilteredOrders(limit)

	return toStruct(map[string]interface{}{
		"minQuantity": ob.MinQuantity,
		"bids":        domain.SerializePriceLevels(bids),
		"asks":        domain.SerializePriceLevels(asks),
	})
}

// GetBandRatios computes the ratio of every requested range, e.g.
// {"ranges": [{"lower": 0, "upper": 1}, {"lower": 1, "upper": 2.5}]}. The
// configured ranges are used when none are given.
func (s *server) GetBandRatios(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ob, err := s.orderBook(in)
	if err != nil {
		return nil, err
	}

	ranges, err := rangesField(in, s.defaultRanges)
	if err != nil {
		return nil, err
	}

	return toStruct(map[string]interface{}{
		"ratios": ob.BandRatios(ranges),
	})
}

// GetWarmupStatus reports one book when market and symbol are given,
// otherwise the whole system.
func (s *server) GetWarmupStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if stringField(in, "symbol") == "" {
		ready, total := s.storage.ReadyCount()
		return toStruct(map[string]interface{}{
			"systemReady": s.storage.SystemReady(),
			"ready":       ready,
			"total":       total,
		})
	}

	ob, err := s.orderBook(in)
	if err != nil {
		return nil, err
	}

	warmup := ob.WarmupStatus()
	return toStruct(map[string]interface{}{
		"ready":          warmup.Ready,
		"updateCount":    warmup.UpdateCount,
		"elapsedSeconds": warmup.Elapsed.Seconds(),
		"qualifyingBids": warmup.QualifyingBids,
		"qualifyingAsks": warmup.QualifyingAsks,
	})
}

func (s *server) GetOrderBookSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	market, symbol, err := s.target(in)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.orderBookSyncUseCase.GetOrderBookSnapshot(ctx, market, symbol, intField(in, "limit", s.defaultDisplayCount))
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	return toStruct(map[string]interface{}{
		"source": snapshot.Source,
		"cursor": helpers.IntToString(snapshot.LastUpdateId),
		"bids":   domain.SerializePriceLevels(snapshot.Bids),
		"asks":   domain.SerializePriceLevels(snapshot.Asks),
	})
}

func (s *server) target(in *structpb.Struct) (domain.MarketType, *domain.MarketSymbol, error) {
	market, err := domain.ParseMarketType(stringField(in, "market"))
	if err != nil || !s.validationService.IsSupportedMarket(market) {
		return "", nil, status.Errorf(codes.InvalidArgument, "market %q is not supported", stringField(in, "market"))
	}

	symbol, err := domain.NewMarketSymbolFromString(stringField(in, "symbol"))
	if err != nil {
		return "", nil, status.Errorf(codes.InvalidArgument, "invalid market symbol %q. Correct market symbol should use _ as a separator", stringField(in, "symbol"))
	}
	if !s.validationService.IsKnownSymbol(symbol) {
		return "", nil, status.Errorf(codes.NotFound, "symbol %s is not monitored", symbol.String())
	}

	return market, symbol, nil
}

func (s *server) orderBook(in *structpb.Struct) (*domain.OrderBook, error) {
	market, symbol, err := s.target(in)
	if err != nil {
		return nil, err
	}

	ob, err := s.storage.GetOrderBook(market, symbol)
	if errors.Is(err, domain.ErrOrderBookNotFound) || errors.Is(err, domain.ErrMarketNotFound) {
		return nil, status.Errorf(codes.NotFound, "order book %s %s is not registered", market, symbol.String())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return ob, nil
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func intField(in *structpb.Struct, key string, fallback int) int {
	v, ok := in.GetFields()[key]
	if !ok {
		return fallback
	}
	if n := int(v.GetNumberValue()); n > 0 {
		return n
	}
	return fallback
}

func rangesField(in *structpb.Struct, fallback []domain.AnalysisRange) ([]domain.AnalysisRange, error) {
	list := in.GetFields()["ranges"].GetListValue()
	if len(list.GetValues()) == 0 {
		return fallback, nil
	}

	ranges := make([]domain.AnalysisRange, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		r := domain.AnalysisRange{
			Lower: fields["lower"].GetNumberValue(),
			Upper: fields["upper"].GetNumberValue(),
		}
		if r.Lower < 0 || r.Upper <= r.Lower {
			return nil, status.Errorf(codes.InvalidArgument, "invalid range [%v, %v]", r.Lower, r.Upper)
		}
		ranges = append(ranges, r)
	}

	return ranges, nil
}

// toStruct converts a JSON-encodable value into a Struct message.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
