package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func testCtx() context.Context { return context.Background() }

// noRetryGovernor builds a Governor with a single attempt and negligible
// backoff bounds, so tests that don't care about retry behavior stay fast.
func noRetryGovernor() *Governor {
	cfg := DefaultGovernorConfig()
	cfg.MaxAttempts = 0
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = time.Millisecond
	return NewGovernor("test", cfg, testLogger())
}

// fakeGateway is a minimal in-test VenueGateway stub: it returns a fixed
// funding rate and a symmetric bid/ask around mid; the other methods return
// the canned descriptor/balance/details fields (or a zero size, a zero-cost
// fill, a fixed lot step). Every method returns err instead when it is set.
type fakeGateway struct {
	fundingRate decimal.Decimal
	mid         decimal.Decimal
	err         error

	descriptor MarketDescriptor
	balance    Balance
	details    PositionDetails
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) MarketDescriptor(ctx context.Context, base string) (MarketDescriptor, error) {
	if f.err != nil {
		return MarketDescriptor{}, f.err
	}
	return f.descriptor, nil
}

func (f *fakeGateway) BestBidAsk(ctx context.Context, base string) (Quote, error) {
	if f.err != nil {
		return Quote{}, f.err
	}
	spread := decimal.NewFromFloat(0.5)
	bid := f.mid.Sub(spread)
	ask := f.mid.Add(spread)
	return Quote{Bid: &bid, Ask: &ask}, nil
}

func (f *fakeGateway) FundingRate(ctx context.Context, base string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.fundingRate, nil
}

func (f *fakeGateway) PlaceOrder(ctx context.Context, base string, side OrderSide, sizeBase, referencePrice decimal.Decimal, crossTicks int) (OrderResult, error) {
	if f.err != nil {
		return OrderResult{}, f.err
	}
	return OrderResult{OrderID: "fake-order", Side: side, RequestedQty: sizeBase, FilledQty: sizeBase, FilledPrice: referencePrice}, nil
}

func (f *fakeGateway) ClosePosition(ctx context.Context, base string, sizeBase decimal.Decimal, side OrderSide) (OrderResult, error) {
	if f.err != nil {
		return OrderResult{}, f.err
	}
	return OrderResult{OrderID: "fake-close", Side: side, RequestedQty: sizeBase, FilledQty: sizeBase, FilledPrice: f.mid}, nil
}

func (f *fakeGateway) OpenSize(ctx context.Context, base string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.Zero, nil
}

func (f *fakeGateway) PositionDetails(ctx context.Context, base string) (PositionDetails, error) {
	if f.err != nil {
		return PositionDetails{}, f.err
	}
	return f.details, nil
}

func (f *fakeGateway) AccountBalance(ctx context.Context) (Balance, error) {
	if f.err != nil {
		return Balance{}, f.err
	}
	return f.balance, nil
}

func (f *fakeGateway) SetLeverage(ctx context.Context, base string, leverage int, mode MarginMode) error {
	return f.err
}

func (f *fakeGateway) LotStepSize(ctx context.Context, fullSymbol string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.NewFromFloat(0.001), nil
}
