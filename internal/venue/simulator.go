// Package venue provides two deterministic, in-memory VenueGateway
// implementations. Both perpetual-futures venues are off-chain — there is
// no on-chain settlement to simulate — so these stand in for the real
// REST/WebSocket/signing transports an operator would wire in for a live
// deployment.
package venue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chidi150c/deltarotate/internal/engine"
)

// symbolSeed derives a deterministic, per-symbol base price and funding
// rate so repeated runs (and tests) observe stable numbers without a
// wall-clock dependency.
type symbolSeed struct {
	basePrice   decimal.Decimal
	fundingRate decimal.Decimal
	amountTick  decimal.Decimal
	priceTick   decimal.Decimal
}

func seedFor(venueOffset int64, base string) symbolSeed {
	h := fnv.New32a()
	_, _ = h.Write([]byte(base))
	n := int64(h.Sum32())

	price := decimal.NewFromInt(100 + n%90000 + venueOffset*3)
	funding := decimal.NewFromInt(n%12 - 6 + venueOffset).Div(decimal.NewFromInt(100000)) // roughly -0.00006..0.00006

	amountTick := decimal.NewFromFloat(0.001)
	priceTick := decimal.NewFromFloat(0.01)
	if price.GreaterThan(decimal.NewFromInt(10000)) {
		amountTick = decimal.NewFromFloat(0.0001)
		priceTick = decimal.NewFromFloat(0.1)
	} else if price.LessThan(decimal.NewFromInt(10)) {
		amountTick = decimal.NewFromFloat(1)
		priceTick = decimal.NewFromFloat(0.0001)
	}

	return symbolSeed{basePrice: price, fundingRate: funding, amountTick: amountTick, priceTick: priceTick}
}

type openPosition struct {
	size       decimal.Decimal // signed: >0 long, <0 short
	entryPrice decimal.Decimal
	leverage   int
	margin     engine.MarginMode
}

// Simulator is the shared implementation behind both venues' constructors.
// Callers get a configured instance via NewVenueA / NewVenueL.
type Simulator struct {
	name        string
	venueOffset int64
	halfSpread  decimal.Decimal

	mu        sync.Mutex
	seeds     map[string]symbolSeed
	positions map[string]*openPosition
	balance   engine.Balance
}

func newSimulator(name string, venueOffset int64, startBalance decimal.Decimal) *Simulator {
	return &Simulator{
		name:        name,
		venueOffset: venueOffset,
		halfSpread:  decimal.NewFromFloat(0.0002),
		seeds:       make(map[string]symbolSeed),
		positions:   make(map[string]*openPosition),
		balance:     engine.Balance{Total: startBalance, Available: startBalance},
	}
}

func (s *Simulator) Name() string { return s.name }

func (s *Simulator) seed(base string) symbolSeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	sd, ok := s.seeds[base]
	if !ok {
		sd = seedFor(s.venueOffset, base)
		s.seeds[base] = sd
	}
	return sd
}

func (s *Simulator) MarketDescriptor(_ context.Context, base string) (engine.MarketDescriptor, error) {
	sd := s.seed(base)
	return engine.MarketDescriptor{MarketID: s.name + ":" + base, PriceTick: sd.priceTick, AmountTick: sd.amountTick}, nil
}

func (s *Simulator) BestBidAsk(_ context.Context, base string) (engine.Quote, error) {
	sd := s.seed(base)
	spread := sd.basePrice.Mul(s.halfSpread)
	bid := sd.basePrice.Sub(spread)
	ask := sd.basePrice.Add(spread)
	return engine.Quote{Bid: &bid, Ask: &ask}, nil
}

func (s *Simulator) FundingRate(_ context.Context, base string) (decimal.Decimal, error) {
	return s.seed(base).fundingRate, nil
}

func (s *Simulator) PlaceOrder(_ context.Context, base string, side engine.OrderSide, sizeBase, referencePrice decimal.Decimal, crossTicks int) (engine.OrderResult, error) {
	if sizeBase.LessThanOrEqual(decimal.Zero) {
		return engine.OrderResult{}, errors.New("size must be positive")
	}
	sd := s.seed(base)
	offset := sd.priceTick.Mul(decimal.NewFromInt(int64(crossTicks)))
	fillPrice := referencePrice
	if side == engine.SideBuy {
		fillPrice = referencePrice.Add(offset)
	} else {
		fillPrice = referencePrice.Sub(offset)
	}

	signedDelta := sizeBase
	if side == engine.SideSell {
		signedDelta = sizeBase.Neg()
	}

	s.mu.Lock()
	pos, ok := s.positions[base]
	if !ok {
		pos = &openPosition{}
		s.positions[base] = pos
	}
	newSize := pos.size.Add(signedDelta)
	if !pos.size.IsZero() && pos.size.Sign() == signedDelta.Sign() {
		totalAbs := pos.size.Abs().Add(sizeBase)
		pos.entryPrice = pos.entryPrice.Mul(pos.size.Abs()).Add(fillPrice.Mul(sizeBase)).Div(totalAbs)
	} else {
		pos.entryPrice = fillPrice
	}
	pos.size = newSize
	s.mu.Unlock()

	return engine.OrderResult{
		OrderID:      uuid.New().String(),
		Side:         side,
		RequestedQty: sizeBase,
		FilledQty:    sizeBase,
		FilledPrice:  fillPrice,
	}, nil
}

func (s *Simulator) ClosePosition(ctx context.Context, base string, sizeBase decimal.Decimal, side engine.OrderSide) (engine.OrderResult, error) {
	quote, _ := s.BestBidAsk(ctx, base)
	ref, _ := quote.Mid()
	return s.PlaceOrder(ctx, base, side, sizeBase, ref, 0)
}

func (s *Simulator) OpenSize(_ context.Context, base string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[base]
	if !ok {
		return decimal.Zero, nil
	}
	return pos.size, nil
}

func (s *Simulator) PositionDetails(ctx context.Context, base string) (engine.PositionDetails, error) {
	s.mu.Lock()
	pos, ok := s.positions[base]
	s.mu.Unlock()
	if !ok || pos.size.IsZero() {
		return engine.PositionDetails{}, nil
	}

	quote, _ := s.BestBidAsk(ctx, base)
	mark, _ := quote.Mid()
	pnl := pos.size.Mul(mark.Sub(pos.entryPrice))

	side := engine.SideBuy
	if pos.size.IsNegative() {
		side = engine.SideSell
	}
	return engine.PositionDetails{
		Side:          side,
		Size:          pos.size.Abs(),
		EntryPrice:    pos.entryPrice,
		UnrealizedPnL: pnl,
		Leverage:      pos.leverage,
		MarginMode:    pos.margin,
	}, nil
}

func (s *Simulator) AccountBalance(_ context.Context) (engine.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func (s *Simulator) SetLeverage(_ context.Context, base string, leverage int, mode engine.MarginMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[base]
	if !ok {
		pos = &openPosition{}
		s.positions[base] = pos
	}
	pos.leverage = leverage
	pos.margin = mode
	return nil
}

func (s *Simulator) LotStepSize(ctx context.Context, fullSymbol string) (decimal.Decimal, error) {
	desc, err := s.MarketDescriptor(ctx, fullSymbol)
	if err != nil {
		return decimal.Zero, err
	}
	return desc.AmountTick, nil
}
