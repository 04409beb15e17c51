package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCrossTicks  = 100
	minSizeTickFactor  = 10
	verifyDelayDefault = 2 * time.Second
)

// Coordinator opens and closes a delta-neutral pair atomically across both
// venues: size computation, tick rounding, concurrent two-leg submission,
// and post-fill verification.
type Coordinator struct {
	gwA, gwL   VenueGateway
	govA, govL *Governor
	cfg        Config
	log        zerolog.Logger

	// verifyDelay is the ~2s pause between submission and verification.
	// Exposed as a field (rather than a literal) so tests can shrink it.
	verifyDelay time.Duration
}

// NewCoordinator builds a Coordinator over both venue gateways.
func NewCoordinator(gwA, gwL VenueGateway, govA, govL *Governor, cfg Config, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		gwA: gwA, gwL: gwL, govA: govA, govL: govL, cfg: cfg, log: log,
		verifyDelay: verifyDelayDefault,
	}
}

func (c *Coordinator) gatewayFor(v Venue) (VenueGateway, *Governor) {
	if v == VenueA {
		return c.gwA, c.govA
	}
	return c.gwL, c.govL
}

// quotesAndDescriptors fetches MarketDescriptor + Quote on both venues
// concurrently.
func (c *Coordinator) quotesAndDescriptors(ctx context.Context, symbol string) (descA, descL MarketDescriptor, quoteA, quoteL Quote, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.govA.Do(gctx, func(ctx context.Context) (err error) {
			descA, err = c.gwA.MarketDescriptor(ctx, symbol)
			return err
		})
	})
	g.Go(func() error {
		return c.govL.Do(gctx, func(ctx context.Context) (err error) {
			descL, err = c.gwL.MarketDescriptor(ctx, symbol)
			return err
		})
	})
	g.Go(func() error {
		return c.govA.Do(gctx, func(ctx context.Context) (err error) {
			quoteA, err = c.gwA.BestBidAsk(ctx, symbol)
			return err
		})
	})
	g.Go(func() error {
		return c.govL.Do(gctx, func(ctx context.Context) (err error) {
			quoteL, err = c.gwL.BestBidAsk(ctx, symbol)
			return err
		})
	})
	err = g.Wait()
	return
}

// computeSize derives a tradeable size from notional: average mid, floor to
// the coarser of the two venues' amount ticks (re-flooring if per-venue
// floors would desynchronize), reject if too small.
func computeSize(notional, midA, midL, tickA, tickL decimal.Decimal) (size, avgMid decimal.Decimal, err error) {
	avgMid = midA.Add(midL).Div(decimal.NewFromInt(2))
	if avgMid.IsZero() {
		return decimal.Zero, avgMid, &SizeTooSmallError{SizeBase: decimal.Zero, MinSize: decimal.Zero}
	}

	coarserTick := tickA
	if tickL.GreaterThan(coarserTick) {
		coarserTick = tickL
	}
	finerTick := tickA
	if tickL.LessThan(finerTick) {
		finerTick = tickL
	}

	raw := notional.Div(avgMid)
	floored := floorToTick(raw, coarserTick)

	// If flooring to each venue's own tick would desync by more than the
	// finer tick, re-floor to the coarser grid (already done above — this
	// guards the case where tickA != tickL and a naive per-venue floor
	// would have produced two different sizes).
	flooredA := floorToTick(raw, tickA)
	flooredL := floorToTick(raw, tickL)
	if flooredA.Sub(flooredL).Abs().GreaterThan(finerTick) {
		floored = floorToTick(raw, coarserTick)
	}

	minSize := coarserTick.Mul(decimal.NewFromInt(minSizeTickFactor))
	if floored.LessThanOrEqual(decimal.Zero) || floored.LessThan(minSize) {
		return decimal.Zero, avgMid, &SizeTooSmallError{SizeBase: floored, MinSize: minSize}
	}
	return floored, avgMid, nil
}

// floorToTick rounds v down to the nearest multiple of tick.
func floorToTick(v, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return v
	}
	units := v.Div(tick).Floor()
	return units.Mul(tick)
}

// OpenOutcome is the result of a successful Open call.
type OpenOutcome struct {
	Position Position
	Warnings []string
}

// Open sizes the trade, sets leverage, and submits both legs concurrently.
func (c *Coordinator) Open(ctx context.Context, opp Opportunity, holdDuration time.Duration) (OpenOutcome, error) {
	descA, descL, quoteA, quoteL, err := c.quotesAndDescriptors(ctx, opp.Symbol)
	if err != nil {
		return OpenOutcome{}, err
	}

	midA, okA := quoteA.Mid()
	midL, okL := quoteL.Mid()
	if !okA || !okL {
		return OpenOutcome{}, &SizeTooSmallError{Symbol: opp.Symbol}
	}

	sizeBase, avgMid, err := computeSize(c.cfg.NotionalPerPosition, midA, midL, descA.AmountTick, descL.AmountTick)
	if err != nil {
		if sz, ok := err.(*SizeTooSmallError); ok {
			sz.Symbol = opp.Symbol
		}
		return OpenOutcome{}, err
	}

	var warnings []string
	c.setLeverageBestEffort(ctx, opp.Symbol, &warnings)

	longGw, longGov := c.gatewayFor(opp.LongVenue)
	shortGw, shortGov := c.gatewayFor(opp.ShortVenue)
	longMid, shortMid := midA, midL
	if opp.LongVenue == VenueL {
		longMid, shortMid = midL, midA
	}

	var longResult, shortResult OrderResult
	var longErr, shortErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		longErr = longGov.Do(gctx, func(ctx context.Context) (err error) {
			longResult, err = longGw.PlaceOrder(ctx, opp.Symbol, SideBuy, sizeBase, longMid, defaultCrossTicks)
			return err
		})
		return nil
	})
	g.Go(func() error {
		shortErr = shortGov.Do(gctx, func(ctx context.Context) (err error) {
			shortResult, err = shortGw.PlaceOrder(ctx, opp.Symbol, SideSell, sizeBase, shortMid, defaultCrossTicks)
			return err
		})
		return nil
	})
	_ = g.Wait()

	if longErr != nil || shortErr != nil {
		return c.reportPartialFill(opp, longErr, shortErr)
	}
	IncOrder(string(opp.LongVenue), string(SideBuy))
	IncOrder(string(opp.ShortVenue), string(SideSell))

	select {
	case <-time.After(c.verifyDelay):
	case <-ctx.Done():
		return OpenOutcome{}, ctx.Err()
	}
	c.verifyOpenBestEffort(ctx, opp.Symbol, &warnings)

	now := time.Now().UTC()
	pos := Position{
		Symbol:          opp.Symbol,
		LongVenue:       opp.LongVenue,
		ShortVenue:      opp.ShortVenue,
		Leverage:        c.cfg.Leverage,
		OpenedAt:        now,
		TargetCloseAt:   now.Add(holdDuration),
		SizeBase:        sizeBase,
		AvgMid:          avgMid,
		ExpectedNetAPR:  opp.NetAPR,
		LastTableRefresh: now,
	}
	_, _ = longResult, shortResult
	return OpenOutcome{Position: pos, Warnings: warnings}, nil
}

func (c *Coordinator) setLeverageBestEffort(ctx context.Context, symbol string, warnings *[]string) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.govA.Do(gctx, func(ctx context.Context) error {
			return c.gwA.SetLeverage(ctx, symbol, c.cfg.Leverage, MarginCross)
		})
		if err != nil {
			*warnings = append(*warnings, "venue A leverage set failed: "+err.Error())
			c.log.Warn().Str("symbol", symbol).Err(err).Msg("venue A leverage set failed")
		}
		return nil
	})
	g.Go(func() error {
		err := c.govL.Do(gctx, func(ctx context.Context) error {
			return c.gwL.SetLeverage(ctx, symbol, c.cfg.Leverage, MarginCross)
		})
		if err != nil {
			*warnings = append(*warnings, "venue L leverage set failed: "+err.Error())
			c.log.Warn().Str("symbol", symbol).Err(err).Msg("venue L leverage set failed")
		}
		return nil
	})
	_ = g.Wait()
}

func (c *Coordinator) verifyOpenBestEffort(ctx context.Context, symbol string, warnings *[]string) {
	g, gctx := errgroup.WithContext(ctx)
	var sizeA, sizeL decimal.Decimal
	g.Go(func() error {
		err := c.govA.Do(gctx, func(ctx context.Context) (err error) {
			sizeA, err = c.gwA.OpenSize(ctx, symbol)
			return err
		})
		if err != nil {
			*warnings = append(*warnings, "venue A post-open verification failed: "+err.Error())
		}
		return nil
	})
	g.Go(func() error {
		err := c.govL.Do(gctx, func(ctx context.Context) (err error) {
			sizeL, err = c.gwL.OpenSize(ctx, symbol)
			return err
		})
		if err != nil {
			*warnings = append(*warnings, "venue L post-open verification failed: "+err.Error())
		}
		return nil
	})
	_ = g.Wait()
	c.log.Info().Str("symbol", symbol).
		Str("observed_size_a", sizeA.String()).Str("observed_size_l", sizeL.String()).
		Msg("post-open verification")
}

func (c *Coordinator) reportPartialFill(opp Opportunity, longErr, shortErr error) (OpenOutcome, error) {
	switch {
	case longErr != nil && shortErr == nil:
		return OpenOutcome{}, &PartialFillError{Symbol: opp.Symbol, SucceededOn: opp.ShortVenue, FailedVenue: opp.LongVenue, Err: longErr}
	case shortErr != nil && longErr == nil:
		return OpenOutcome{}, &PartialFillError{Symbol: opp.Symbol, SucceededOn: opp.LongVenue, FailedVenue: opp.ShortVenue, Err: shortErr}
	default:
		// Both legs failed outright: neither venue holds a position, so this
		// is a full failure rather than a partial fill requiring unwind.
		return OpenOutcome{}, fmt.Errorf("both legs failed to open %s: long=%v short=%v", opp.Symbol, longErr, shortErr)
	}
}

// CloseOutcome is the result of a successful Close call.
type CloseOutcome struct {
	FinalSizeA decimal.Decimal
	FinalSizeL decimal.Decimal
}

// Close re-reads live sizes (never trusts persisted size alone), closes
// whichever legs are still open, and verifies the result.
func (c *Coordinator) Close(ctx context.Context, pos Position) (CloseOutcome, error) {
	descA, err := c.marketDescriptor(ctx, VenueA, pos.Symbol)
	if err != nil {
		return CloseOutcome{}, err
	}
	descL, err := c.marketDescriptor(ctx, VenueL, pos.Symbol)
	if err != nil {
		return CloseOutcome{}, err
	}

	var openA, openL decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.govA.Do(gctx, func(ctx context.Context) (err error) {
			openA, err = c.gwA.OpenSize(ctx, pos.Symbol)
			return err
		})
	})
	g.Go(func() error {
		return c.govL.Do(gctx, func(ctx context.Context) (err error) {
			openL, err = c.gwL.OpenSize(ctx, pos.Symbol)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return CloseOutcome{}, err
	}

	var closeErrA, closeErrL error
	closeGroup, closeCtx := errgroup.WithContext(ctx)
	if openA.Abs().GreaterThan(descA.AmountTick) {
		closeGroup.Go(func() error {
			side := SideSell
			if openA.IsNegative() {
				side = SideBuy
			}
			closeErrA = c.govA.Do(closeCtx, func(ctx context.Context) error {
				_, err := c.gwA.ClosePosition(ctx, pos.Symbol, openA.Abs(), side)
				return err
			})
			return nil
		})
	}
	if openL.Abs().GreaterThan(descL.AmountTick) {
		closeGroup.Go(func() error {
			side := SideSell
			if openL.IsNegative() {
				side = SideBuy
			}
			closeErrL = c.govL.Do(closeCtx, func(ctx context.Context) error {
				_, err := c.gwL.ClosePosition(ctx, pos.Symbol, openL.Abs(), side)
				return err
			})
			return nil
		})
	}
	_ = closeGroup.Wait()

	select {
	case <-time.After(c.verifyDelay):
	case <-ctx.Done():
		return CloseOutcome{}, ctx.Err()
	}

	var finalA, finalL decimal.Decimal
	verifyGroup, verifyCtx := errgroup.WithContext(ctx)
	verifyGroup.Go(func() error {
		return c.govA.Do(verifyCtx, func(ctx context.Context) (err error) {
			finalA, err = c.gwA.OpenSize(ctx, pos.Symbol)
			return err
		})
	})
	verifyGroup.Go(func() error {
		return c.govL.Do(verifyCtx, func(ctx context.Context) (err error) {
			finalL, err = c.gwL.OpenSize(ctx, pos.Symbol)
			return err
		})
	})
	_ = verifyGroup.Wait()

	if finalA.Abs().GreaterThan(descA.AmountTick) && finalL.Abs().GreaterThan(descL.AmountTick) {
		// Neither leg closed: not a partial close.
		return CloseOutcome{FinalSizeA: finalA, FinalSizeL: finalL},
			fmt.Errorf("both legs of %s still open after close: A=%s L=%s", pos.Symbol, finalA, finalL)
	}
	if closeErrA != nil || closeErrL != nil || finalA.Abs().GreaterThan(descA.AmountTick) || finalL.Abs().GreaterThan(descL.AmountTick) {
		remainingLeg, remainingSize, closedVenue := VenueA, finalA, VenueL
		if finalA.Abs().LessThanOrEqual(descA.AmountTick) {
			remainingLeg, remainingSize, closedVenue = VenueL, finalL, VenueA
		}
		return CloseOutcome{FinalSizeA: finalA, FinalSizeL: finalL}, &PartialCloseError{
			Symbol: pos.Symbol, ClosedVenue: closedVenue, RemainingLeg: remainingLeg, RemainingSize: remainingSize,
		}
	}

	IncOrder(string(VenueA), "close")
	IncOrder(string(VenueL), "close")
	return CloseOutcome{FinalSizeA: finalA, FinalSizeL: finalL}, nil
}

func (c *Coordinator) marketDescriptor(ctx context.Context, v Venue, symbol string) (MarketDescriptor, error) {
	gw, gov := c.gatewayFor(v)
	var desc MarketDescriptor
	err := gov.Do(ctx, func(ctx context.Context) (err error) {
		desc, err = gw.MarketDescriptor(ctx, symbol)
		return err
	})
	return desc, err
}
