package engine

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Recovery reconciles a persisted position against live venue state at
// boot, following the pairing classification originally expressed in
// match_delta_neutral_positions: same symbol, opposite-signed size means a
// valid hedge; anything else gets cleared.
type Recovery struct {
	gwA, gwL   VenueGateway
	govA, govL *Governor
	cfg        Config
	log        zerolog.Logger
}

// NewRecovery builds a Recovery over both venue gateways.
func NewRecovery(gwA, gwL VenueGateway, govA, govL *Governor, cfg Config, log zerolog.Logger) *Recovery {
	return &Recovery{gwA: gwA, gwL: gwL, govA: govA, govL: govL, cfg: cfg, log: log}
}

// RecoveryOutcome is the classifier's verdict.
type RecoveryOutcome struct {
	Resume          bool
	UpdatedPosition *Position
	Reason          string
}

// PairClassification is the tagged result of comparing two observed,
// signed open sizes for the same symbol — shared between Recovery and the
// emergency-exit tool (cmd/emergency), both of which need the identical
// opposite-signed pairing rule.
type PairClassification string

const (
	PairHedge    PairClassification = "hedge"     // opposite-signed, both present
	PairInvalid  PairClassification = "invalid"   // same-signed, both present
	PairPartial  PairClassification = "partial"   // only one side present
	PairGhost    PairClassification = "ghost"     // neither side present
)

// ClassifyPair applies the pairing rule from the original emergency-exit
// tool's match_delta_neutral_positions: two observed sizes are a valid
// hedge only when both are non-zero and opposite-signed.
func ClassifyPair(sizeA, sizeL decimal.Decimal, tickA, tickL decimal.Decimal) PairClassification {
	presentA := sizeA.Abs().GreaterThan(tickA)
	presentL := sizeL.Abs().GreaterThan(tickL)

	switch {
	case presentA && presentL:
		if (sizeA.IsPositive() && sizeL.IsNegative()) || (sizeA.IsNegative() && sizeL.IsPositive()) {
			return PairHedge
		}
		return PairInvalid
	case presentA || presentL:
		return PairPartial
	default:
		return PairGhost
	}
}

// Reconcile classifies a persisted position against live venue state at
// boot. pos is nil when the persisted state has no current_position; in
// that case Reconcile returns a non-resuming outcome at once without
// querying either venue.
func (r *Recovery) Reconcile(ctx context.Context, pos *Position) (RecoveryOutcome, error) {
	if pos == nil {
		return RecoveryOutcome{Resume: false, Reason: "no persisted position"}, nil
	}

	var sizeA, sizeL decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.govA.Do(gctx, func(ctx context.Context) (err error) {
			sizeA, err = r.gwA.OpenSize(ctx, pos.Symbol)
			return err
		})
	})
	g.Go(func() error {
		return r.govL.Do(gctx, func(ctx context.Context) (err error) {
			sizeL, err = r.gwL.OpenSize(ctx, pos.Symbol)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return RecoveryOutcome{}, err
	}

	descA, errA := r.marketDescriptor(ctx, VenueA, pos.Symbol)
	descL, errL := r.marketDescriptor(ctx, VenueL, pos.Symbol)
	if errA != nil || errL != nil {
		return RecoveryOutcome{}, firstNonNil(errA, errL)
	}

	switch ClassifyPair(sizeA, sizeL, descA.AmountTick, descL.AmountTick) {
	case PairHedge:
		updated := *pos
		observedAvg := sizeA.Abs().Add(sizeL.Abs()).Div(decimal.NewFromInt(2))
		diffAbs := observedAvg.Sub(pos.SizeBase).Abs()
		diffPct := decimal.Zero
		if !pos.SizeBase.IsZero() {
			diffPct = diffAbs.Div(pos.SizeBase).Mul(hundred)
		}
		tolPct := decimal.NewFromFloat(r.cfg.SizeReconcileTolerancePct)
		tolAbs := r.cfg.SizeReconcileToleranceAbsolute
		if diffPct.GreaterThan(tolPct) && diffAbs.GreaterThan(tolAbs) {
			r.log.Warn().Str("symbol", pos.Symbol).
				Str("stored", pos.SizeBase.String()).Str("observed_avg", observedAvg.String()).
				Msg("recovery: overwriting size_base with observed average")
			updated.SizeBase = observedAvg
		}
		return RecoveryOutcome{Resume: true, UpdatedPosition: &updated, Reason: "valid hedge"}, nil

	case PairInvalid:
		r.log.Warn().Str("symbol", pos.Symbol).Msg("recovery: both legs present but same-signed, clearing")
		return RecoveryOutcome{Resume: false, Reason: "same-signed legs"}, nil

	case PairPartial:
		r.log.Warn().Str("symbol", pos.Symbol).Msg("recovery: only one leg present, clearing — operator must reconcile manually")
		return RecoveryOutcome{Resume: false, Reason: "partial position"}, nil

	default: // PairGhost
		r.log.Warn().Str("symbol", pos.Symbol).Msg("recovery: neither leg present, clearing ghost state")
		return RecoveryOutcome{Resume: false, Reason: "ghost state"}, nil
	}
}

func (r *Recovery) marketDescriptor(ctx context.Context, v Venue, symbol string) (MarketDescriptor, error) {
	gw, gov := r.gatewayFor(v)
	var desc MarketDescriptor
	err := gov.Do(ctx, func(ctx context.Context) (err error) {
		desc, err = gw.MarketDescriptor(ctx, symbol)
		return err
	})
	return desc, err
}

func (r *Recovery) gatewayFor(v Venue) (VenueGateway, *Governor) {
	if v == VenueA {
		return r.gwA, r.govA
	}
	return r.gwL, r.govL
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
