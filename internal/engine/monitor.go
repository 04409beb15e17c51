package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MonitorAction is the signal a Tick produces for the Supervisor.
type MonitorAction string

const (
	ActionHold           MonitorAction = "hold"
	ActionCloseTimer     MonitorAction = "close-timer"
	ActionCloseStopLoss  MonitorAction = "close-stop-loss"
)

// Monitor polls both venues' unrealized PnL for the held position,
// evaluates the stop-loss condition, detects hold-timer expiry, and
// periodically refreshes the opportunity table for display.
type Monitor struct {
	gwA, gwL   VenueGateway
	govA, govL *Governor
	scanner    *Scanner
	cfg        Config
	log        zerolog.Logger
}

// NewMonitor builds a Monitor.
func NewMonitor(gwA, gwL VenueGateway, govA, govL *Governor, scanner *Scanner, cfg Config, log zerolog.Logger) *Monitor {
	return &Monitor{gwA: gwA, gwL: gwL, govA: govA, govL: govL, scanner: scanner, cfg: cfg, log: log}
}

// TickResult reports the monitor's evaluation for one poll.
type TickResult struct {
	Action          MonitorAction
	WorstPnL        decimal.Decimal
	WorstPnLPct     decimal.Decimal
	WorstVenue      Venue
	RefreshedTable  *ScanResult
}

// Tick evaluates one poll: hold-timer expiry, stop-loss, and periodic
// funding-table refresh.
func (m *Monitor) Tick(ctx context.Context, pos *Position, now time.Time) TickResult {
	if !now.Before(pos.TargetCloseAt) {
		return TickResult{Action: ActionCloseTimer}
	}

	var pnlA, pnlL decimal.Decimal
	var haveA, haveL bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pnlA, haveA = m.fetchPnL(gctx, VenueA, pos.Symbol)
		return nil
	})
	g.Go(func() error {
		pnlL, haveL = m.fetchPnL(gctx, VenueL, pos.Symbol)
		return nil
	})
	_ = g.Wait()

	var worstPnL decimal.Decimal
	var worstVenue Venue
	switch {
	case haveA && haveL:
		if pnlA.LessThan(pnlL) {
			worstPnL, worstVenue = pnlA, VenueA
		} else {
			worstPnL, worstVenue = pnlL, VenueL
		}
	case haveA:
		worstPnL, worstVenue = pnlA, VenueA
	case haveL:
		worstPnL, worstVenue = pnlL, VenueL
	default:
		return TickResult{Action: ActionHold}
	}

	notional := pos.SizeBase.Mul(pos.AvgMid)
	var pnlPct decimal.Decimal
	if !notional.IsZero() {
		pnlPct = worstPnL.Div(notional).Mul(hundred)
	}
	SetHeldPnLPct(toFloat(pnlPct))

	result := TickResult{Action: ActionHold, WorstPnL: worstPnL, WorstPnLPct: pnlPct, WorstVenue: worstVenue}

	if m.cfg.EnableStopLoss {
		stopLossPct := stopLossThreshold(pos.Leverage)
		if pnlPct.Abs().GreaterThanOrEqual(stopLossPct) {
			result.Action = ActionCloseStopLoss
			return result
		}
	}

	refreshDue := now.Sub(pos.LastTableRefresh) >= time.Duration(m.cfg.FundingTableRefreshMinutes*float64(time.Minute))
	if refreshDue {
		if scan, err := m.scanner.Scan(ctx); err == nil {
			result.RefreshedTable = &scan
			pos.LastTableRefresh = now
		} else {
			m.log.Warn().Err(err).Msg("funding table refresh failed")
		}
	}

	return result
}

// stopLossThreshold implements stop_loss_pct = (100/leverage) * 0.75.
func stopLossThreshold(leverage int) decimal.Decimal {
	if leverage <= 0 {
		return decimal.Zero
	}
	// Multiply before dividing so e.g. leverage=3 yields exactly 25.
	return hundred.Mul(decimal.NewFromFloat(0.75)).Div(decimal.NewFromInt(int64(leverage)))
}

func (m *Monitor) fetchPnL(ctx context.Context, v Venue, symbol string) (decimal.Decimal, bool) {
	gw, gov := m.gatewayFor(v)
	var pnl decimal.Decimal
	err := gov.Do(ctx, func(ctx context.Context) error {
		details, err := gw.PositionDetails(ctx, symbol)
		if err != nil {
			return err
		}
		pnl = details.UnrealizedPnL
		return nil
	})
	if err != nil {
		m.log.Warn().Str("venue", string(v)).Str("symbol", symbol).Err(err).Msg("PnL fetch failed")
		return decimal.Zero, false
	}
	return pnl, true
}

func (m *Monitor) gatewayFor(v Venue) (VenueGateway, *Governor) {
	if v == VenueA {
		return m.gwA, m.govA
	}
	return m.gwL, m.govL
}
