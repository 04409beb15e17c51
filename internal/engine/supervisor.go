package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Supervisor is the single-threaded cooperative driver: each iteration
// reads the current state and dispatches to the matching handler. It is
// the mutator of BotState, apart from the Monitor updating the held
// position's LastTableRefresh; the Scanner only reads and returns.
type Supervisor struct {
	cfg        Config
	scanner    *Scanner
	coordinator *Coordinator
	monitor    *Monitor
	recovery   *Recovery
	persistor  *Persistor
	log        zerolog.Logger

	state BotState

	// Ephemeral handoff fields between handlers within one cycle. None of
	// these are persisted — they're reconstructible from BotState plus the
	// next Scan/Monitor call, so they live only in memory; the state file
	// remains the single source of durable truth.
	pendingOpp         *Opportunity
	pendingCloseReason CycleStatus
	pendingWorstVenue  *Venue
	pendingPnL         *decimal.Decimal
	pendingPnLPct      *decimal.Decimal
}

// NewSupervisor wires every component together and loads (or defaults) the
// persisted state file.
func NewSupervisor(cfg Config, scanner *Scanner, coordinator *Coordinator, monitor *Monitor, recovery *Recovery, persistor *Persistor, log zerolog.Logger) *Supervisor {
	state, usedDefault := persistor.Load(cfg)
	if usedDefault {
		log.Warn().Msg("starting from default state")
	}
	return &Supervisor{
		cfg: cfg, scanner: scanner, coordinator: coordinator, monitor: monitor,
		recovery: recovery, persistor: persistor, log: log, state: state,
	}
}

// Recover runs the Recovery subsystem once at boot, before the main loop.
func (s *Supervisor) Recover(ctx context.Context) error {
	if s.state.State != StateHolding && s.state.CurrentPosition == nil {
		return nil
	}
	outcome, err := s.recovery.Reconcile(ctx, s.state.CurrentPosition)
	if err != nil {
		return fmt.Errorf("recovery reconcile: %w", err)
	}
	if outcome.Resume && outcome.UpdatedPosition != nil {
		s.state.CurrentPosition = outcome.UpdatedPosition
		s.state.State = StateHolding
		s.log.Info().Str("symbol", outcome.UpdatedPosition.Symbol).Msg("recovery: resuming HOLDING")
	} else {
		s.state.CurrentPosition = nil
		s.state.CurrentCycle = nil
		s.state.State = StateIdle
		s.log.Warn().Str("reason", outcome.Reason).Msg("recovery: clearing to IDLE")
	}
	return s.persistor.Save(s.state)
}

// Run drives the state machine until ctx is cancelled or a fatal error
// occurs. On cancellation it transitions any live state cleanly to
// SHUTDOWN — it does not auto-close open positions; the operator chooses
// via the emergency tool.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		default:
		}

		if err := s.dispatch(ctx); err != nil {
			// A shutdown signal cancels ctx mid-dispatch (e.g. mid-Scan or
			// mid-Open/Close), which surfaces here as context.Canceled rather
			// than through the ctx.Done() check above. That's a clean
			// shutdown, not a fatal exception — route it to SHUTDOWN instead
			// of ERROR so the exit code and persisted state both reflect it.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.log.Warn().Err(err).Msg("dispatch interrupted by shutdown signal")
				return s.shutdown()
			}

			s.state.CumulativeStats.LastError = err.Error()
			s.forceErrorState()
			if saveErr := s.persistor.Save(s.state); saveErr != nil {
				s.log.Error().Err(saveErr).Msg("failed to persist ERROR state")
			}
			s.log.Error().Err(err).Msg("fatal error, exiting")
			return err
		}

		if err := s.persistor.Save(s.state); err != nil {
			s.log.Error().Err(err).Msg("state persist failed")
		}

		if delay := s.interIterationDelay(); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return s.shutdown()
			}
		}
	}
}

// forceErrorState moves state to ERROR unconditionally. The documented
// transition table only allows ERROR from OPENING/CLOSING, but a fatal
// dispatch error can occur from any state (e.g. a corrupt scan result
// raised from ANALYZING); when Transition rejects the edge as illegal, the
// state is still forced to ERROR rather than silently left unchanged, so
// last_error and state never disagree about whether the run is fatal.
func (s *Supervisor) forceErrorState() {
	if err := Transition(&s.state, StateError); err != nil {
		s.log.Warn().Str("from", string(s.state.State)).Err(err).
			Msg("forcing ERROR state despite illegal transition")
		s.state.State = StateError
		s.state.EnteredStateAt = time.Now().UTC()
		IncStateTransition(string(StateError))
	}
}

func (s *Supervisor) shutdown() error {
	_ = Transition(&s.state, StateShutdown)
	if err := s.persistor.Save(s.state); err != nil {
		s.log.Error().Err(err).Msg("failed to persist SHUTDOWN state")
	}
	s.log.Info().Msg("clean shutdown")
	return nil
}

// dispatch runs exactly one state's handler. Handlers mutate s.state
// in-place and call Transition to move to the next node.
func (s *Supervisor) dispatch(ctx context.Context) error {
	switch s.state.State {
	case StateIdle:
		return s.handleIdle()
	case StateAnalyzing:
		return s.handleAnalyzing(ctx)
	case StateOpening:
		return s.handleOpening(ctx)
	case StateHolding:
		return s.handleHolding(ctx)
	case StateClosing:
		return s.handleClosing(ctx)
	case StateWaiting:
		return s.handleWaiting()
	case StateError:
		return s.handleError()
	default:
		return fmt.Errorf("supervisor dispatched in terminal state %s", s.state.State)
	}
}

func (s *Supervisor) handleIdle() error {
	return Transition(&s.state, StateAnalyzing)
}

func (s *Supervisor) handleAnalyzing(ctx context.Context) error {
	result, err := s.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	s.logScanResult(result)

	var pick *Opportunity
	for i := range result.Eligible {
		if result.Eligible[i].NetAPR.GreaterThanOrEqual(s.cfg.MinNetAPRThreshold) {
			pick = &result.Eligible[i]
			break
		}
	}
	if pick == nil {
		return Transition(&s.state, StateWaiting)
	}

	s.state.CurrentCycle = &CurrentCycleSummary{
		Symbol:         pick.Symbol,
		StartedAt:      time.Now().UTC(),
		ExpectedNetAPR: pick.NetAPR,
	}
	s.pendingOpp = pick
	return Transition(&s.state, StateOpening)
}

func (s *Supervisor) logScanResult(result ScanResult) {
	for _, opp := range result.Eligible {
		s.log.Info().Str("symbol", opp.Symbol).Str("net_apr_pct", opp.NetAPR.String()).
			Str("long", string(opp.LongVenue)).Str("short", string(opp.ShortVenue)).Msg("eligible opportunity")
	}
	for _, obs := range result.Ineligible {
		s.log.Debug().Str("symbol", obs.Symbol).Str("reason", obs.Reason).Msg("ineligible symbol")
	}
}

func (s *Supervisor) handleOpening(ctx context.Context) error {
	if s.pendingOpp == nil {
		return Transition(&s.state, StateWaiting)
	}
	holdDuration := time.Duration(s.cfg.HoldDurationHours * float64(time.Hour))
	outcome, err := s.coordinator.Open(ctx, *s.pendingOpp, holdDuration)
	if err != nil {
		return err
	}
	for _, w := range outcome.Warnings {
		s.log.Warn().Str("symbol", outcome.Position.Symbol).Msg(w)
	}
	s.state.CurrentPosition = &outcome.Position
	s.pendingOpp = nil
	return Transition(&s.state, StateHolding)
}

func (s *Supervisor) handleHolding(ctx context.Context) error {
	pos := s.state.CurrentPosition
	if pos == nil {
		return Transition(&s.state, StateClosing)
	}
	result := s.monitor.Tick(ctx, pos, time.Now().UTC())
	if result.RefreshedTable != nil {
		s.logScanResult(*result.RefreshedTable)
	}
	switch result.Action {
	case ActionCloseTimer:
		s.pendingCloseReason = CycleSuccess
		return Transition(&s.state, StateClosing)
	case ActionCloseStopLoss:
		s.pendingCloseReason = CycleStopLoss
		s.pendingWorstVenue = &result.WorstVenue
		s.pendingPnL = &result.WorstPnL
		s.pendingPnLPct = &result.WorstPnLPct
		return Transition(&s.state, StateClosing)
	default:
		return nil // stay in HOLDING this iteration
	}
}

func (s *Supervisor) handleClosing(ctx context.Context) error {
	pos := s.state.CurrentPosition
	if pos == nil {
		return Transition(&s.state, StateWaiting)
	}
	_, err := s.coordinator.Close(ctx, *pos)
	if err != nil {
		return err
	}

	status := s.pendingCloseReason
	if status == "" {
		status = CycleSuccess
	}
	record := CycleRecord{
		Symbol:         pos.Symbol,
		OpenedAt:       pos.OpenedAt,
		ClosedAt:       time.Now().UTC(),
		ExpectedNetAPR: pos.ExpectedNetAPR,
		Status:         status,
		PnLAtClose:     s.pendingPnL,
		PnLPctAtClose:  s.pendingPnLPct,
		WorstExchange:  s.pendingWorstVenue,
	}
	s.state.CompletedCycles = append(s.state.CompletedCycles, record)
	s.state.CumulativeStats.TotalCycles++
	switch status {
	case CycleSuccess:
		s.state.CumulativeStats.SuccessfulCycles++
	case CycleStopLoss:
		s.state.CumulativeStats.StopLossCycles++
	case CycleFailed:
		s.state.CumulativeStats.FailedCycles++
	}
	IncCycle(string(status))

	s.state.CurrentPosition = nil
	s.state.CurrentCycle = nil
	s.pendingCloseReason = ""
	s.pendingWorstVenue = nil
	s.pendingPnL = nil
	s.pendingPnLPct = nil
	return Transition(&s.state, StateWaiting)
}

func (s *Supervisor) handleWaiting() error {
	cooldown := time.Duration(s.cfg.WaitBetweenCyclesMinutes * float64(time.Minute))
	if time.Since(s.state.EnteredStateAt) >= cooldown {
		return Transition(&s.state, StateIdle)
	}
	return nil
}

func (s *Supervisor) handleError() error {
	backoff := time.Duration(s.cfg.ErrorBackoffMinutes * float64(time.Minute))
	if time.Since(s.state.EnteredStateAt) >= backoff {
		return Transition(&s.state, StateIdle)
	}
	return nil
}

// interIterationDelay keeps the loop from busy-spinning while in a
// long-lived state (WAITING, ERROR, HOLDING).
func (s *Supervisor) interIterationDelay() time.Duration {
	switch s.state.State {
	case StateHolding:
		return time.Duration(s.cfg.CheckIntervalSeconds) * time.Second
	case StateWaiting, StateError:
		return 5 * time.Second
	default:
		return 0
	}
}
