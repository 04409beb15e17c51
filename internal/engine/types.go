// Package engine implements the cross-venue delta-neutral funding-rate
// rotation core: opportunity scanning, atomic two-leg trade coordination,
// position monitoring, state persistence, and crash recovery.
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Venue identifies one of the two perpetual-futures venues this engine
// trades against. The core never depends on a venue SDK directly — only
// on the VenueGateway capability set.
type Venue string

const (
	VenueA Venue = "A"
	VenueL Venue = "L"
)

// Other returns the opposite venue.
func (v Venue) Other() Venue {
	if v == VenueA {
		return VenueL
	}
	return VenueA
}

func (v Venue) String() string { return string(v) }

// OrderSide is the direction of an order or an open position leg.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Opposite returns the closing side for a held position.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// MarginMode mirrors the two margin regimes exposed by both venues.
type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
)

// Symbol holds the short base-asset tag; the venue-native full name is
// derived from it on demand by FullSymbol.
type Symbol struct {
	Base string
}

// FullSymbol appends the configured quote suffix to the base tag, e.g.
// "BTC" + "USDT" -> "BTCUSDT".
func (s Symbol) FullSymbol(quote string) string {
	return s.Base + quote
}

// MarketDescriptor fixes the quantization grid for a symbol on one venue.
type MarketDescriptor struct {
	MarketID   string
	PriceTick  decimal.Decimal
	AmountTick decimal.Decimal
}

// Quote is a best bid/ask snapshot. Either side may be absent (nil).
type Quote struct {
	Bid *decimal.Decimal
	Ask *decimal.Decimal
}

// Mid returns (bid+ask)/2 when both sides are present, otherwise whichever
// side exists. ok is false only when neither side is present.
func (q Quote) Mid() (mid decimal.Decimal, ok bool) {
	switch {
	case q.Bid != nil && q.Ask != nil:
		return q.Bid.Add(*q.Ask).Div(decimal.NewFromInt(2)), true
	case q.Bid != nil:
		return *q.Bid, true
	case q.Ask != nil:
		return *q.Ask, true
	default:
		return decimal.Zero, false
	}
}

// PositionDetails is a live position snapshot for one venue leg.
type PositionDetails struct {
	Side          OrderSide
	Size          decimal.Decimal // unsigned
	EntryPrice    decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      int
	MarginMode    MarginMode
}

// Balance is an account-level balance snapshot.
type Balance struct {
	Total     decimal.Decimal
	Available decimal.Decimal
}

// OrderResult reports the outcome of a successfully placed order. Failures
// are reported as errors, never as a zero-value OrderResult.
type OrderResult struct {
	OrderID      string
	Side         OrderSide
	RequestedQty decimal.Decimal
	FilledQty    decimal.Decimal
	FilledPrice  decimal.Decimal
}

// ObservationStatus tags a FundingObservation as a named variant instead of
// a dynamically-shaped record: Eligible carries the computed rates, spread
// and directional APRs; Ineligible carries only a reason.
type ObservationStatus string

const (
	ObservationEligible   ObservationStatus = "eligible"
	ObservationIneligible ObservationStatus = "ineligible"
)

// FundingObservation is the per-symbol result of one scanner pass.
type FundingObservation struct {
	Symbol     string
	Status     ObservationStatus
	Reason     string // populated only when Status == Ineligible
	VenueARate decimal.Decimal
	VenueLRate decimal.Decimal
	VenueAMid  decimal.Decimal
	VenueLMid  decimal.Decimal
	SpreadPct  decimal.Decimal
	AprA       decimal.Decimal
	AprL       decimal.Decimal
}

// Opportunity is a ranked, directional, eligible funding trade.
type Opportunity struct {
	Symbol     string
	LongVenue  Venue
	ShortVenue Venue
	NetAPR     decimal.Decimal
	SpreadPct  decimal.Decimal
	VenueARate decimal.Decimal
	VenueLRate decimal.Decimal
	VenueAMid  decimal.Decimal
	VenueLMid  decimal.Decimal
}

// Position is the single live delta-neutral pair, at most one at a time.
type Position struct {
	Symbol          string          `json:"symbol"`
	LongVenue       Venue           `json:"long_venue"`
	ShortVenue      Venue           `json:"short_venue"`
	Leverage        int             `json:"leverage"`
	OpenedAt        time.Time       `json:"opened_at"`
	TargetCloseAt   time.Time       `json:"target_close_at"`
	SizeBase        decimal.Decimal `json:"size_base"`
	AvgMid          decimal.Decimal `json:"avg_mid"`
	ExpectedNetAPR  decimal.Decimal `json:"expected_net_apr"`
	LastTableRefresh time.Time      `json:"last_table_refresh"`
}

// CycleStatus is the terminal outcome recorded for a completed cycle.
type CycleStatus string

const (
	CycleSuccess  CycleStatus = "success"
	CycleStopLoss CycleStatus = "stop-loss"
	CycleFailed   CycleStatus = "failed"
)

// CycleRecord is an append-only history entry.
type CycleRecord struct {
	Symbol         string           `json:"symbol"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       time.Time        `json:"closed_at"`
	ExpectedNetAPR decimal.Decimal  `json:"expected_net_apr"`
	Status         CycleStatus      `json:"status"`
	PnLAtClose     *decimal.Decimal `json:"pnl_at_close,omitempty"`
	PnLPctAtClose  *decimal.Decimal `json:"pnl_pct_at_close,omitempty"`
	WorstExchange  *Venue           `json:"worst_exchange,omitempty"`
}

// CapitalStatus is a balance snapshot carried in the state file. The engine
// starts it at zero and does not fill it in, and it is never consulted for
// sizing — config's
// notional_per_position always wins. A later revision may wire it into a
// balance-based cap.
type CapitalStatus struct {
	TotalUSD     decimal.Decimal `json:"total_usd"`
	AvailableUSD decimal.Decimal `json:"available_usd"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CumulativeStats tracks running totals across the life of the state file.
type CumulativeStats struct {
	TotalCycles      int             `json:"total_cycles"`
	SuccessfulCycles int             `json:"successful_cycles"`
	StopLossCycles   int             `json:"stop_loss_cycles"`
	FailedCycles     int             `json:"failed_cycles"`
	TotalPnLUSD      decimal.Decimal `json:"total_pnl_usd"`
	LastError        string          `json:"last_error,omitempty"`
}

// State is one node of the supervisor's state machine.
type State string

const (
	StateIdle       State = "IDLE"
	StateAnalyzing  State = "ANALYZING"
	StateOpening    State = "OPENING"
	StateHolding    State = "HOLDING"
	StateClosing    State = "CLOSING"
	StateWaiting    State = "WAITING"
	StateError      State = "ERROR"
	StateShutdown   State = "SHUTDOWN"
)

// CurrentCycleSummary is the lightweight "what's active right now" view
// carried alongside CurrentPosition in the state file, per the documented
// state-file key contract (state, current_cycle, current_position, ...).
type CurrentCycleSummary struct {
	Symbol         string          `json:"symbol"`
	StartedAt      time.Time       `json:"started_at"`
	ExpectedNetAPR decimal.Decimal `json:"expected_net_apr"`
}

// BotState is the full persisted snapshot. CurrentPosition is non-nil
// whenever State == StateHolding; it also stays set through CLOSING (and
// into ERROR when a close fails) and is cleared only after a successful
// close or a recovery that does not resume.
type BotState struct {
	Version         int                  `json:"version"`
	State           State                `json:"state"`
	CurrentCycle    *CurrentCycleSummary `json:"current_cycle,omitempty"`
	CurrentPosition *Position            `json:"current_position,omitempty"`
	CapitalStatus   CapitalStatus        `json:"capital_status"`
	CompletedCycles []CycleRecord        `json:"completed_cycles"`
	CumulativeStats CumulativeStats      `json:"cumulative_stats"`
	Config          Config               `json:"config"`
	LastUpdated     time.Time            `json:"last_updated"`

	// EnteredStateAt is not part of the documented state-file contract but
	// is persisted to make WAITING/ERROR cooldown survive a restart.
	EnteredStateAt time.Time `json:"entered_state_at"`
}

const stateFileVersion = 1

// NewBotState returns the default state a fresh install (or a corrupt /
// missing state file) starts from.
func NewBotState(cfg Config) BotState {
	return BotState{
		Version:         stateFileVersion,
		State:           StateIdle,
		CapitalStatus:   CapitalStatus{TotalUSD: decimal.Zero, AvailableUSD: decimal.Zero},
		CompletedCycles: []CycleRecord{},
		CumulativeStats: CumulativeStats{TotalPnLUSD: decimal.Zero},
		Config:          cfg,
		LastUpdated:     time.Now().UTC(),
		EnteredStateAt:  time.Now().UTC(),
	}
}
