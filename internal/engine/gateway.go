package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// VenueGateway is the capability set the core depends on. The core never
// imports a venue SDK directly — see internal/venue for the two concrete
// (simulated) implementations exercised by this engine.
type VenueGateway interface {
	Name() string
	MarketDescriptor(ctx context.Context, base string) (MarketDescriptor, error)
	BestBidAsk(ctx context.Context, base string) (Quote, error)
	FundingRate(ctx context.Context, base string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, base string, side OrderSide, sizeBase, referencePrice decimal.Decimal, crossTicks int) (OrderResult, error)
	ClosePosition(ctx context.Context, base string, sizeBase decimal.Decimal, side OrderSide) (OrderResult, error)
	OpenSize(ctx context.Context, base string) (decimal.Decimal, error) // signed: >0 long, <0 short
	PositionDetails(ctx context.Context, base string) (PositionDetails, error)
	AccountBalance(ctx context.Context) (Balance, error)
	SetLeverage(ctx context.Context, base string, leverage int, mode MarginMode) error
	LotStepSize(ctx context.Context, fullSymbol string) (decimal.Decimal, error)
}

// RateLimitError is raised after the Governor exhausts its retry budget on
// a rate-limited call.
type RateLimitError struct {
	Venue string
	Err   error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded after retries: %v", e.Venue, e.Err)
}
func (e *RateLimitError) Unwrap() error { return e.Err }

// TimeoutError is raised when a venue call exceeds its operation deadline.
type TimeoutError struct {
	Venue string
	Op    string
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s timed out: %v", e.Venue, e.Op, e.Err)
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// BalanceFetchError wraps a failed balance lookup. Non-fatal: scanning and
// holding continue, logged only.
type BalanceFetchError struct {
	Venue string
	Err   error
}

func (e *BalanceFetchError) Error() string {
	return fmt.Sprintf("%s: balance fetch failed: %v", e.Venue, e.Err)
}
func (e *BalanceFetchError) Unwrap() error { return e.Err }

// SizeTooSmallError is raised by the Coordinator when a rounded trade size
// is non-positive or below the per-venue heuristic minimum.
type SizeTooSmallError struct {
	Symbol   string
	SizeBase decimal.Decimal
	MinSize  decimal.Decimal
}

func (e *SizeTooSmallError) Error() string {
	return fmt.Sprintf("%s: rounded size %s below minimum %s", e.Symbol, e.SizeBase, e.MinSize)
}

// PartialFillError is raised when an open succeeds on one venue but fails
// on the other. No auto-unwind — the operator must intervene.
type PartialFillError struct {
	Symbol       string
	SucceededOn  Venue
	FailedVenue  Venue
	Err          error
}

func (e *PartialFillError) Error() string {
	return fmt.Sprintf("%s: partial fill — succeeded on %s, failed on %s: %v",
		e.Symbol, e.SucceededOn, e.FailedVenue, e.Err)
}
func (e *PartialFillError) Unwrap() error { return e.Err }

// PartialCloseError is raised when a close leaves one leg open (or a close
// order fails) while the other leg is closed.
type PartialCloseError struct {
	Symbol        string
	ClosedVenue   Venue
	RemainingLeg  Venue
	RemainingSize decimal.Decimal
}

func (e *PartialCloseError) Error() string {
	return fmt.Sprintf("%s: partial close — %s closed, %s still holds %s",
		e.Symbol, e.ClosedVenue, e.RemainingLeg, e.RemainingSize)
}

// StateCorruptError marks a state file that failed to parse. Recovery
// policy: start fresh with defaults, log a warning, never crash.
type StateCorruptError struct {
	Path string
	Err  error
}

func (e *StateCorruptError) Error() string {
	return fmt.Sprintf("state file %s unparseable: %v", e.Path, e.Err)
}
func (e *StateCorruptError) Unwrap() error { return e.Err }

// rateLimitMarkers are matched case-insensitively against an error's text
// representation. This substring approach is a stopgap for opaque SDK
// errors; a venue gateway that exposes real HTTP status codes should
// prefer returning *RateLimitError directly instead of relying on this
// fallback.
var rateLimitMarkers = []string{"429", "too many requests", "rate limit", "ratelimit"}

// IsRateLimited reports whether err should be treated as a rate-limit
// signal by the Governor, either because it already is a *RateLimitError or
// because its text matches one of the known substrings.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
