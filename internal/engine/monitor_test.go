package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStopLossThreshold(t *testing.T) {
	// leverage=3 -> (100/3)*0.75 = 25
	assert.True(t, stopLossThreshold(3).Equal(decimal.NewFromFloat(25)), "got %s", stopLossThreshold(3))
	assert.True(t, stopLossThreshold(0).IsZero())
}

func TestMonitor_Tick_HoldTimerExpiry(t *testing.T) {
	gwA := &fakeGateway{}
	gwL := &fakeGateway{}
	m := NewMonitor(gwA, gwL, noRetryGovernor(), noRetryGovernor(), nil, DefaultConfig(), testLogger())

	pos := &Position{Symbol: "BTC", TargetCloseAt: time.Now().Add(-time.Minute), Leverage: 3}
	result := m.Tick(testCtx(), pos, time.Now())
	assert.Equal(t, ActionCloseTimer, result.Action)
}

// Stop-loss fires iff |worst_pnl_pct| >= (100/leverage)*0.75.
func TestMonitor_Tick_StopLossTripsAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableStopLoss = true
	cfg.FundingTableRefreshMinutes = 999

	notional := 1000.0
	leverage := 4
	threshold := stopLossThreshold(leverage) // (100/4)*0.75 = 18.75%
	worstPnL, _ := threshold.Div(hundred).Mul(decimal.NewFromFloat(notional)).Float64()

	gwA := &fakeGateway{details: PositionDetails{UnrealizedPnL: decimal.NewFromFloat(-worstPnL)}}
	gwL := &fakeGateway{details: PositionDetails{UnrealizedPnL: decimal.NewFromFloat(0)}}
	m := NewMonitor(gwA, gwL, noRetryGovernor(), noRetryGovernor(), nil, cfg, testLogger())

	pos := &Position{
		Symbol:        "BTC",
		TargetCloseAt: time.Now().Add(time.Hour),
		Leverage:      leverage,
		SizeBase:      decimal.NewFromFloat(10),
		AvgMid:        decimal.NewFromFloat(100), // notional = 1000
	}
	result := m.Tick(testCtx(), pos, time.Now())
	assert.Equal(t, ActionCloseStopLoss, result.Action)
}

func TestMonitor_Tick_HoldsWhenWithinThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableStopLoss = true
	cfg.FundingTableRefreshMinutes = 999

	gwA := &fakeGateway{details: PositionDetails{UnrealizedPnL: decimal.NewFromFloat(-1)}}
	gwL := &fakeGateway{details: PositionDetails{UnrealizedPnL: decimal.NewFromFloat(0)}}
	m := NewMonitor(gwA, gwL, noRetryGovernor(), noRetryGovernor(), nil, cfg, testLogger())

	pos := &Position{
		Symbol:        "BTC",
		TargetCloseAt: time.Now().Add(time.Hour),
		Leverage:      3,
		SizeBase:      decimal.NewFromFloat(10),
		AvgMid:        decimal.NewFromFloat(100),
		// Just refreshed, so the 999-minute refresh interval is not due.
		LastTableRefresh: time.Now(),
	}
	result := m.Tick(testCtx(), pos, time.Now())
	assert.Equal(t, ActionHold, result.Action)
}
