package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAnnualize(t *testing.T) {
	// 0.0005 per period, 6 periods/day -> 0.0005*6*365*100 = 109.5%
	apr := annualize(decimal.NewFromFloat(0.0005), 6)
	assert.True(t, apr.Equal(decimal.NewFromFloat(109.5)), "got %s", apr)
}

// An opportunity's net APR is the positive directional APR difference, and
// the short leg goes on the venue with the higher APR.
func TestToOpportunity_PicksBetterDirection(t *testing.T) {
	s := &Scanner{}

	obsFavorsLongL := FundingObservation{
		Symbol: "BTC",
		AprA:   decimal.NewFromFloat(40),
		AprL:   decimal.NewFromFloat(10),
	}
	opp := s.toOpportunity(obsFavorsLongL)
	assert.Equal(t, VenueL, opp.LongVenue)
	assert.Equal(t, VenueA, opp.ShortVenue)
	assert.True(t, opp.NetAPR.Equal(decimal.NewFromFloat(30)), "got %s", opp.NetAPR)

	obsFavorsLongA := FundingObservation{
		Symbol: "ETH",
		AprA:   decimal.NewFromFloat(10),
		AprL:   decimal.NewFromFloat(40),
	}
	opp2 := s.toOpportunity(obsFavorsLongA)
	assert.Equal(t, VenueA, opp2.LongVenue)
	assert.Equal(t, VenueL, opp2.ShortVenue)
	assert.True(t, opp2.NetAPR.Equal(decimal.NewFromFloat(30)), "got %s", opp2.NetAPR)
}

// A symbol whose spread exceeds max_spread_pct is excluded with reason
// "spread", regardless of how good its rates look.
func TestObserveSymbol_SpreadRejection(t *testing.T) {
	gwA := &fakeGateway{fundingRate: decimal.NewFromFloat(0.001), mid: decimal.NewFromFloat(3000)}
	gwL := &fakeGateway{fundingRate: decimal.NewFromFloat(0.0002), mid: decimal.NewFromFloat(3010)} // ~0.33% spread
	cfg := DefaultConfig()
	cfg.MaxSpreadPct = decimal.NewFromFloat(0.15)

	s := NewScanner(gwA, gwL, noRetryGovernor(), noRetryGovernor(), cfg, testLogger())
	obs := s.observeSymbol(testCtx(), "ETH")
	assert.Equal(t, ObservationIneligible, obs.Status)
	assert.Equal(t, "spread", obs.Reason)
}
