package venue

import "github.com/shopspring/decimal"

// NewVenueL builds the Venue-L (8-hour funding period) gateway simulator.
func NewVenueL(startBalance decimal.Decimal) *Simulator {
	return newSimulator("venue-l", -1, startBalance)
}
