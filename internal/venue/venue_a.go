package venue

import "github.com/shopspring/decimal"

// NewVenueA builds the Venue-A (4-hour funding period) gateway simulator.
func NewVenueA(startBalance decimal.Decimal) *Simulator {
	return newSimulator("venue-a", 1, startBalance)
}
