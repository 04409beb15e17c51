package engine

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	scanStaggerDelay  = 2500 * time.Millisecond
	scanSymbolTimeout = 30 * time.Second
)

var (
	hundred    = decimal.NewFromInt(100)
	daysPerYr  = decimal.NewFromInt(365)
)

// Scanner fetches per-venue funding rates and mids for every configured
// symbol, computes cross-venue spread and annualized net APR, and ranks
// the eligible results.
type Scanner struct {
	gwA, gwL   VenueGateway
	govA, govL *Governor
	cfg        Config
	log        zerolog.Logger
}

// NewScanner builds a Scanner over both venue gateways and their governors.
func NewScanner(gwA, gwL VenueGateway, govA, govL *Governor, cfg Config, log zerolog.Logger) *Scanner {
	return &Scanner{gwA: gwA, gwL: gwL, govA: govA, govL: govL, cfg: cfg, log: log}
}

// ScanResult is the full output of one scanner pass.
type ScanResult struct {
	Eligible   []Opportunity        // sorted by NetAPR descending
	Ineligible []FundingObservation // for display only
}

// Scan fans out a funding-rate and mid-price fetch for every configured
// symbol, staggering successive symbol spawns by scanStaggerDelay, and
// joins the results with an errgroup. Per-symbol failures never abort the
// pass — each goroutine always returns nil to the group and encodes its
// own failure as an Ineligible observation instead.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	symbols := s.cfg.SymbolsToMonitor
	observations := make([]FundingObservation, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			observations[i] = s.observeSymbol(gctx, symbol)
			return nil
		})
		if i < len(symbols)-1 {
			select {
			case <-time.After(scanStaggerDelay):
			case <-ctx.Done():
				return ScanResult{}, ctx.Err()
			}
		}
	}
	if err := g.Wait(); err != nil {
		return ScanResult{}, err
	}

	var result ScanResult
	for _, obs := range observations {
		if obs.Status != ObservationEligible {
			result.Ineligible = append(result.Ineligible, obs)
			continue
		}
		opp := s.toOpportunity(obs)
		SetOpportunityNetAPR(obs.Symbol, toFloat(opp.NetAPR))
		if opp.NetAPR.GreaterThanOrEqual(s.cfg.MinNetAPRThreshold) {
			result.Eligible = append(result.Eligible, opp)
		} else {
			result.Ineligible = append(result.Ineligible, FundingObservation{
				Symbol: obs.Symbol,
				Status: ObservationIneligible,
				Reason: "below min_net_apr_threshold",
			})
		}
	}
	sort.Slice(result.Eligible, func(i, j int) bool {
		return result.Eligible[i].NetAPR.GreaterThan(result.Eligible[j].NetAPR)
	})
	return result, nil
}

func (s *Scanner) observeSymbol(ctx context.Context, symbol string) FundingObservation {
	ctx, cancel := context.WithTimeout(ctx, scanSymbolTimeout)
	defer cancel()

	var rateA, rateL decimal.Decimal
	var haveRateA, haveRateL bool
	var quoteA, quoteL Quote

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.govA.Do(gctx, func(ctx context.Context) error {
			r, err := s.gwA.FundingRate(ctx, symbol)
			if err != nil {
				return err
			}
			rateA, haveRateA = r, true
			return nil
		})
		if err != nil {
			s.log.Debug().Str("symbol", symbol).Err(err).Msg("venue A funding rate fetch failed")
		}
		return nil // absorbed: caller treats this symbol as missing data, siblings keep running
	})
	g.Go(func() error {
		err := s.govL.Do(gctx, func(ctx context.Context) error {
			r, err := s.gwL.FundingRate(ctx, symbol)
			if err != nil {
				return err
			}
			rateL, haveRateL = r, true
			return nil
		})
		if err != nil {
			s.log.Debug().Str("symbol", symbol).Err(err).Msg("venue L funding rate fetch failed")
		}
		return nil
	})
	g.Go(func() error {
		err := s.govA.Do(gctx, func(ctx context.Context) error {
			q, err := s.gwA.BestBidAsk(ctx, symbol)
			if err != nil {
				return err
			}
			quoteA = q
			return nil
		})
		if err != nil {
			s.log.Debug().Str("symbol", symbol).Err(err).Msg("venue A quote fetch failed")
		}
		return nil
	})
	g.Go(func() error {
		err := s.govL.Do(gctx, func(ctx context.Context) error {
			q, err := s.gwL.BestBidAsk(ctx, symbol)
			if err != nil {
				return err
			}
			quoteL = q
			return nil
		})
		if err != nil {
			s.log.Debug().Str("symbol", symbol).Err(err).Msg("venue L quote fetch failed")
		}
		return nil
	})
	_ = g.Wait() // every goroutine above always returns nil; this only ever blocks until all four finish

	midA, okA := quoteA.Mid()
	midL, okL := quoteL.Mid()

	if !haveRateA || !haveRateL || !okA || !okL {
		return FundingObservation{Symbol: symbol, Status: ObservationIneligible, Reason: "missing data"}
	}

	avgMid := midA.Add(midL).Div(decimal.NewFromInt(2))
	spreadPct := midA.Sub(midL).Abs().Div(avgMid).Mul(hundred)

	obs := FundingObservation{
		Symbol:     symbol,
		VenueARate: rateA,
		VenueLRate: rateL,
		VenueAMid:  midA,
		VenueLMid:  midL,
		SpreadPct:  spreadPct,
	}

	if spreadPct.GreaterThan(s.cfg.MaxSpreadPct) {
		obs.Status = ObservationIneligible
		obs.Reason = "spread"
		return obs
	}

	obs.AprA = annualize(rateA, s.cfg.VenueAPeriodsPerDay)
	obs.AprL = annualize(rateL, s.cfg.VenueLPeriodsPerDay)
	obs.Status = ObservationEligible
	return obs
}

// annualize converts a per-funding-period rate to a percentage APR:
// rate * periods_per_day * 365 * 100.
func annualize(rate decimal.Decimal, periodsPerDay int) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(periodsPerDay))).Mul(daysPerYr).Mul(hundred)
}

// toOpportunity picks the better-APR direction for an eligible observation:
// long_A_short_L = apr_L - apr_A, long_L_short_A = apr_A - apr_L.
func (s *Scanner) toOpportunity(obs FundingObservation) Opportunity {
	longAshortL := obs.AprL.Sub(obs.AprA)
	longLshortA := obs.AprA.Sub(obs.AprL)

	opp := Opportunity{
		Symbol:     obs.Symbol,
		SpreadPct:  obs.SpreadPct,
		VenueARate: obs.VenueARate,
		VenueLRate: obs.VenueLRate,
		VenueAMid:  obs.VenueAMid,
		VenueLMid:  obs.VenueLMid,
	}
	if longAshortL.GreaterThanOrEqual(longLshortA) {
		opp.LongVenue, opp.ShortVenue, opp.NetAPR = VenueA, VenueL, longAshortL
	} else {
		opp.LongVenue, opp.ShortVenue, opp.NetAPR = VenueL, VenueA, longLshortA
	}
	return opp
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
