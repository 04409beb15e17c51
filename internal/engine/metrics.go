package engine

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the rotation engine: counters for orders/cycles/
// state transitions/rate-limit retries, gauges for equity, the
// currently-held position, the funding table and breaker state,
// registered in init() and served by promhttp in cmd/rotator.
var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_orders_total",
			Help: "Orders placed, by venue and side",
		},
		[]string{"venue", "side"},
	)

	mtxCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_cycles_total",
			Help: "Completed cycles by terminal status (success|stop-loss|failed)",
		},
		[]string{"status"},
	)

	mtxStateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_state_transitions_total",
			Help: "State machine transitions, by destination state",
		},
		[]string{"state"},
	)

	mtxEquityUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rotator_equity_usd",
			Help: "Most recently observed capital_status.total_usd",
		},
	)

	mtxHeldPnLPct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rotator_held_position_pnl_pct",
			Help: "Worst-leg unrealized PnL percent of the currently held position, 0 when flat",
		},
	)

	mtxNetAPR = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rotator_opportunity_net_apr_pct",
			Help: "Most recent scan's net APR percent per symbol",
		},
		[]string{"symbol"},
	)

	mtxRateLimitRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotator_rate_limit_retries_total",
			Help: "Governor retry attempts, by venue",
		},
		[]string{"venue"},
	)

	mtxGovernorBreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rotator_governor_breaker_open",
			Help: "1 when a venue's circuit breaker is open, else 0",
		},
		[]string{"venue"},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxCycles, mtxStateTransitions)
	prometheus.MustRegister(mtxEquityUSD, mtxHeldPnLPct, mtxNetAPR)
	prometheus.MustRegister(mtxRateLimitRetries, mtxGovernorBreakerOpen)
}

// IncOrder records a placed order.
func IncOrder(venue string, side string) { mtxOrders.WithLabelValues(venue, side).Inc() }

// IncCycle records a completed cycle's terminal status.
func IncCycle(status string) { mtxCycles.WithLabelValues(status).Inc() }

// IncStateTransition records a transition into the given state.
func IncStateTransition(state string) { mtxStateTransitions.WithLabelValues(state).Inc() }

// SetEquityUSD publishes the latest capital snapshot.
func SetEquityUSD(v float64) { mtxEquityUSD.Set(v) }

// SetHeldPnLPct publishes the held position's worst-leg PnL percent.
func SetHeldPnLPct(v float64) { mtxHeldPnLPct.Set(v) }

// SetOpportunityNetAPR publishes a symbol's most recent net APR percent.
func SetOpportunityNetAPR(symbol string, v float64) { mtxNetAPR.WithLabelValues(symbol).Set(v) }

// IncRateLimitRetry records one Governor retry attempt for a venue.
func IncRateLimitRetry(venue string) { mtxRateLimitRetries.WithLabelValues(venue).Inc() }

// SetBreakerOpen publishes a venue's circuit-breaker open/closed state.
func SetBreakerOpen(venue string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	mtxGovernorBreakerOpen.WithLabelValues(venue).Set(v)
}
