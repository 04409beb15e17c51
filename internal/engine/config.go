package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// Config holds every runtime knob recognized in config.json, plus the two
// venue funding-period constants. Keys prefixed "comment" in the raw JSON
// are tolerated and simply ignored since encoding/json drops unknown
// fields by default.
type Config struct {
	SymbolsToMonitor []string `json:"symbols_to_monitor"`
	Quote            string   `json:"quote"`

	Leverage       int             `json:"leverage"`
	NotionalPerPosition decimal.Decimal `json:"notional_per_position"`

	HoldDurationHours        float64 `json:"hold_duration_hours"`
	WaitBetweenCyclesMinutes float64 `json:"wait_between_cycles_minutes"`
	CheckIntervalSeconds     int     `json:"check_interval_seconds"`

	MinNetAPRThreshold decimal.Decimal `json:"min_net_apr_threshold"`
	MaxSpreadPct       decimal.Decimal `json:"max_spread_pct"`

	EnableStopLoss             bool    `json:"enable_stop_loss"`
	FundingTableRefreshMinutes float64 `json:"funding_table_refresh_minutes"`

	// VenueAPeriodsPerDay / VenueLPeriodsPerDay are exposed as config rather
	// than compiled in as constants, since venue funding schedules change
	// and an operator needs a knob to update them without a rebuild.
	VenueAPeriodsPerDay int `json:"venue_a_periods_per_day"`
	VenueLPeriodsPerDay int `json:"venue_l_periods_per_day"`

	// ErrorBackoffMinutes and SizeReconcileTolerance are tunable heuristics
	// promoted to config fields instead of literals.
	ErrorBackoffMinutes           float64 `json:"error_backoff_minutes"`
	SizeReconcileTolerancePct     float64 `json:"size_reconcile_tolerance_pct"`
	SizeReconcileToleranceAbsolute decimal.Decimal `json:"size_reconcile_tolerance_absolute"`

	StateFile string `json:"-"`
	ConfigFile string `json:"-"`
}

var defaultSymbols = []string{
	"BTC", "ETH", "SOL", "BNB", "XRP", "DOGE", "AVAX", "LINK", "ARB",
}

// DefaultConfig returns the documented defaults for every config.json key.
func DefaultConfig() Config {
	return Config{
		SymbolsToMonitor:          append([]string(nil), defaultSymbols...),
		Quote:                     "USDT",
		Leverage:                  3,
		NotionalPerPosition:       decimal.NewFromFloat(100.0),
		HoldDurationHours:         8.0,
		WaitBetweenCyclesMinutes:  5.0,
		CheckIntervalSeconds:      60,
		MinNetAPRThreshold:        decimal.NewFromFloat(5.0),
		MaxSpreadPct:              decimal.NewFromFloat(0.15),
		EnableStopLoss:            true,
		FundingTableRefreshMinutes: 5.0,
		VenueAPeriodsPerDay:       6,
		VenueLPeriodsPerDay:       3,
		ErrorBackoffMinutes:       5.0,
		SizeReconcileTolerancePct: 0.1,
		SizeReconcileToleranceAbsolute: decimal.NewFromFloat(0.001),
		StateFile:  "bot_state.json",
		ConfigFile: "config.json",
	}
}

// LoadConfig reads path as JSON, overlaying it onto DefaultConfig. A
// missing file is not an error — the engine runs on defaults. Keys whose
// name starts with "comment" are tolerated (and simply ignored) because
// encoding/json drops unknown fields by default; no rawConfig filtering
// pass is required.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	cfg.ConfigFile = path

	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := json.Unmarshal(bs, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return cfg, nil
}
