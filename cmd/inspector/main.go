// Command inspector is a read-only CLI that prints open positions and
// account balances on both venues. It reuses the same VenueGateway
// interface the engine trades through but never places an order.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/chidi150c/deltarotate/internal/engine"
	"github.com/chidi150c/deltarotate/internal/venue"
)

func main() {
	var symbol string
	var configFilePath string

	root := &cobra.Command{
		Use:   "inspector",
		Short: "Read-only position and balance inspector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFilePath, symbol)
		},
	}
	root.Flags().StringVarP(&symbol, "symbol", "s", "", "Check a specific symbol (e.g. BTC); omit to list the configured universe")
	root.Flags().StringVar(&configFilePath, "config", "config.json", "Path to config.json")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configFilePath, symbol string) error {
	engine.LoadDotEnv()

	cfg, err := engine.LoadConfig(configFilePath)
	if err != nil {
		return err
	}

	gwA := venue.NewVenueA(decimal.NewFromInt(10000))
	gwL := venue.NewVenueL(decimal.NewFromInt(10000))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Printf("\n%s\n%-100s\n%s\n\n", "====================================================================================================",
		"POSITION INSPECTOR", "----------------------------------------------------------------------------------------------------")
	fmt.Printf("Timestamp: %s UTC\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))

	symbols := cfg.SymbolsToMonitor
	if symbol != "" {
		symbols = []string{symbol}
	}

	for _, name := range symbols {
		printSymbol(ctx, gwA, "A", name)
		printSymbol(ctx, gwL, "L", name)
	}

	balA, errA := gwA.AccountBalance(ctx)
	balL, errL := gwL.AccountBalance(ctx)
	fmt.Println("\nAccount Balances:")
	if errA == nil {
		fmt.Printf("  Venue A  Total: %-14s Available: %s\n", balA.Total, balA.Available)
	} else {
		fmt.Printf("  Venue A  balance unavailable: %v\n", errA)
	}
	if errL == nil {
		fmt.Printf("  Venue L  Total: %-14s Available: %s\n", balL.Total, balL.Available)
	} else {
		fmt.Printf("  Venue L  balance unavailable: %v\n", errL)
	}
	fmt.Println()
	return nil
}

func printSymbol(ctx context.Context, gw engine.VenueGateway, venueName, base string) {
	details, err := gw.PositionDetails(ctx, base)
	if err != nil {
		fmt.Printf("%-4s %-8s error: %v\n", venueName, base, err)
		return
	}
	if details.Size.IsZero() {
		return
	}
	fmt.Printf("%-4s %-8s %-6s size=%-14s entry=%-14s pnl=%-14s leverage=%dx margin=%s\n",
		venueName, base, details.Side, details.Size, details.EntryPrice, details.UnrealizedPnL,
		details.Leverage, details.MarginMode)
}
