// Command emergency detects any live delta-neutral pair across both venues
// (independent of what the state file claims) and, after an interactive
// confirmation, closes both legs concurrently. Grounded on the original
// emergency-exit tool's matching and confirmation flow.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chidi150c/deltarotate/internal/engine"
	"github.com/chidi150c/deltarotate/internal/venue"
)

func main() {
	var configFilePath string
	var yes bool

	root := &cobra.Command{
		Use:   "emergency",
		Short: "Detect and close any live delta-neutral pair across both venues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFilePath, yes)
		},
	}
	root.Flags().StringVar(&configFilePath, "config", "config.json", "Path to config.json")
	root.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the interactive confirmation")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type detectedPair struct {
	symbol   string
	detailsA engine.PositionDetails
	detailsL engine.PositionDetails
}

func run(configFilePath string, skipConfirm bool) error {
	engine.LoadDotEnv()
	cfg, err := engine.LoadConfig(configFilePath)
	if err != nil {
		return err
	}

	gwA := venue.NewVenueA(decimal.NewFromInt(10000))
	gwL := venue.NewVenueL(decimal.NewFromInt(10000))

	fmt.Printf("\n%s\n%-100s\n%s\n\n",
		strings.Repeat("=", 100), "EMERGENCY EXIT - DELTA-NEUTRAL POSITION CLOSER", strings.Repeat("=", 100))
	fmt.Printf("Timestamp: %s UTC\n\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	fmt.Println("Scanning for positions on both venues...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var pairs []detectedPair
	for _, symbol := range cfg.SymbolsToMonitor {
		detailsA, errA := gwA.PositionDetails(ctx, symbol)
		detailsL, errL := gwL.PositionDetails(ctx, symbol)
		if errA != nil || errL != nil {
			continue
		}
		if detailsA.Size.IsZero() || detailsL.Size.IsZero() {
			continue
		}
		signedA := signedSize(detailsA)
		signedL := signedSize(detailsL)
		if engine.ClassifyPair(signedA, signedL, decimal.Zero, decimal.Zero) == engine.PairHedge {
			pairs = append(pairs, detectedPair{symbol: symbol, detailsA: detailsA, detailsL: detailsL})
		}
	}

	if len(pairs) == 0 {
		fmt.Println("No delta-neutral positions found.")
		return nil
	}

	total := displayPairs(pairs)
	fmt.Printf("\nTotal Unrealized PnL: %s\n\n", total)

	if !skipConfirm {
		fmt.Print("Close ALL listed positions now? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(line)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	return closePairs(ctx, gwA, gwL, pairs)
}

func signedSize(d engine.PositionDetails) decimal.Decimal {
	if d.Side == engine.SideSell {
		return d.Size.Neg()
	}
	return d.Size
}

func displayPairs(pairs []detectedPair) decimal.Decimal {
	fmt.Printf("%-10s %-10s %-6s %-14s %-14s %-14s\n", "Symbol", "Venue", "Side", "Size", "Entry", "Unrealized PnL")
	fmt.Println(strings.Repeat("-", 100))
	total := decimal.Zero
	for _, p := range pairs {
		fmt.Printf("%-10s %-10s %-6s %-14s %-14s %-14s\n", p.symbol, "A", p.detailsA.Side, p.detailsA.Size, p.detailsA.EntryPrice, p.detailsA.UnrealizedPnL)
		fmt.Printf("%-10s %-10s %-6s %-14s %-14s %-14s\n", "", "L", p.detailsL.Side, p.detailsL.Size, p.detailsL.EntryPrice, p.detailsL.UnrealizedPnL)
		pairTotal := p.detailsA.UnrealizedPnL.Add(p.detailsL.UnrealizedPnL)
		fmt.Printf("%-10s %-10s pair total %s\n", "", "", pairTotal)
		fmt.Println(strings.Repeat("-", 100))
		total = total.Add(pairTotal)
	}
	return total
}

func closePairs(ctx context.Context, gwA, gwL engine.VenueGateway, pairs []detectedPair) error {
	fmt.Println("\nClosing positions on both venues...")
	for _, p := range pairs {
		fmt.Printf("Processing %s...\n", p.symbol)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			_, err := gwA.ClosePosition(gctx, p.symbol, p.detailsA.Size, p.detailsA.Side.Opposite())
			return err
		})
		g.Go(func() error {
			_, err := gwL.ClosePosition(gctx, p.symbol, p.detailsL.Size, p.detailsL.Side.Opposite())
			return err
		})
		if err := g.Wait(); err != nil {
			fmt.Printf("  error closing %s: %v\n", p.symbol, err)
			continue
		}

		time.Sleep(3 * time.Second)

		remainingA, _ := gwA.OpenSize(ctx, p.symbol)
		remainingL, _ := gwL.OpenSize(ctx, p.symbol)
		if remainingA.IsZero() && remainingL.IsZero() {
			fmt.Printf("  %s closed on both venues\n", p.symbol)
		} else {
			fmt.Printf("  %s: verification shows remaining size A=%s L=%s — check manually\n", p.symbol, remainingA, remainingL)
		}
	}
	return nil
}
