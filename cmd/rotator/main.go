// Command rotator runs the cross-venue delta-neutral funding-rate rotation
// engine: scan -> open -> hold -> close, looping forever until a shutdown
// signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/chidi150c/deltarotate/internal/engine"
	"github.com/chidi150c/deltarotate/internal/venue"
)

func main() {
	var stateFilePath string
	var configFilePath string
	var metricsPort int

	root := &cobra.Command{
		Use:   "rotator",
		Short: "Cross-venue delta-neutral funding-rate rotation engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(stateFilePath, configFilePath, metricsPort)
		},
	}
	root.Flags().StringVar(&stateFilePath, "state-file", "bot_state.json", "Path to the persisted state file")
	root.Flags().StringVar(&configFilePath, "config", "config.json", "Path to config.json")
	root.Flags().IntVar(&metricsPort, "metrics-port", 8090, "Port for /healthz and /metrics")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(stateFilePath, configFilePath string, metricsPort int) error {
	engine.LoadDotEnv()

	cfg, err := engine.LoadConfig(configFilePath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.StateFile = stateFilePath
	cfg.ConfigFile = configFilePath

	log, err := engine.NewLogger("rotator")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	credsA := engine.LoadVenueACredentials()
	credsL := engine.LoadVenueLCredentials()
	for _, m := range credsA.Missing() {
		log.Warn().Str("venue", "A").Str("field", m).Msg("missing credential")
	}
	for _, m := range credsL.Missing() {
		log.Warn().Str("venue", "L").Str("field", m).Msg("missing credential")
	}

	gwA := venue.NewVenueA(decimal.NewFromInt(10000))
	gwL := venue.NewVenueL(decimal.NewFromInt(10000))

	govCfg := engine.DefaultGovernorConfig()
	govA := engine.NewGovernor("venue-a", govCfg, log)
	govL := engine.NewGovernor("venue-l", govCfg, log)

	scanner := engine.NewScanner(gwA, gwL, govA, govL, cfg, log)
	coordinator := engine.NewCoordinator(gwA, gwL, govA, govL, cfg, log)
	monitor := engine.NewMonitor(gwA, gwL, govA, govL, scanner, cfg, log)
	recovery := engine.NewRecovery(gwA, gwL, govA, govL, cfg, log)
	persistor := engine.NewPersistor(cfg.StateFile, log)

	supervisor := engine.NewSupervisor(cfg, scanner, coordinator, monitor, recovery, persistor, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", metricsPort), Handler: mux}
	go func() {
		log.Info().Int("port", metricsPort).Msg("serving /healthz and /metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := supervisor.Recover(ctx); err != nil {
		log.Error().Err(err).Msg("recovery failed")
	}

	runErr := supervisor.Run(ctx)

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)

	if runErr != nil {
		return runErr
	}
	return nil
}
