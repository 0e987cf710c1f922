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

	"github.com/spf13/cobra"

	"github.com/awaistahir/ecocharge/internal/config"
	"github.com/awaistahir/ecocharge/internal/jobs"
	"github.com/awaistahir/ecocharge/internal/log"
	"github.com/awaistahir/ecocharge/internal/planner"
	"github.com/awaistahir/ecocharge/internal/store"
	"github.com/awaistahir/ecocharge/internal/uiapi"
	"github.com/awaistahir/ecocharge/internal/weather"
)

func main() {
	var cfgFile string
	var port int
	var dbPath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:          "ecochargerd",
		Short:        "EcoCharge HTTP API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if debug {
				cfg.Debug = true
			}

			if err := log.Init(cfg.Debug); err != nil {
				return err
			}
			defer log.Sync()

			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ecocharge/config.yaml)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Database path")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	source := weather.NewSource(cfg.Forecast)
	p := planner.New(source, cfg.Forecast.HorizonHours)

	scheduler := jobs.NewScheduler()
	if err := scheduler.Register("prune-forecast-cache", cfg.Jobs.CachePruneSchedule, jobs.PruneCache(source)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := uiapi.NewServer(p, st,
		uiapi.WithCache(source),
		uiapi.WithJobs(scheduler),
		uiapi.WithDefaultLocation(cfg.Defaults.Latitude, cfg.Defaults.Longitude),
		uiapi.WithAllowedOrigins(cfg.Server.AllowedOrigins))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infow("EcoCharge API server starting", "addr", addr, "database", cfg.DBPath)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server shutdown error", "error", err)
		return err
	}

	log.Info("server stopped")
	return nil
}
