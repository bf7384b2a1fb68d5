// Command server serves the storefront checkout, webhook and account endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Kirk-Client/Kirk-Site/internal/app"
	"github.com/Kirk-Client/Kirk-Site/internal/config"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Kirk Client storefront backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("KIRK_CONFIG"), "Path to a YAML config file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger := app.NewLogger(config.LogConfig{}, os.Stderr)
		logger.Error().Err(err).Msg("server exited")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	accountService, err := backend.Accounts()
	if err != nil {
		return err
	}

	ledger, closeLedger, err := app.NewLedger(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeLedger()

	handler, err := app.NewHandler(cfg, app.Deps{
		Storage:  backend.Storage,
		Accounts: accountService,
		Ledger:   ledger,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("tier_policy", cfg.Subscription.TierPolicy).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
