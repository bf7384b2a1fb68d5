// Command kirkctl runs administrative tasks against the storefront's Firebase project.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Kirk-Client/Kirk-Site/internal/app"
	"github.com/Kirk-Client/Kirk-Site/internal/cli"
	"github.com/Kirk-Client/Kirk-Site/internal/config"
)

func open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cli.Services, error) {
	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
