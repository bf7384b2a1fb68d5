// Package cli implements the kirkctl administrative commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Kirk-Client/Kirk-Site/internal/config"
	"github.com/Kirk-Client/Kirk-Site/pkg/accounts"
)

// Services are the backends commands operate on
type Services interface {
	Accounts() (*accounts.Service, error)
	Wiper() (*accounts.Wiper, error)
	Close() error
}

// Opener connects to the backends described by cfg
type Opener func(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Services, error)

type rootOptions struct {
	configPath string
	logLevel   string
	open       Opener
}

// NewRootCmd builds the kirkctl command tree
func NewRootCmd(open Opener) *cobra.Command {
	opts := &rootOptions{open: open}
	root := &cobra.Command{
		Use:           "kirkctl",
		Short:         "Kirk Client storefront administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("KIRK_CONFIG"), "Path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level")

	root.AddCommand(newWipeCmd(opts))
	root.AddCommand(newUsersCmd(opts))
	return root
}

// connect loads configuration and opens the backends for one command run
func (o *rootOptions) connect(cmd *cobra.Command) (Services, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()

	services, err := o.open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	return services, logger, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
