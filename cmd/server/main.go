// Command exchange-desk runs the conversational exchange desk behind a
// messaging bridge, plus a few maintenance subcommands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wakala/exchangedesk/internal/config"
	"github.com/wakala/exchangedesk/internal/repository"
)

var Version = "dev"

func main() {
	// Running without a subcommand serves.
	rootCmd := &cobra.Command{
		Use:           "exchange-desk",
		Short:         "Conversational USD to DASH exchange desk",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(settingsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openStore loads the configuration, opens the database and seeds it.
func openStore(ctx context.Context) (*config.Config, *repository.Store, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("initializing database", "path", cfg.DBPath)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init db: %w", err)
	}
	store := repository.NewStore(db)
	if err := store.Seed(ctx, cfg.AdminIDs); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("seed: %w", err)
	}
	return cfg, store, logger, nil
}
