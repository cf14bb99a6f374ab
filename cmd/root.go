package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/config"
	"github.com/JakeFAU/pharma-price-crawler/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the app in the context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand needs. It is built once in
// PersistentPreRunE and handed to subcommands through the command context.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pharmacrawl",
		Short: "Pharmacy catalog crawler and price aggregator.",
		Long: `pharmacrawl builds a canonical medicine catalog from pharmacy web
catalogs and attaches per-pharmacy prices to it. The collect stage walks a
source's category tree into per-category manifest files; the ingest and
attach stages replay those manifests through extraction and reconciliation
into Postgres; serve exposes the assembled catalog over HTTP.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, &app{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and PHARMACRAWL_* env vars apply without one)")

	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newAttachCmd())
	cmd.AddCommand(newRetryCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context so in-flight pipeline stages drain instead of dying mid-write.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
