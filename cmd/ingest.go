package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/pipeline"
	"github.com/JakeFAU/pharma-price-crawler/internal/reconcile"
	"github.com/JakeFAU/pharma-price-crawler/internal/store"
)

// newIngestCmd creates the 'ingest' subcommand: catalog-building ingestion
// of a source's manifests. Unknown products are created in the catalog.
func newIngestCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the canonical catalog from a source's manifests",
		Long: `Replays a source's manifest files through extraction and
reconciliation in the catalog-building role: light name normalization,
exact matching, and create-on-miss. Prices from the source are attached
to every matched or created entry.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, source, reconcile.RoleCatalogBuilder, false)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "configured source to ingest")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// newAttachCmd creates the 'attach' subcommand: price-attaching ingestion.
// Products that cannot be matched to an existing catalog entry are skipped,
// never created.
func newAttachCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach a source's prices to the existing catalog",
		Long: `Replays a source's manifest files through extraction and
reconciliation in the price-attaching role: aggressive name normalization
and trigram fuzzy matching against the existing catalog. Unmatched items
are counted and skipped; the catalog itself is never extended.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, source, reconcile.RoleAttachPrices, false)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "configured source to attach prices from")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// newRetryCmd creates the 'retry' subcommand, which replays the newest
// error log partition of a source through the chosen ingestion role.
func newRetryCmd() *cobra.Command {
	var (
		source string
		attach bool
	)

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Replay a source's most recent failed items",
		Long: `Reads the newest error log partition for the source and pushes each
recorded item through the ingest path again. Items that fail again are
re-recorded for the next retry.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			role := reconcile.RoleCatalogBuilder
			if attach {
				role = reconcile.RoleAttachPrices
			}
			return runIngest(cmd, source, role, true)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "configured source to retry")
	cmd.Flags().BoolVar(&attach, "attach", false, "replay in the price-attaching role")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func runIngest(cmd *cobra.Command, source string, role reconcile.Role, replay bool) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	st, err := openStore(cmd, a)
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := pipeline.New(a.cfg, source, st, a.logger)
	if err != nil {
		return err
	}

	var summary pipeline.IngestSummary
	if replay {
		summary, err = p.Replay(cmd.Context(), role)
	} else {
		summary, err = p.Ingest(cmd.Context(), role)
	}
	if err != nil {
		return fmt.Errorf("ingest %s: %w", source, err)
	}

	a.logger.Info("Ingest complete",
		zap.String("run_id", summary.RunID),
		zap.String("role", string(role)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("unmatched", summary.Unmatched),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

func openStore(cmd *cobra.Command, a *app) (*store.CatalogStore, error) {
	st, err := store.New(cmd.Context(), store.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return st, nil
}
