// Package cmd defines and implements the CLI commands for the pharmacrawl
// executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/pipeline"
)

// newCollectCmd creates the 'collect' subcommand. Collect walks one source's
// category tree and writes per-category manifest files; it never touches the
// database, so a collect run needs no Postgres.
func newCollectCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Crawl a source's category tree into manifest files",
		Long: `Discovers the source's leaf categories from its landing page, walks
each category's paginated product listing, and writes one manifest file per
category. Manifests are the handoff artifact consumed by ingest and attach.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			p, err := pipeline.New(a.cfg, source, nil, a.logger)
			if err != nil {
				return err
			}

			summary, err := p.Collect(cmd.Context())
			if err != nil {
				return fmt.Errorf("collect %s: %w", source, err)
			}

			a.logger.Info("Collect complete",
				zap.String("run_id", summary.RunID),
				zap.Int("categories", summary.Categories),
				zap.Int("pages", summary.Pages),
				zap.Int("product_urls", summary.Products),
				zap.Int("failed", summary.Failed),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "configured source to crawl")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
