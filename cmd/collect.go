package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gocatalog/internal/bootstrap"
)

func newCollectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle over all enabled sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New(cfgFile, version)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Runner.RunCycle(cmd.Context())
			if err != nil {
				return fmt.Errorf("collection cycle: %w", err)
			}

			cmd.Printf("sources: %d (failed: %d)\n", stats.Sources, stats.FailedSources)
			cmd.Printf("pages: %d (deduplicated: %d, failed: %d)\n",
				stats.Pages, stats.Deduplicated, stats.FailedPages)
			cmd.Printf("artifacts: %d (invalid: %d)\n", stats.Artifacts, stats.Invalid)
			cmd.Printf("created: %d, updated: %d, skipped: %d, reviewed: %d\n",
				stats.Created, stats.Updated, stats.Skipped, stats.Reviewed)
			cmd.Printf("elapsed: %s\n", stats.Elapsed)
			return nil
		},
	}
}
