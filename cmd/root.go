// Package cmd implements the command-line interface for the catalog
// collector.
package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "gocatalog",
		Short: "Product catalog collector",
		Long: `Collects product catalogs from configured storefront sources,
validates them against the canonical artifact schema, and persists
them idempotently.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yml or ./config/config.yml)",
	)

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newCollectCommand())
	rootCmd.AddCommand(newSchedulerCommand())
	rootCmd.AddCommand(newHTTPDCommand())
	rootCmd.AddCommand(newSourcesCommand())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("gocatalog version %s\n", version)
		},
	}
}
