package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gocatalog/internal/bootstrap"
)

func newHTTPDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Start the admin HTTP server",
		Long: `Starts the admin HTTP server exposing health checks, Prometheus
metrics, and read-only views over sources and the manual-review queue.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			app, err := bootstrap.New(cfgFile, version)
			if err != nil {
				return err
			}
			defer app.Close()

			return bootstrap.RunHTTPServer(app)
		},
	}
}
