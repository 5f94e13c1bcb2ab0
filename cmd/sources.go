package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/gocatalog/internal/bootstrap"
)

func newSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured catalog sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.New(cfgFile, version)
			if err != nil {
				return err
			}
			defer app.Close()

			sources, err := app.Sources.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sources: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPLATFORM\tBASE URL\tENABLED\tALLOWED")
			for _, s := range sources {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n",
					s.ID, s.Name, s.Platform, s.BaseURL, s.Enabled, s.Allowed)
			}
			return w.Flush()
		},
	}
}
