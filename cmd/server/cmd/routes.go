package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the registered routes",
		Long:  `Build the application from the current configuration and print its route table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			// the route table does not depend on the post store
			cfg.Database.URL = ""
			application, err := buildApplication(cmd.Context(), cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer application.close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHODS\tPATTERN\tSCOPE")
			for _, rt := range application.app.Routes() {
				methods := "*"
				if len(rt.Methods) > 0 {
					methods = strings.Join(rt.Methods, ",")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", methods, rt.Pattern, rt.Scope)
			}
			return w.Flush()
		},
	}
}
