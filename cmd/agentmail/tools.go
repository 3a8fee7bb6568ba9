package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/agentmail-skill/internal/tools"
	"github.com/nhle/agentmail-skill/internal/ui/report"
)

func newToolsCmd(a *app) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := tools.NewRegistry(nil, tools.WithLogger(a.logger)).Definitions()
			out := cmd.OutOrStdout()

			if pretty {
				_, err := fmt.Fprintln(out, report.Tools(defs, a.cfg.Backend))
				return err
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(defs)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Render a styled list instead of JSON")
	return cmd
}
