package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/ui/report"
)

func newAuditCmd(a *app) *cobra.Command {
	var (
		limit      int
		asJSON     bool
		pruneAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recorded tool calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}

			s, err := openAuditStore(a.cfg.Audit.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if pruneAfter > 0 {
				n, err := s.PruneInvocations(ctx, time.Now().Add(-pruneAfter))
				if err != nil {
					return err
				}
				a.logger.Info("pruned audit log", "removed", n, "older_than", pruneAfter)
			}

			stats, err := s.ToolStats(ctx)
			if err != nil {
				return err
			}
			recent, err := s.RecentInvocations(ctx, limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Stats  []model.ToolStats  `json:"stats"`
					Recent []model.Invocation `json:"recent"`
				}{Stats: stats, Recent: recent})
			}

			_, err = fmt.Fprintln(out, report.Audit(stats, recent))
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent calls to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a styled report")
	cmd.Flags().DurationVar(&pruneAfter, "prune", 0, "Delete records older than this age first (e.g. 720h)")
	return cmd
}
