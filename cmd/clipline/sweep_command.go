package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipline/internal/config"
	"clipline/internal/logging"
	"clipline/internal/tasks"
	"clipline/internal/workflow"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the maintenance sweeps once and report",
		Long: `Run the recurring daemon maintenance passes once: reclaim expired
claims, force-clear stale claims past the safety margin, and scan for
tasks past their stage deadline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				manager := ctx.leaseManager(cfg, store)

				reclaimed, err := manager.ReclaimExpired(cmd.Context())
				if err != nil {
					return fmt.Errorf("reclaim expired claims: %w", err)
				}
				cleared, err := manager.ReleaseStale(cmd.Context(), cfg.StaleReleaseMargin())
				if err != nil {
					return fmt.Errorf("release stale claims: %w", err)
				}

				wf := workflow.NewManager(cfg, store, logging.NewNop())
				report, err := wf.OverdueReport(cmd.Context())
				if err != nil {
					return fmt.Errorf("overdue scan: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Reclaimed %d expired claim(s)\n", reclaimed)
				fmt.Fprintf(out, "Force-cleared %d stale claim(s)\n", cleared)
				fmt.Fprintf(out, "Scanned %d task(s): %d overdue, %d due soon\n", report.Scanned, report.Overdue, report.DueSoon)
				if report.WorstTitle != "" {
					fmt.Fprintf(out, "Worst: %s (%s in stage)\n", report.WorstTitle, formatAge(report.WorstAge))
				}
				return nil
			})
		},
	}
}
