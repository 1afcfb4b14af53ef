package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipline/internal/config"
	"clipline/internal/tasks"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "timeline <task-id>",
		Short: "Show the audit history for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				// Verify the task exists so a typo'd id reads as not-found
				// instead of an empty history.
				if _, err := store.GetByID(cmd.Context(), args[0]); err != nil {
					return err
				}
				events, err := store.EventsForTask(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events recorded")
					return nil
				}
				rows := make([][]string, 0, len(events))
				for _, event := range events {
					change := "-"
					if event.FromStage != "" || event.ToStage != "" {
						change = fmt.Sprintf("%s -> %s", valueOrDash(event.FromStage), valueOrDash(event.ToStage))
					}
					actor := event.Actor
					if event.ActorRole != "" {
						actor = fmt.Sprintf("%s (%s)", event.Actor, event.ActorRole)
					}
					rows = append(rows, []string{
						formatStamp(event.CreatedAt),
						string(event.Type),
						change,
						valueOrDash(actor),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderColumns(timelineColumns, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events to show (0 for all)")
	return cmd
}
