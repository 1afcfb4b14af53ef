package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipline/internal/admin"
	"clipline/internal/config"
	"clipline/internal/tasks"
	"clipline/internal/textutil"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative overrides (always audited, reason required)",
	}

	adminCmd.AddCommand(newAdminForceStatusCommand(ctx))
	adminCmd.AddCommand(newAdminClearClaimCommand(ctx))
	adminCmd.AddCommand(newAdminResetCommand(ctx))

	return adminCmd
}

func newAdminForceStatusCommand(ctx *commandContext) *cobra.Command {
	var reason string
	var flags transitionFlags

	cmd := &cobra.Command{
		Use:   "force-status <task-id> <target-stage>",
		Short: "Force a task to a stage, bypassing stage ordering",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, ok := tasks.ParseStage(args[1])
			if !ok {
				return fmt.Errorf("unknown stage: %s", args[1])
			}
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				svc := ctx.adminService(store)
				task, err := svc.ForceStatus(cmd.Context(), args[0], ctx.actor(), reason, target, flags.fields())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s forced to %s\n", shortID(task.ID), textutil.StageLabel(task.Stage))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the override is needed (required)")
	flags.register(cmd)
	return cmd
}

func newAdminClearClaimCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "clear-claim <task-id>",
		Short: "Clear a task's claim regardless of holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				svc := ctx.adminService(store)
				if err := svc.ClearClaim(cmd.Context(), args[0], ctx.actor(), reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Claim cleared on %s\n", shortID(args[0]))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the override is needed (required)")
	return cmd
}

func newAdminResetCommand(ctx *commandContext) *cobra.Command {
	var reason string
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "reset-assignments <task-id>",
		Short: "Reset a task's assignment by expiring or unassigning its claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := admin.ParseResetMode(modeFlag)
			if !ok {
				return fmt.Errorf("unknown reset mode %q; expected expire or unassign", modeFlag)
			}
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				svc := ctx.adminService(store)
				if err := svc.ResetAssignments(cmd.Context(), args[0], ctx.actor(), mode, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assignments reset on %s (%s)\n", shortID(args[0]), modeFlag)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the override is needed (required)")
	cmd.Flags().StringVar(&modeFlag, "mode", "expire", "Reset mode: expire or unassign")
	return cmd
}
