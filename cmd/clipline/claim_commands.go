package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipline/internal/audit"
	"clipline/internal/config"
	"clipline/internal/tasks"
)

func newClaimCommand(ctx *commandContext) *cobra.Command {
	var ttlMinutes int

	cmd := &cobra.Command{
		Use:   "claim <task-id>",
		Short: "Claim a task for exclusive work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := ctx.role()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				manager := ctx.leaseManager(cfg, store)
				ttl := time.Duration(ttlMinutes) * time.Minute
				task, err := manager.Claim(cmd.Context(), args[0], ctx.actor(), role, ttl, audit.NewCorrelationID())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s until %s\n", shortID(task.ID), formatStamp(task.Claim.ExpiresAt))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&ttlMinutes, "ttl", 0, "Lease duration in minutes (defaults to configured TTL)")
	return cmd
}

func newReleaseCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "release <task-id>",
		Short: "Release a claimed task back to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				manager := ctx.leaseManager(cfg, store)
				if err := manager.Release(cmd.Context(), args[0], ctx.actor(), force, audit.NewCorrelationID()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", shortID(args[0]))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Release even when held by another collaborator")
	return cmd
}
