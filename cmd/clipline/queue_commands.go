package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipline/internal/config"
	"clipline/internal/resolver"
	"clipline/internal/tasks"
	"clipline/internal/textutil"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the production queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueAttachCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var payloadRef string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a new task to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := textutil.CleanTitle(strings.Join(args, " "))
			if title == "" {
				return fmt.Errorf("title must not be empty")
			}
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				task, err := store.Create(cmd.Context(), title, ctx.actor())
				if err != nil {
					return err
				}
				if payloadRef != "" {
					if task, err = store.AttachPayload(cmd.Context(), task.ID, payloadRef, ctx.actor()); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added task %s (%s)\n", shortID(task.ID), task.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payloadRef, "payload", "", "Attach a payload reference on creation")
	return cmd
}

func newQueueAttachCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <task-id> <payload-ref>",
		Short: "Attach the locked payload reference to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				task, err := store.AttachPayload(cmd.Context(), args[0], args[1], ctx.actor())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Payload attached to %s\n", shortID(task.ID))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var stageFlags []string
	var claimFlag string
	var mineFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue tasks ordered by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				filter := tasks.Filter{}
				for _, raw := range stageFlags {
					st, ok := tasks.ParseStage(raw)
					if !ok {
						return fmt.Errorf("unknown stage: %s", raw)
					}
					filter.Stages = append(filter.Stages, st)
				}
				if claimFlag != "" {
					state, ok := tasks.ParseClaimState(claimFlag)
					if !ok {
						return fmt.Errorf("unknown claim state: %s", claimFlag)
					}
					filter.ClaimState = state
				}
				if mineFlag {
					filter.Holder = ctx.actor()
				}

				list, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				counts, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				calc := ctx.calculator(cfg)
				now := time.Now().UTC()
				colorize := shouldColorize(cmd.OutOrStdout())

				type row struct {
					task     *tasks.Task
					priority float64
					cells    []string
				}
				rows := make([]row, 0, len(list))
				for _, task := range list {
					assessment := calc.AssessWithBacklog(task.Stage, task.LastStatusChangedAt, now, backlogForStage(task.Stage, counts))
					action := resolver.Resolve(task, ctx.actor(), now)
					rows = append(rows, row{
						task:     task,
						priority: assessment.PriorityScore,
						cells: []string{
							shortID(task.ID),
							task.Title,
							textutil.StageLabel(task.Stage),
							colorizeStatus(assessment.Status, colorize),
							formatAge(assessment.AgeInStage),
							fmt.Sprintf("%.1f", assessment.PriorityScore),
							formatClaim(task, now),
							string(action.Key),
						},
					})
				}
				sort.SliceStable(rows, func(i, j int) bool {
					return rows[i].priority > rows[j].priority
				})

				cells := make([][]string, len(rows))
				for i, r := range rows {
					cells[i] = r.cells
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderColumns(queueListColumns, cells))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&stageFlags, "stage", nil, "Filter by stage (repeatable)")
	cmd.Flags().StringVar(&claimFlag, "claim", "", "Filter by claim state: claimed or unclaimed")
	cmd.Flags().BoolVar(&mineFlag, "mine", false, "Only tasks claimed by the current actor")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show full task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				task, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				counts, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				calc := ctx.calculator(cfg)
				now := time.Now().UTC()
				assessment := calc.AssessWithBacklog(task.Stage, task.LastStatusChangedAt, now, backlogForStage(task.Stage, counts))
				action := resolver.Resolve(task, ctx.actor(), now)
				colorize := shouldColorize(cmd.OutOrStdout())

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Task:      %s\n", task.ID)
				fmt.Fprintf(out, "Title:     %s\n", task.Title)
				fmt.Fprintf(out, "Stage:     %s\n", textutil.StageLabel(task.Stage))
				fmt.Fprintf(out, "Payload:   %s (locked: %s)\n", valueOrDash(task.PayloadRef), yesNo(task.HasLockedPayload))
				fmt.Fprintf(out, "Claim:     %s\n", formatClaim(task, now))
				fmt.Fprintf(out, "Deadline:  %s", colorizeStatus(assessment.Status, colorize))
				if !assessment.Deadline.IsZero() {
					fmt.Fprintf(out, " (due %s)", formatStamp(assessment.Deadline))
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Age:       %s in stage, priority %.1f\n", formatAge(assessment.AgeInStage), assessment.PriorityScore)
				fmt.Fprintf(out, "Next:      %s", action.Key)
				if !action.Enabled && action.Reason != "" {
					fmt.Fprintf(out, " (blocked: %s)", action.Reason)
				}
				fmt.Fprintln(out)

				fmt.Fprintf(out, "Created:   %s\n", formatStamp(task.CreatedAt))
				fmt.Fprintf(out, "Recorded:  %s\n", formatOptionalStamp(task.RecordedAt))
				fmt.Fprintf(out, "Edited:    %s\n", formatOptionalStamp(task.EditedAt))
				fmt.Fprintf(out, "Approved:  %s\n", formatOptionalStamp(task.ReadyToPostAt))
				fmt.Fprintf(out, "Posted:    %s\n", formatOptionalStamp(task.PostedAt))
				if task.RejectedAt != nil {
					fmt.Fprintf(out, "Rejected:  %s\n", formatStamp(*task.RejectedAt))
				}

				if task.Notes.Any() {
					fmt.Fprintln(out, "Notes:")
					printNote(out, "recording", task.Notes.Recording)
					printNote(out, "editor", task.Notes.Editor)
					printNote(out, "uploader", task.Notes.Uploader)
				}
				if task.Posting != (tasks.PostingInfo{}) {
					fmt.Fprintln(out, "Posting:")
					printNote(out, "url", task.Posting.URL)
					printNote(out, "platform", task.Posting.Platform)
					printNote(out, "account", task.Posting.Account)
					printNote(out, "posted at", task.Posting.PostedAtLocal)
					printNote(out, "error", task.Posting.PostingError)
				}
				return nil
			})
		},
	}
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue composition by stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				counts, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if counts.Total() == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(counts)+1)
				for _, st := range tasks.AllStages() {
					if counts[st] == 0 {
						continue
					}
					rows = append(rows, []string{textutil.StageLabel(st), fmt.Sprintf("%d", counts[st])})
				}
				rows = append(rows, []string{"Total", fmt.Sprintf("%d", counts.Total())})
				fmt.Fprintln(cmd.OutOrStdout(), renderColumns(queueStatsColumns, rows))
				return nil
			})
		},
	}
}

func backlogForStage(stage tasks.Stage, counts tasks.StageCounts) int {
	switch stage {
	case tasks.StageNotRecorded:
		return counts[tasks.StageNotRecorded]
	case tasks.StageRecorded, tasks.StageEdited:
		return counts[tasks.StageRecorded] + counts[tasks.StageEdited]
	case tasks.StageReadyToPost:
		return counts[tasks.StageReadyToPost]
	default:
		return 0
	}
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func printNote(out io.Writer, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(out, "  %-10s %s\n", label+":", value)
}
