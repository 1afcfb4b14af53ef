package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipline/internal/audit"
	"clipline/internal/config"
	"clipline/internal/stage"
	"clipline/internal/tasks"
	"clipline/internal/textutil"
)

type transitionFlags struct {
	recordingNotes string
	editorNotes    string
	uploaderNotes  string
	postURL        string
	postPlatform   string
	postAccount    string
	postedAt       string
}

func (f *transitionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.recordingNotes, "recording-notes", "", "Notes from the recording session")
	cmd.Flags().StringVar(&f.editorNotes, "editor-notes", "", "Notes from editing or review")
	cmd.Flags().StringVar(&f.uploaderNotes, "uploader-notes", "", "Notes from the posting attempt")
	cmd.Flags().StringVar(&f.postURL, "post-url", "", "Published URL")
	cmd.Flags().StringVar(&f.postPlatform, "post-platform", "", "Platform the video was posted to")
	cmd.Flags().StringVar(&f.postAccount, "post-account", "", "Account the video was posted from")
	cmd.Flags().StringVar(&f.postedAt, "posted-at", "", "Local posting timestamp")
}

func (f *transitionFlags) fields() stage.Fields {
	return stage.Fields{
		RecordingNotes: f.recordingNotes,
		EditorNotes:    f.editorNotes,
		UploaderNotes:  f.uploaderNotes,
		Posting: tasks.PostingInfo{
			URL:           f.postURL,
			Platform:      f.postPlatform,
			Account:       f.postAccount,
			PostedAtLocal: f.postedAt,
		},
	}
}

func newTransitionCommand(ctx *commandContext) *cobra.Command {
	var flags transitionFlags

	cmd := &cobra.Command{
		Use:   "transition <task-id> <target-stage>",
		Short: "Move a task to its next stage",
		Long: `Move a task to a new stage. The normal path is
not_recorded -> recorded -> edited -> ready_to_post -> posted; any
non-terminal task can also be moved to rejected when a note explains why.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := ctx.role()
			if err != nil {
				return err
			}
			target, ok := tasks.ParseStage(args[1])
			if !ok {
				return fmt.Errorf("unknown stage: %s", args[1])
			}
			return ctx.withStore(func(cfg *config.Config, store *tasks.Store) error {
				machine := ctx.machine(store)
				task, err := machine.Transition(cmd.Context(), args[0], ctx.actor(), role, target, flags.fields(), audit.NewCorrelationID())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", shortID(task.ID), textutil.StageLabel(task.Stage))
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}
