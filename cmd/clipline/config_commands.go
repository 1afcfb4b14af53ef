package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipline/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to adjust lease TTLs and stage deadlines for your team.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data dir:            %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log dir:             %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Database:            %s\n", cfg.DatabasePath())
			fmt.Fprintf(out, "API bind:            %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "API token set:       %s\n", yesNo(cfg.Paths.APIToken != ""))
			fmt.Fprintf(out, "Lease TTL:           %s\n", cfg.DefaultTTL())
			fmt.Fprintf(out, "Stale margin:        %s\n", cfg.StaleReleaseMargin())
			fmt.Fprintf(out, "Stage deadlines:     %dh / %dh / %dh / %dh\n",
				cfg.SLA.NotRecordedHours, cfg.SLA.RecordedHours, cfg.SLA.EditedHours, cfg.SLA.ReadyToPostHours)
			fmt.Fprintf(out, "Ntfy topic:          %s\n", valueOrDash(cfg.Notifications.NtfyTopic))
			fmt.Fprintf(out, "Log format / level:  %s / %s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}
