package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eduops/internal/config"
	"eduops/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		yamlOutput bool
		logLevel   string
		token      string
	)

	cmd := &cobra.Command{
		Use:           "eduops",
		Short:         "Eduops keeps program files, uploads and timelines for education teams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warnings, err := setupLogging(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				fmt.Fprintln(os.Stderr, warning)
			}
			if jsonOutput && yamlOutput {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			if yamlOutput {
				jsonOutput = true
			}
			outputFormatter = format.ForFlags(yamlOutput)
			apiToken = token
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (default: $EDUOPS_API_TOKEN)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newProgramCmd(cfg, &jsonOutput),
		newActivityCmd(cfg, &jsonOutput),
		newDocCmd(cfg, &jsonOutput),
		newScheduleCmd(cfg, &jsonOutput),
		newAttachCmd(cfg, &jsonOutput),
		newTimelineCmd(cfg, &jsonOutput),
		newUpcomingCmd(cfg, &jsonOutput),
		newAdminCmd(cfg, &jsonOutput),
		newTokenCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}
