package main

import (
	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
)

func newTimelineCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "timeline <program-id>",
		Short: "Show a program's activity history, oldest first",
		Args:  requireExactlyArgs(1, "program id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				events, err := client.Timeline(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(events)
				}
				for _, event := range events {
					if err := writePlain("%s\n", formatTimelineLine(event)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "only the most recent N events (default: server limit)")
	return cmd
}

func newUpcomingCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List scheduled events starting soon across all programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Upcoming(cmd.Context(), window)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writePlain("%s .. %s\n", formatTime(resp.From), formatTime(resp.To)); err != nil {
					return err
				}
				for _, event := range resp.Events {
					if err := writePlain("  %s\n", formatScheduleLine(event)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&window, "window", "", "look-ahead window, e.g. 7d or 36h (default: server setting)")
	return cmd
}
