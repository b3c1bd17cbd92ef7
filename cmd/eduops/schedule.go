package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
)

func newScheduleCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "schedule", Short: "Manage program schedule events"}
	cmd.AddCommand(
		newScheduleAddCmd(cfg, jsonOutput),
		newArchiveCmd(cfg, "event", func(c *api.Client, cmd *cobra.Command, id string) error {
			return c.ArchiveScheduleEvent(cmd.Context(), id)
		}),
	)
	return cmd
}

func newScheduleAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		startsAt string
		duration time.Duration
		req      api.ScheduleEventCreateRequest
	)
	cmd := &cobra.Command{
		Use:   "add <program-id> <title>",
		Short: "Schedule an event for a program",
		Args:  requireExactlyArgs(2, "program id and title are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseEventTime(startsAt)
			if err != nil {
				return err
			}
			if duration < 0 {
				return fmt.Errorf("--duration must be >= 0")
			}
			req.Title = args[1]
			req.StartsAt = start
			req.EndsAt = start.Add(duration)
			return withClient(cfg, func(client *api.Client) error {
				event, err := client.CreateScheduleEvent(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(event)
				}
				return writePlain("%s\n", formatScheduleLine(event))
			})
		},
	}
	cmd.Flags().StringVar(&startsAt, "at", "", "start time (RFC3339 or YYYY-MM-DDTHH:MM, local time)")
	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "event length")
	cmd.Flags().StringVar(&req.Location, "location", "", "location")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	return cmd
}

func parseEventTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("--at is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --at %q", raw)
}
