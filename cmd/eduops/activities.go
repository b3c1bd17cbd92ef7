package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
	"eduops/internal/models"
)

func newActivityCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "activity", Short: "Manage program activities"}
	cmd.AddCommand(
		newActivityCreateCmd(cfg, jsonOutput),
		newActivityListCmd(cfg, jsonOutput),
		newActivityUpdateCmd(cfg, jsonOutput),
		newArchiveCmd(cfg, "activity", func(c *api.Client, cmd *cobra.Command, id string) error {
			return c.ArchiveActivity(cmd.Context(), id)
		}),
	)
	return cmd
}

func newActivityCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var req api.ActivityCreateRequest
	cmd := &cobra.Command{
		Use:   "create <program-id> <title>",
		Short: "Create an activity in a program",
		Args:  requireExactlyArgs(2, "program id and title are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = args[1]
			return withClient(cfg, func(client *api.Client) error {
				activity, err := client.CreateActivity(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				return writeActivity(activity, *jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&req.Status, "status", "", "status")
	cmd.Flags().StringVar(&req.Owner, "owner", "", "owner")
	return cmd
}

func newActivityListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list <program-id>",
		Short: "List live activities of a program",
		Args:  requireExactlyArgs(1, "program id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				activities, err := client.ListActivities(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(activities)
				}
				for _, activity := range activities {
					line := fmt.Sprintf("%s %s", activity.ID, activity.Title)
					if activity.Status != "" {
						line += " [" + activity.Status + "]"
					}
					if err := writePlain("%s\n", line); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newActivityUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var title, status, owner string
	cmd := &cobra.Command{
		Use:   "update <activity-id>",
		Short: "Update an activity",
		Args:  requireExactlyArgs(1, "activity id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ActivityUpdateRequest{
				Title:  changedString(cmd, "title", title),
				Status: changedString(cmd, "status", status),
				Owner:  changedString(cmd, "owner", owner),
			}
			if req.Title == nil && req.Status == nil && req.Owner == nil {
				return fmt.Errorf("nothing to update")
			}
			return withClient(cfg, func(client *api.Client) error {
				activity, err := client.UpdateActivity(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				return writeActivity(activity, *jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&owner, "owner", "", "owner")
	return cmd
}

func writeActivity(activity models.Activity, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(activity)
	}
	lines := []string{
		fmt.Sprintf("id: %s", activity.ID),
		fmt.Sprintf("program_id: %s", activity.ProgramID),
		fmt.Sprintf("title: %s", activity.Title),
	}
	if activity.Status != "" {
		lines = append(lines, fmt.Sprintf("status: %s", activity.Status))
	}
	if activity.Owner != "" {
		lines = append(lines, fmt.Sprintf("owner: %s", activity.Owner))
	}
	return writeLines(lines)
}
