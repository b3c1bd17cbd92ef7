package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
)

func newDocCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "doc", Short: "Manage activity documentation entries"}
	cmd.AddCommand(
		newDocAddCmd(cfg, jsonOutput),
		newDocListCmd(cfg, jsonOutput),
		newArchiveCmd(cfg, "documentation", func(c *api.Client, cmd *cobra.Command, id string) error {
			return c.ArchiveDocumentation(cmd.Context(), id)
		}),
	)
	return cmd
}

func newDocAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "add <activity-id> <content>",
		Short: "Add a documentation entry to an activity",
		Args:  requireExactlyArgs(2, "activity id and content are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.DocumentationCreateRequest{Content: args[1], Author: author}
			return withClient(cfg, func(client *api.Client) error {
				entry, err := client.CreateDocumentation(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(entry)
				}
				return writeLines([]string{
					fmt.Sprintf("id: %s", entry.ID),
					fmt.Sprintf("activity_id: %s", entry.ActivityID),
					fmt.Sprintf("program_id: %s", entry.ProgramID),
					fmt.Sprintf("author: %s", entry.Author),
				})
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "author (default: caller)")
	return cmd
}

func newDocListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list <activity-id>",
		Short: "List live documentation entries of an activity",
		Args:  requireExactlyArgs(1, "activity id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				entries, err := client.ListDocumentation(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(entries)
				}
				for _, entry := range entries {
					if err := writePlain("%s %s %s\n", entry.ID, formatTime(entry.CreatedAt), firstLine(entry.Content)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func firstLine(value string) string {
	for i, r := range value {
		if r == '\n' {
			return value[:i]
		}
	}
	return value
}
