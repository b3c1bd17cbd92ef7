package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
	"eduops/internal/models"
)

func newProgramCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "program", Short: "Manage programs"}
	cmd.AddCommand(
		newProgramCreateCmd(cfg, jsonOutput),
		newProgramListCmd(cfg, jsonOutput),
		newProgramShowCmd(cfg, jsonOutput),
		newProgramUpdateCmd(cfg, jsonOutput),
		newArchiveCmd(cfg, "program", func(c *api.Client, cmd *cobra.Command, id string) error {
			return c.ArchiveProgram(cmd.Context(), id)
		}),
	)
	return cmd
}

func newProgramCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var req api.ProgramCreateRequest
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a program",
		Args:  requireExactlyArgs(1, "program name is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return withClient(cfg, func(client *api.Client) error {
				program, err := client.CreateProgram(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeProgram(program, *jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	cmd.Flags().StringVar(&req.Owner, "owner", "", "owner")
	return cmd
}

func newProgramListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				programs, err := client.ListPrograms(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(programs)
				}
				for _, program := range programs {
					if err := writePlain("%s %s\n", program.ID, program.Name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newProgramShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <program-id>",
		Short: "Show one program",
		Args:  requireExactlyArgs(1, "program id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				program, err := client.GetProgram(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeProgram(program, *jsonOutput)
			})
		},
	}
}

func newProgramUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var name, description, owner string
	cmd := &cobra.Command{
		Use:   "update <program-id>",
		Short: "Update program details",
		Args:  requireExactlyArgs(1, "program id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ProgramUpdateRequest{
				Name:        changedString(cmd, "name", name),
				Description: changedString(cmd, "description", description),
				Owner:       changedString(cmd, "owner", owner),
			}
			if req.Name == nil && req.Description == nil && req.Owner == nil {
				return fmt.Errorf("nothing to update")
			}
			return withClient(cfg, func(client *api.Client) error {
				program, err := client.UpdateProgram(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				return writeProgram(program, *jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&owner, "owner", "", "owner")
	return cmd
}

// newArchiveCmd builds the shared "rm <id>" subcommand for catalog items.
func newArchiveCmd(cfg *config.Config, noun string, archive func(*api.Client, *cobra.Command, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <" + noun + "-id>",
		Short: "Archive a " + noun,
		Args:  requireExactlyArgs(1, noun+" id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if err := archive(client, cmd, args[0]); err != nil {
					return err
				}
				return writePlain("archived %s\n", args[0])
			})
		},
	}
}

func changedString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}

func writeProgram(program models.Program, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(program)
	}
	lines := []string{
		fmt.Sprintf("id: %s", program.ID),
		fmt.Sprintf("name: %s", program.Name),
	}
	if program.Description != "" {
		lines = append(lines, fmt.Sprintf("description: %s", program.Description))
	}
	if program.Owner != "" {
		lines = append(lines, fmt.Sprintf("owner: %s", program.Owner))
	}
	lines = append(lines,
		fmt.Sprintf("created_at: %s", formatTime(program.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(program.UpdatedAt)),
	)
	return writeLines(lines)
}
