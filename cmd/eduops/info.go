package main

import (
	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
	"eduops/internal/models"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database, blob store and attachment counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("blob_backend: %s\n", resp.BlobBackend)
				_ = writePlain("auth_required: %t\n", resp.AuthRequired)
				_ = writePlain("programs: %d\n", resp.Programs)
				_ = writePlain("timeline_events: %d\n", resp.TimelineEvents)
				_ = writePlain("attachments:\n")
				for _, kind := range models.AttachmentKinds {
					_ = writePlain("  %s: %d\n", kind, resp.Attachments[string(kind)])
				}
				_ = writePlain("  archived: %d\n", resp.Archived)
				return nil
			})
		},
	}
	return cmd
}
