package main

import (
	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminGCBlobsCmd(cfg, jsonOutput))
	return cmd
}

func newAdminGCBlobsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		apply     bool
		batchSize int
		minAge    string
	)

	cmd := &cobra.Command{
		Use:   "gc-blobs",
		Short: "Delete stored bytes no attachment references (interrupted uploads)",
		Long: "Without --apply only reports what would be reclaimed. " +
			"Archived attachments keep their bytes and are never collected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				req := api.BlobGCRequest{DryRun: !apply, BatchSize: batchSize, MinAge: minAge}
				resp, err := client.GCBlobs(cmd.Context(), req, apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				mode := "dry run"
				if !resp.DryRun {
					mode = "applied"
				}
				return writePlain("%s: candidates=%d deleted=%d failed=%d reclaimed_bytes=%d\n", mode, resp.CandidateCount, resp.DeletedCount, resp.FailedCount, resp.ReclaimedBytes)
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete unreferenced blobs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "apply-mode batch size (default: attachments.gc_batch_size)")
	cmd.Flags().StringVar(&minAge, "min-age", "", "skip blobs modified more recently than this, e.g. 1h (default: attachments.gc_min_age)")
	return cmd
}
