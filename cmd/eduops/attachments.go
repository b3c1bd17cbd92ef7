package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"eduops/internal/api"
	"eduops/internal/config"
	"eduops/internal/models"
	"eduops/internal/upload"
)

type attachUploadOptions struct {
	id          string
	filename    string
	contentType string
	programID   string
	image       bool
	document    bool
	quiet       bool
}

func newAttachCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Upload and manage files on programs, activities and documentation",
		Long: "Attachment kinds are program, activity and documentation. " +
			"Files up to 2 MB go in one request; larger files up to 10 MB are sent in 1.5 MB chunks.",
	}
	cmd.AddCommand(
		newAttachUploadCmd(cfg, jsonOutput),
		newAttachListCmd(cfg, jsonOutput),
		newAttachShowCmd(cfg, jsonOutput),
		newAttachGetCmd(cfg),
		newAttachRemoveCmd(cfg, jsonOutput),
	)
	return cmd
}

func newAttachUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &attachUploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload <kind> <parent-id> <path>",
		Short: "Upload a file to a program, activity or documentation entry",
		Args:  requireExactlyArgs(3, "kind, parent id and path are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseAttachmentKind(args[0])
			if err != nil {
				return err
			}
			if kind == models.AttachmentKindDocumentation && strings.TrimSpace(opts.programID) == "" {
				return fmt.Errorf("--program is required for documentation uploads")
			}
			if opts.image && opts.document {
				return fmt.Errorf("--image and --document are mutually exclusive")
			}

			path := args[2]
			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()
			info, err := file.Stat()
			if err != nil {
				return err
			}

			contentType, err := resolveContentType(file, path, opts.contentType)
			if err != nil {
				return err
			}
			isImage := strings.HasPrefix(contentType, "image/")
			if opts.image || opts.document {
				isImage = opts.image
			}

			req := upload.Request{
				Target:      upload.Target{Kind: kind, ParentID: args[1], ProgramID: opts.programID},
				ID:          opts.id,
				Filename:    chooseFirst(opts.filename, filepath.Base(path)),
				ContentType: contentType,
				IsImage:     isImage,
				Size:        info.Size(),
				Body:        file,
			}
			return withClient(cfg, func(client *api.Client) error {
				coordinatorOpts := []upload.Option{}
				if !*jsonOutput && !opts.quiet {
					coordinatorOpts = append(coordinatorOpts, upload.WithProgress(progressPrinter(req.Filename)))
				}
				coordinator := upload.NewCoordinator(api.NewUploadTransport(client), cfg.UploadPolicy(), coordinatorOpts...)
				attachment, err := coordinator.Upload(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("upload %s: %w", req.Filename, err)
				}
				return writeAttachment(*attachment, *jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&opts.id, "id", "", "attachment id (default: generated)")
	cmd.Flags().StringVar(&opts.filename, "filename", "", "display filename (default: base name of path)")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "content type (default: detected)")
	cmd.Flags().StringVar(&opts.programID, "program", "", "owning program id (required for documentation)")
	cmd.Flags().BoolVar(&opts.image, "image", false, "validate and list as an image")
	cmd.Flags().BoolVar(&opts.document, "document", false, "validate and list as a document")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func newAttachListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var images, documents bool
	cmd := &cobra.Command{
		Use:   "list <kind> <parent-id>",
		Short: "List live attachments of a parent",
		Args:  requireExactlyArgs(2, "kind and parent id are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseAttachmentKind(args[0])
			if err != nil {
				return err
			}
			var filter *bool
			switch {
			case images && documents:
				return fmt.Errorf("--images and --documents are mutually exclusive")
			case images, documents:
				filter = &images
			}
			return withClient(cfg, func(client *api.Client) error {
				attachments, err := client.ListAttachments(cmd.Context(), kind, args[1], filter)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(attachments)
				}
				for _, attachment := range attachments {
					if err := writePlain("%s\n", formatAttachmentLine(attachment)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&images, "images", false, "only images")
	cmd.Flags().BoolVar(&documents, "documents", false, "only documents")
	return cmd
}

func newAttachShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <attachment-id>",
		Short: "Show one attachment",
		Args:  requireExactlyArgs(2, "kind and attachment id are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseAttachmentKind(args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				attachment, err := client.GetAttachment(cmd.Context(), kind, args[1])
				if err != nil {
					return err
				}
				return writeAttachment(attachment, *jsonOutput)
			})
		},
	}
}

func newAttachGetCmd(cfg *config.Config) *cobra.Command {
	var (
		outPath string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "get <kind> <attachment-id>",
		Short: "Download attachment content",
		Args:  requireExactlyArgs(2, "kind and attachment id are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseAttachmentKind(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(outPath) == "" {
				return fmt.Errorf("--output is required")
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("output file exists (use --force to overwrite)")
				}
			}

			return withClient(cfg, func(client *api.Client) error {
				n, err := downloadTo(cmd.Context(), client, kind, args[1], outPath)
				if err != nil {
					return err
				}
				return writePlain("%s (%d bytes)\n", outPath, n)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite output path if it exists")
	return cmd
}

// downloadTo fetches attachment content into a temp file next to outPath and
// renames it into place once complete.
func downloadTo(ctx context.Context, client *api.Client, kind models.AttachmentKind, id, outPath string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".part-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := client.DownloadAttachment(ctx, kind, id, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), outPath)
}

func newAttachRemoveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <kind> <attachment-id>",
		Short: "Archive an attachment; its bytes stay readable",
		Args:  requireExactlyArgs(2, "kind and attachment id are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseAttachmentKind(args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ArchiveAttachment(cmd.Context(), kind, args[1])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("archived %s\n", resp.ID)
			})
		},
	}
}

// resolveContentType returns explicit when set, else guesses from the file
// extension and then from the first 512 bytes. The file is rewound.
func resolveContentType(file *os.File, path, explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return upload.NormalizeContentType(explicit), nil
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return upload.NormalizeContentType(byExt), nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return upload.NormalizeContentType(http.DetectContentType(head[:n])), nil
}

func progressPrinter(name string) upload.ProgressFunc {
	return func(sent, total int64) {
		fmt.Fprintf(os.Stderr, "uploading %s: %d/%d bytes\n", name, sent, total)
	}
}

func chooseFirst(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
