package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eduops/internal/auth"
	"eduops/internal/blobstore"
	"eduops/internal/config"
	"eduops/internal/server"
	"eduops/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the eduops API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}
			opts, err := serverOptions(cfg)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			blobOpts := cfg.BlobOptions()
			bs, err := blobstore.New(cmd.Context(), blobOpts)
			if err != nil {
				return err
			}
			logger.Info("blob store ready", "backend", bs.Backend())
			if opts.Issuer == nil {
				logger.Warn("auth.jwt_secret is not set; every caller acts as the local admin")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(addr, st, bs, opts, logger).ListenAndServe(ctx)
		},
	}
}

func serverOptions(cfg *config.Config) (server.Options, error) {
	opts := server.Options{
		DBPath:      cfg.DBPath,
		Policy:      cfg.UploadPolicy(),
		GCBatchSize: cfg.Attachments.GCBatchSize,
	}

	window, err := cfg.UpcomingWindow()
	if err != nil {
		return opts, err
	}
	opts.UpcomingWindow = window

	minAge, err := cfg.GCMinAge()
	if err != nil {
		return opts, err
	}
	opts.GCMinAge = minAge

	if cfg.Auth.JWTSecret != "" {
		ttl, err := cfg.TokenTTL()
		if err != nil {
			return opts, err
		}
		issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, ttl)
		if err != nil {
			return opts, err
		}
		opts.Issuer = issuer
	}
	return opts, nil
}
