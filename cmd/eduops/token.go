package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"eduops/internal/auth"
	"eduops/internal/config"
)

func newTokenCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with API bearer tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(cfg, jsonOutput))
	return cmd
}

func newTokenIssueCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue <principal>",
		Short: "Mint a signed token with the configured auth.jwt_secret",
		Args:  requireExactlyArgs(1, "principal is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, err := auth.NormalizePrincipal(args[0])
			if err != nil {
				return err
			}
			parsedRole, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				if ttl, err = cfg.TokenTTL(); err != nil {
					return err
				}
			}
			issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return fmt.Errorf("%w (set auth.jwt_secret or EDUOPS_JWT_SECRET)", err)
			}
			token, expiresAt, err := issuer.Issue(principal, parsedRole)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(map[string]any{
					"principal":  principal,
					"role":       parsedRole,
					"token":      token,
					"expires_at": expiresAt,
				})
			}
			return writePlain("%s\n", token)
		},
	}
	cmd.Flags().StringVar(&role, "role", string(auth.RoleUser), "role: guest, user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	return cmd
}
