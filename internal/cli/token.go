package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/guardrail/internal/auth"
)

func newTokenCommand(opts *options) *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Bearer token management",
	}

	var (
		userID    string
		sessionID string
		ttl       time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Mint a bearer token signed with the service secret",
		Long: `Mint an HS256 bearer token for a user. The token carries no role; the
admin endpoint resolves roles from the role store on every request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			tok, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl).Issue(userID, sessionID)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.output == "table" {
				fmt.Fprintln(out, tok)
				return nil
			}
			return render(out, opts.output, map[string]interface{}{
				"token":      tok,
				"user_id":    userID,
				"expires_in": int(ttl.Seconds()),
			})
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user id the token is issued to")
	issue.Flags().StringVar(&sessionID, "session", "", "session id claim")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	_ = issue.MarkFlagRequired("user")

	token.AddCommand(issue)
	return token
}
