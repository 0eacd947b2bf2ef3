package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mathfly-quiz-service/internal/auth"
	"mathfly-quiz-service/internal/config"
	"mathfly-quiz-service/internal/domain"
)

// NewTokenCmd signs a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			rt := &runtime{cfg: cfg}
			secret, err := rt.jwtSecret()
			if err != nil {
				return err
			}
			token, err := auth.NewVerifier(secret).Issue(domain.Identity{UserID: userID, Name: name}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
