package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicdesk/civicdesk/pkg/config"
	"github.com/civicdesk/civicdesk/pkg/tokens"
)

// newIntakeTokenCmd mints the service token webhook gateways present in
// the X-Intake-Token header.
func newIntakeTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		source string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "intake-token",
		Short: "Print a signed intake token for a webhook provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(cfg.IntakeJWTSecret) == 0 {
				return errors.New("INTAKE_JWT_SECRET is not set")
			}
			tok, err := tokens.SignIntakeToken(cfg.IntakeJWTSecret, cfg.IntakeJWTIssuer, source, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&source, "source", "twilio", "provider name stored in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 365*24*time.Hour, "token lifetime")
	return cmd
}
