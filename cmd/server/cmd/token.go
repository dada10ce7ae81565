package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/tsukuyomi/internal/auth"
)

func newTokenCommand() *cobra.Command {
	var (
		subject string
		name    string
		role    string
		expiry  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the configured secret",
		Long: `Issue a bearer token for local testing. The token is signed with the key
derived from JWT_SECRET, so it is accepted by a server sharing the configuration.

Example:
  curl -H "Authorization: Bearer $(tsukuyomi token --subject alice --role editor)" \
    http://localhost:8080/user/info`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if expiry <= 0 {
				expiry = cfg.Auth.JWTExpiry
			}
			keys, err := auth.DeriveKeys([]byte(cfg.Auth.JWTSecret))
			if err != nil {
				return err
			}
			token, err := auth.NewJWTManager(keys.JWT, expiry, cfg.Auth.JWTIssuer).
				Generate(subject, name, auth.NormalizeRole(role))
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dev", "token subject (user id)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleEditor), "role (admin, editor, viewer)")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default: JWT_EXPIRY_HOURS)")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password for BASIC_AUTH_USERS",
		Long: `Print the bcrypt hash of a password. Without an argument the password is
read from the first line of standard input.

Example:
  BASIC_AUTH_USERS="alice:$(tsukuyomi hash-password s3cret)" tsukuyomi serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
