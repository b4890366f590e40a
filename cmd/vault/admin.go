package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/journeyvault/internal/config"
	"github.com/and161185/journeyvault/internal/migrate"
	"github.com/and161185/journeyvault/internal/service"
	"github.com/and161185/journeyvault/internal/session"
)

var errNoAccounts = errors.New("user management needs the postgres backend with jwt_secret set")

var noBackend = map[string]string{"backend": "none"}

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "migrate",
		Short:       "Manage the postgres schema",
		Annotations: noBackend,
	}
	dsn := func() (string, error) {
		if c.cfg.Postgres.DSN == "" {
			return "", fmt.Errorf("%w: postgres.dsn is not configured", errUsage)
		}
		return c.cfg.Postgres.DSN, nil
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:         "up",
			Short:       "Apply pending migrations",
			Args:        cobra.NoArgs,
			Annotations: noBackend,
			RunE: func(cmd *cobra.Command, _ []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				return migrate.Up(cmd.Context(), d, c.log)
			},
		},
		&cobra.Command{
			Use:         "down",
			Short:       "Roll back the latest migration",
			Args:        cobra.NoArgs,
			Annotations: noBackend,
			RunE: func(cmd *cobra.Command, _ []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				return migrate.Down(cmd.Context(), d, c.log)
			},
		},
		&cobra.Command{
			Use:         "version",
			Short:       "Print the applied schema version",
			Args:        cobra.NoArgs,
			Annotations: noBackend,
			RunE: func(cmd *cobra.Command, _ []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				v, err := migrate.Version(cmd.Context(), d)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.out, v)
				return err
			},
		},
	)
	return cmd
}

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark journeys past their unlock time as completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := c.app.journeys.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(c.out, map[string]int64{"completed": n})
			}
			_, err = fmt.Fprintf(c.out, "completed %d journeys\n", n)
			return err
		},
	}
}

func newUserCmd(c *cli) *cobra.Command {
	var login bool
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Register users and issue tokens on self-hosted deployments",
	}
	issue := func(fn func(service.AccountService) (service.Account, error)) error {
		if c.app.accounts == nil {
			return errNoAccounts
		}
		acc, err := fn(c.app.accounts)
		if err != nil {
			return err
		}
		if login {
			if err := config.SaveToken(config.DefaultDir(), acc.Tokens.AccessToken, acc.Tokens.ExpiresAt); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
		}
		if c.asJSON {
			return printJSON(c.out, map[string]any{
				"id":           acc.ID.String(),
				"email":        acc.Email,
				"access_token": acc.Tokens.AccessToken,
				"expires_at":   acc.Tokens.ExpiresAt,
			})
		}
		_, err = fmt.Fprintf(c.out, "%s %s\n%s\n", acc.ID, acc.Email, acc.Tokens.AccessToken)
		return err
	}
	add := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Register a user and print an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return issue(func(s service.AccountService) (service.Account, error) {
				return s.Register(cmd.Context(), args[0])
			})
		},
	}
	token := &cobra.Command{
		Use:   "token EMAIL",
		Short: "Issue a new access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return issue(func(s service.AccountService) (service.Account, error) {
				return s.IssueToken(cmd.Context(), args[0])
			})
		},
	}
	cmd.PersistentFlags().BoolVar(&login, "login", false, "also store the token as the local login")
	cmd.AddCommand(add, token)
	return cmd
}

func newLoginCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "login TOKEN",
		Short:       "Store an access token for later commands",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"offline": "true"},
		RunE: func(_ *cobra.Command, args []string) error {
			tok, err := session.BearerToken(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			uid, err := session.SubjectFromToken(tok, nil, c.now())
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			exp, err := session.ExpiryFromToken(tok)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			if err := config.SaveToken(config.DefaultDir(), tok, exp); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			_, err = fmt.Fprintf(c.out, "logged in as %s\n", uid)
			return err
		},
	}
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Forget the stored access token",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		RunE: func(*cobra.Command, []string) error {
			return config.ClearToken(config.DefaultDir())
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Print the signed-in account id",
		Args:        cobra.NoArgs,
		Annotations: noBackend,
		RunE: func(*cobra.Command, []string) error {
			uid, err := c.viewer()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, uid)
			return err
		},
	}
}
