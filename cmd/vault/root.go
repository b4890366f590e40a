package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/journeyvault/internal/config"
	"github.com/and161185/journeyvault/internal/session"
)

var errUsage = errors.New("usage")

// cli is the state shared by all commands of one invocation.
type cli struct {
	configPath string
	token      string
	debug      bool
	asJSON     bool

	out io.Writer
	now func() time.Time

	cfg *config.Config
	log *zap.Logger
	app *app

	// build wires the backends; tests replace it.
	build func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error)
}

func newCLI() *cli {
	return &cli{out: os.Stdout, now: time.Now, build: buildApp}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "vault",
		Short:         "Capture memories into journeys that stay sealed until they unlock",
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}
	root.SetOut(c.out)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/journeyvault/config.yaml)")
	pf.StringVar(&c.token, "token", "", "access token (overrides config and stored login)")
	pf.BoolVar(&c.debug, "debug", false, "development logging")
	pf.BoolVar(&c.asJSON, "json", false, "output as JSON")

	root.AddCommand(
		newJourneyCmd(c),
		newMemoryCmd(c),
		newCaptureCmd(c),
		newMigrateCmd(c),
		newSweepCmd(c),
		newUserCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
	)
	return root
}

// offline commands need neither config validation nor backends.
func offline(cmd *cobra.Command) bool {
	return cmd.Annotations["offline"] == "true"
}

func (c *cli) setup(cmd *cobra.Command) error {
	var err error
	if c.debug {
		c.log, err = zap.NewDevelopment()
	} else {
		c.log, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if offline(cmd) {
		return nil
	}

	c.cfg, err = config.Load(c.configPath)
	if err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.resolveToken()
	if cmd.Annotations["backend"] == "none" {
		return nil
	}
	c.app, err = c.build(cmd.Context(), c.cfg, c.log)
	return err
}

func (c *cli) teardown() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.log != nil {
		_ = c.log.Sync()
	}
	return err
}

// resolveToken picks the access token from --token, the config file or the
// stored login, in that order.
func (c *cli) resolveToken() {
	if c.token != "" {
		c.cfg.AccessToken = c.token
		return
	}
	if c.cfg.AccessToken != "" {
		return
	}
	if tok, err := config.LoadToken(config.DefaultDir(), c.now()); err == nil {
		c.cfg.AccessToken = tok
	}
}

// viewer returns the signed-in account.
func (c *cli) viewer() (uuid.UUID, error) {
	if c.cfg == nil || c.cfg.AccessToken == "" {
		return uuid.Nil, config.ErrNoToken
	}
	tok, err := session.BearerToken(c.cfg.AccessToken)
	if err != nil {
		return uuid.Nil, err
	}
	var key []byte
	if c.cfg.JWTSecret != "" {
		key = []byte(c.cfg.JWTSecret)
	}
	return session.SubjectFromToken(tok, key, c.now())
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not an id", errUsage, s)
	}
	return id, nil
}
