// Command vault captures memories into time-locked journeys and administers them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/journeyvault/internal/config"
	"github.com/and161185/journeyvault/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newCLI()
	err := newRootCmd(c).ExecuteContext(ctx)
	// post-run hooks are skipped when a command fails
	if cerr := c.teardown(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errs.Recoverable(err), errs.Fatal(err),
		errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, config.ErrNoToken),
		errors.Is(err, errUsage):
		return exitUserError
	default:
		return exitSysError
	}
}
