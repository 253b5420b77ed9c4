// Package main is the entry point for the catalog CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/williamsiker/practicas/internal/cli"
	ver "github.com/williamsiker/practicas/internal/version"
)

// Version information set by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cli.SetVersionInfo(ver.Resolve(version), commit, date)

	code := run(context.Background(), sigChan, cli.ExecuteContext, os.Stderr, os.Exit)
	os.Exit(code)
}

// run executes the CLI and returns the process exit code. The first signal
// cancels the command context; a second signal or the shutdown timeout
// forces an exit through exit.
func run(parent context.Context, sigChan <-chan os.Signal, execute func(context.Context) error, stderr io.Writer, exit func(int)) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	handlerDone := make(chan struct{})

	go func() {
		defer close(handlerDone)

		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-done:
			return
		}
		fmt.Fprintf(stderr, "\nReceived signal %v, initiating graceful shutdown...\n", sig)
		cancel()

		// A pending second signal wins over a completed shutdown.
		select {
		case sig = <-sigChan:
			fmt.Fprintf(stderr, "\nReceived second signal %v, forcing exit\n", sig)
			exit(1)
			return
		default:
		}

		shutdownTimer := time.NewTimer(shutdownTimeout)
		defer shutdownTimer.Stop()

		select {
		case <-done:
		case <-shutdownTimer.C:
			fmt.Fprintf(stderr, "\nShutdown timeout (%v) exceeded, forcing exit\n", shutdownTimeout)
			exit(1)
		case sig = <-sigChan:
			fmt.Fprintf(stderr, "\nReceived second signal %v, forcing exit\n", sig)
			exit(1)
		}
	}()

	exitCode := 0
	if err := execute(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(stderr, "Operation canceled")
			exitCode = 130 // Standard exit code for SIGINT
		} else {
			// SilenceErrors is set on the root command.
			fmt.Fprintf(stderr, "Error: %s\n", cli.FormatError(err))
			exitCode = 1
		}
	}

	close(done)
	<-handlerDone
	return exitCode
}
