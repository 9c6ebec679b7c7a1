// Package main is the entry point for the projectmd CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/projectmd/cmd"
	"github.com/danielolaszy/projectmd/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// main is the entry point of the application.
// It executes the root command and handles any errors that occur.
func main() {
	// A sync run stops between tasks on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Debug("starting projectmd", "version", version)

	if err := cmd.Execute(ctx); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
