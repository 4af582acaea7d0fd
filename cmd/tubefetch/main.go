// Package main is the entrypoint of tubefetch.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tubefetch/internal/cfg"
	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/domain/paths"
	"tubefetch/internal/utils/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	loadDotEnv()

	if err := paths.InitProgFilesDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "%s exiting with error: %v\n", consts.ProgramName, err)
		return 1
	}

	pl, err := logging.SetupLogging(logging.LoggingConfig{
		LogFilePath: paths.LogFilePath,
		Console:     os.Stderr,
		Program:     consts.ProgramName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Notice: log file was not created: %v\n", err)
	}
	logger.Pl = pl
	defer func() {
		if err := pl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}()

	// SIGINT is routed by cfg: it cancels a followed job first, the command otherwise.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	if err := cfg.Execute(ctx, cfg.Deps{In: os.Stdin, Interrupts: interrupts}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
