// Package main provides the entry point for the campuslib command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/backup"
	"github.com/campuslib/campuslib/internal/cli"
	"github.com/campuslib/campuslib/internal/config"
	"github.com/campuslib/campuslib/internal/di"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		cli.Usage(os.Stdout)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 2
	}

	if len(args) == 0 || args[0] == "help" {
		cli.Usage(os.Stdout)
		return 0
	}
	if !cli.IsCommand(args[0]) {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		cli.Usage(os.Stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create DI container
	injector := di.NewContainer(cfg)
	defer func() {
		// The container closes the store, the index and the limiter in
		// reverse order of creation.
		if report := injector.Shutdown(); !report.Succeed {
			fmt.Fprintln(os.Stderr, report.Error())
		}
	}()

	if err := di.Bootstrap(ctx, injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}

	log := do.MustInvoke[*logger.Logger](injector)

	app := &cli.App{
		Borrows:   do.MustInvoke[*service.BorrowService](injector),
		Catalog:   do.MustInvoke[*service.CatalogService](injector),
		Users:     do.MustInvoke[*service.UserService](injector),
		Reminders: do.MustInvoke[*service.ReminderService](injector),
		Backups:   do.MustInvoke[*backup.Service](injector),
		Out:       os.Stdout,
	}

	if err := app.Run(ctx, args); err != nil {
		log.WithError(err).Debug("command failed", "command", args[0])
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return cli.ExitCode(err)
	}
	return 0
}
