// Package cli implements the campuslib subcommands on top of the services.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/campuslib/campuslib/internal/backup"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// App holds the services the commands run against.
type App struct {
	Borrows   *service.BorrowService
	Catalog   *service.CatalogService
	Users     *service.UserService
	Reminders *service.ReminderService
	Backups   *backup.Service

	Out io.Writer
}

type command struct {
	name    string
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = []command{
	{"borrow", "Lend one copy of an item to a student", (*App).borrow},
	{"return", "Take an item back and fix its fine", (*App).returnItem},
	{"pay", "Pay toward a student's fines, oldest first", (*App).pay},
	{"fine", "Show what a student owes", (*App).fine},
	{"overdue", "List items that are past their due date", (*App).overdue},
	{"unpaid", "List students with unpaid fines", (*App).unpaid},
	{"history", "List a student's borrows or payments", (*App).history},
	{"add-item", "Add an item to the catalog", (*App).addItem},
	{"restock", "Put more copies of an item on the shelf", (*App).restock},
	{"remove-item", "Remove an item from the catalog", (*App).removeItem},
	{"items", "List the catalog", (*App).items},
	{"search", "Search the catalog by name or author", (*App).search},
	{"reindex", "Rebuild the catalog search index", (*App).reindex},
	{"register", "Create an account", (*App).register},
	{"login", "Check an email and password", (*App).login},
	{"inactive", "List accounts that have not borrowed for a year", (*App).inactive},
	{"remind", "Email every student who owes a fine", (*App).remind},
	{"backup", "Write the whole database to an archive", (*App).backup},
	{"backups", "List or delete archives", (*App).backups},
	{"restore", "Load an archive into an empty database", (*App).restore},
}

// errHelp reports that usage was printed and nothing else should run.
var errHelp = errors.New("help requested")

// Usage writes the command summary.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: campuslib [global flags] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Every command accepts --json. Run 'campuslib <command> -h' for its flags.")
}

// IsCommand reports whether name is a known command.
func IsCommand(name string) bool {
	_, ok := lookup(name)
	return ok
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return domainerrors.Validation("no command given")
	}

	cmd, ok := lookup(args[0])
	if !ok {
		return domainerrors.Validationf("unknown command %q", args[0])
	}

	err := cmd.run(a, ctx, args[1:])
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return domainerrors.CodeOf(err).ExitCode()
}

// flags builds the flag set for one command. Every command gets --json.
func (a *App) flags(name, usage string) (*flag.FlagSet, *printer) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)

	p := &printer{out: a.Out}
	fs.BoolVar(&p.json, "json", false, "Print the result as JSON")

	fs.Usage = func() {
		fmt.Fprintf(a.Out, "Usage: campuslib %s [flags] %s\n\nFlags:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs, p
}

// parse parses args and converts flag errors into validation errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return domainerrors.Validation(err.Error())
	}
	return nil
}

// requireFlags fails with a validation error naming every blank flag.
func requireFlags(values map[string]string) error {
	var missing []string
	for name, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return domainerrors.Validationf("missing required flags: %s", strings.Join(missing, ", "))
}
