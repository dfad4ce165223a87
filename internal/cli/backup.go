package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/campuslib/campuslib/internal/backup"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
)

func (a *App) backup(ctx context.Context, args []string) error {
	fs, p := a.flags("backup", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	result, err := a.Backups.Create(ctx)
	if err != nil {
		return err
	}
	return p.result(result, func(w io.Writer) {
		c := result.Counts
		fmt.Fprintf(w, "wrote %s (%d bytes)\n", result.Path, result.Size)
		fmt.Fprintf(w, "items %d, users %d, borrows %d, payments %d\n", c.Items, c.Users, c.Borrows, c.Payments)
		fmt.Fprintf(w, "sha256 %s\n", result.Checksum)
	})
}

func (a *App) backups(ctx context.Context, args []string) error {
	fs, p := a.flags("backups", "")
	remove := fs.String("delete", "", "Delete the backup with this ID")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *remove != "" {
		if err := a.Backups.Delete(ctx, *remove); err != nil {
			return err
		}
		return p.result(map[string]string{"deleted": *remove}, func(w io.Writer) {
			fmt.Fprintf(w, "deleted %s\n", *remove)
		})
	}

	list, err := a.Backups.List(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, b := range list {
		rows = append(rows, []string{b.ID, strconv.FormatInt(b.Size, 10), b.Path})
	}
	return p.result(list, p.table([]string{"ID", "BYTES", "PATH"}, rows))
}

func (a *App) restore(ctx context.Context, args []string) error {
	fs, p := a.flags("restore", "<backup-id|path>")
	dryRun := fs.Bool("dry-run", false, "Check the archive without writing")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return domainerrors.Validation("restore takes exactly one backup ID or path")
	}

	result, err := a.Backups.Restore(ctx, fs.Arg(0), backup.RestoreOptions{DryRun: *dryRun})
	if err != nil {
		return err
	}

	indexed := 0
	if !result.DryRun {
		if indexed, err = a.Catalog.Reindex(ctx); err != nil {
			return err
		}
	}

	out := struct {
		*backup.RestoreResult
		Indexed int `json:"indexed"`
	}{result, indexed}
	return p.result(out, func(w io.Writer) {
		if result.DryRun {
			c := result.Manifest.Counts
			fmt.Fprintf(w, "archive ok: items %d, users %d, borrows %d, payments %d\n", c.Items, c.Users, c.Borrows, c.Payments)
			return
		}
		fmt.Fprintf(w, "restored %d records, indexed %d items\n", result.Restored.Total(), indexed)
	})
}
