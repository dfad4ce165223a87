package backup

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/campuslib/campuslib/internal/backup/stream"
	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

// RestoreOptions configures Restore.
type RestoreOptions struct {
	DryRun bool // read and check the archive without writing
}

// RestoreResult reports what a restore wrote.
type RestoreResult struct {
	Manifest *Manifest     `json:"manifest"`
	Restored EntityCounts  `json:"restored"`
	DryRun   bool          `json:"dry_run"`
	Duration time.Duration `json:"duration"`
}

// snapshot is the decoded content of an archive.
type snapshot struct {
	manifest *Manifest
	items    []*domain.Item
	users    []userRecord
	borrows  []domain.BorrowRecord
	payments []*domain.Payment
}

func (s *snapshot) counts() EntityCounts {
	return EntityCounts{
		Items:    len(s.items),
		Users:    len(s.users),
		Borrows:  len(s.borrows),
		Payments: len(s.payments),
	}
}

// Restore loads the archive named by ref, a backup ID or a file path, into
// the store. The store must be empty; everything is written in one
// transaction so a failed restore leaves nothing behind. Callers should
// rebuild the search index afterwards.
func (s *Service) Restore(ctx context.Context, ref string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()

	path, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting restore", "path", path, "dry_run", opts.DryRun)

	snap, err := load(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Manifest: snap.manifest, DryRun: opts.DryRun}
	if opts.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := s.ensureEmpty(ctx); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		for _, item := range snap.items {
			if err := tx.CreateItem(ctx, item); err != nil {
				return fmt.Errorf("restore item %s: %w", item.ISBN, err)
			}
		}
		for _, rec := range snap.users {
			if err := tx.CreateUser(ctx, rec.user()); err != nil {
				return fmt.Errorf("restore user %s: %w", rec.Email, err)
			}
		}
		for i := range snap.borrows {
			if err := tx.RestoreBorrow(ctx, &snap.borrows[i]); err != nil {
				return fmt.Errorf("restore borrow %d: %w", snap.borrows[i].ID, err)
			}
		}
		for _, p := range snap.payments {
			if err := tx.CreatePayment(ctx, p); err != nil {
				return fmt.Errorf("restore payment %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Restored = snap.counts()
	result.Duration = time.Since(start)

	s.logger.Info("restore complete",
		"entities", result.Restored.Total(),
		"duration", result.Duration)

	return result, nil
}

// resolve maps a backup ID or an existing file path to a path.
func (s *Service) resolve(ctx context.Context, ref string) (string, error) {
	if strings.HasSuffix(ref, fileSuffix) || strings.ContainsAny(ref, `/\`) {
		if _, err := os.Stat(ref); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", ErrBackupNotFound
			}
			return "", err
		}
		return ref, nil
	}
	info, err := s.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

// ensureEmpty refuses to restore over existing data.
func (s *Service) ensureEmpty(ctx context.Context) error {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	borrows, err := s.store.AllBorrows(ctx)
	if err != nil {
		return err
	}
	payments, err := s.store.AllPayments(ctx)
	if err != nil {
		return err
	}
	if len(items)+len(users)+len(borrows)+len(payments) > 0 {
		return ErrStoreNotEmpty
	}
	return nil
}

// load decodes and checks an archive.
func load(path string) (*snapshot, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zrc.Close()
	zr := &zrc.Reader

	manifest, err := readManifest(zr)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{manifest: manifest}
	if snap.items, err = stream.ReadAll[*domain.Item](zr, itemsFile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}
	if snap.users, err = stream.ReadAll[userRecord](zr, usersFile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}
	if snap.borrows, err = stream.ReadAll[domain.BorrowRecord](zr, borrowsFile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}
	if snap.payments, err = stream.ReadAll[*domain.Payment](zr, paymentsFile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}

	if got := snap.counts(); got != manifest.Counts {
		return nil, fmt.Errorf("%w: manifest lists %+v, archive holds %+v", ErrCorruptedBackup, manifest.Counts, got)
	}
	return snap, nil
}

func readManifest(zr *zip.Reader) (*Manifest, error) {
	rc, err := stream.OpenFile(zr, manifestFile)
	if err != nil {
		return nil, ErrInvalidManifest
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s (want %s)", ErrVersionMismatch, m.Version, FormatVersion)
	}
	return &m, nil
}
