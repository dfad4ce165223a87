package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/campuslib/campuslib/internal/backup/stream"
	"github.com/campuslib/campuslib/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	fileSuffix = ".campuslib.zip"
	idLayout   = "2006-01-02-150405"
)

// Info describes an archive on disk.
type Info struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Result describes a freshly written archive.
type Result struct {
	Info
	Counts   EntityCounts  `json:"counts"`
	Checksum string        `json:"checksum"`
	Duration time.Duration `json:"duration"`
}

// Options configures the Service.
type Options struct {
	Dir    string // archive directory
	Driver string // recorded in the manifest
	Now    func() time.Time
	Logger *slog.Logger
}

// Service creates, lists and restores archives.
type Service struct {
	store  store.Store
	dir    string
	driver string
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a Service writing archives below opts.Dir.
func NewService(st store.Store, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:  st,
		dir:    opts.Dir,
		driver: opts.Driver,
		now:    now,
		logger: logger,
	}
}

// Create exports every item, user, borrow record and payment to a new
// archive. The file is written next to its final name and renamed into place
// once complete.
func (s *Service) Create(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	createdAt := s.now().UTC()
	id := "backup-" + createdAt.Format(idLayout)
	path := s.pathFor(id)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmpPath) // gone after a successful rename
	defer f.Close()

	hash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, hash))

	manifest := &Manifest{
		Version:   FormatVersion,
		CreatedAt: createdAt,
		Driver:    s.driver,
	}
	if err := s.export(ctx, zw, &manifest.Counts); err != nil {
		return nil, err
	}
	if err := writeManifest(zw, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("rename backup: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Info: Info{
			ID:        id,
			Path:      path,
			Size:      stat.Size(),
			CreatedAt: createdAt,
		},
		Counts:   manifest.Counts,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
		Duration: time.Since(start),
	}

	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"entities", result.Counts.Total(),
		"checksum", result.Checksum,
		"duration", result.Duration)

	return result, nil
}

func (s *Service) export(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	steps := []struct {
		name string
		fn   func(context.Context, *zip.Writer) (int, error)
		dest *int
	}{
		{"items", s.exportItems, &counts.Items},
		{"users", s.exportUsers, &counts.Users},
		{"borrows", s.exportBorrows, &counts.Borrows},
		{"payments", s.exportPayments, &counts.Payments},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := step.fn(ctx, zw)
		if err != nil {
			return fmt.Errorf("export %s: %w", step.name, err)
		}
		*step.dest = n
	}
	return nil
}

func (s *Service) exportItems(ctx context.Context, zw *zip.Writer) (int, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return 0, err
	}
	return stream.WriteAll(zw, itemsFile, items)
}

func (s *Service) exportUsers(ctx context.Context, zw *zip.Writer) (int, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	records := make([]userRecord, 0, len(users))
	for _, u := range users {
		records = append(records, toUserRecord(u))
	}
	return stream.WriteAll(zw, usersFile, records)
}

func (s *Service) exportBorrows(ctx context.Context, zw *zip.Writer) (int, error) {
	borrows, err := s.store.AllBorrows(ctx)
	if err != nil {
		return 0, err
	}
	return stream.WriteAll(zw, borrowsFile, borrows)
}

func (s *Service) exportPayments(ctx context.Context, zw *zip.Writer) (int, error) {
	payments, err := s.store.AllPayments(ctx)
	if err != nil {
		return 0, err
	}
	return stream.WriteAll(zw, paymentsFile, payments)
}

func writeManifest(zw *zip.Writer, m *Manifest) error {
	w, err := zw.Create(manifestFile)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(m)
}

// List returns the archives in the backup directory, newest first.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, err
	}

	backups := []Info{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			ID:        strings.TrimSuffix(entry.Name(), fileSuffix),
			Path:      filepath.Join(s.dir, entry.Name()),
			Size:      stat.Size(),
			CreatedAt: stat.ModTime(),
		})
	}

	// IDs embed the creation time, so they sort chronologically.
	slices.SortFunc(backups, func(a, b Info) int {
		return strings.Compare(b.ID, a.ID)
	})
	return backups, nil
}

// Get returns the archive with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*Info, error) {
	if !validID(id) {
		return nil, ErrBackupNotFound
	}
	path := s.pathFor(id)
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}
	return &Info{
		ID:        id,
		Path:      path,
		Size:      stat.Size(),
		CreatedAt: stat.ModTime(),
	}, nil
}

// Delete removes the archive with the given ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	info, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(info.Path); err != nil {
		return fmt.Errorf("remove backup: %w", err)
	}
	s.logger.Info("backup deleted", "id", id)
	return nil
}

func (s *Service) pathFor(id string) string {
	return filepath.Join(s.dir, id+fileSuffix)
}

// validID rejects IDs that would resolve outside the backup directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
