// Package backup writes the whole circulation database to a portable zip
// archive and restores it into an empty store.
package backup

import (
	"errors"

	domainerrors "github.com/campuslib/campuslib/internal/errors"
)

var (
	// ErrInvalidManifest indicates the manifest is missing or malformed.
	ErrInvalidManifest = errors.New("invalid or missing manifest")

	// ErrVersionMismatch indicates an unsupported archive format.
	ErrVersionMismatch = errors.New("backup version not supported")

	// ErrCorruptedBackup indicates entity counts disagree with the manifest.
	ErrCorruptedBackup = errors.New("backup integrity check failed")

	// ErrBackupNotFound indicates the requested backup does not exist.
	ErrBackupNotFound = domainerrors.NotFound("backup not found")

	// ErrStoreNotEmpty indicates a restore target that already holds data.
	ErrStoreNotEmpty = domainerrors.Validation("restore requires an empty store")
)
