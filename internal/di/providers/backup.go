package providers

import (
	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/backup"
	"github.com/campuslib/campuslib/internal/config"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/service"
)

// ProvideBackupService provides archive creation and restore.
func ProvideBackupService(i do.Injector) (*backup.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clock := do.MustInvoke[service.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return backup.NewService(storeHandle.Store, backup.Options{
		Dir:    cfg.Backup.Path,
		Driver: cfg.Database.Driver,
		Now:    clock,
		Logger: log.WithComponent("backup").Logger,
	}), nil
}
