package providers

import (
	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/notify"
	"github.com/campuslib/campuslib/internal/service"
	"github.com/campuslib/campuslib/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideClock provides the wall clock.
func ProvideClock(i do.Injector) (service.Clock, error) {
	return service.SystemClock, nil
}

// ProvideBorrowService provides the borrow service.
func ProvideBorrowService(i do.Injector) (*service.BorrowService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	clock := do.MustInvoke[service.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBorrowService(storeHandle.Store, clock, log.WithComponent("borrow").Logger), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(storeHandle.Store, indexHandle.Index, validator, log.WithComponent("catalog").Logger), nil
}

// ProvideUserService provides the account service.
func ProvideUserService(i do.Injector) (*service.UserService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	clock := do.MustInvoke[service.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserService(storeHandle.Store, validator, clock, log.WithComponent("user").Logger), nil
}

// ProvideReminderService provides the fine reminder service.
func ProvideReminderService(i do.Injector) (*service.ReminderService, error) {
	borrows := do.MustInvoke[*service.BorrowService](i)
	notifier := do.MustInvoke[notify.Notifier](i)
	limiterHandle := do.MustInvoke[*ReminderLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewReminderService(borrows, notifier, limiterHandle.KeyedRateLimiter, log.WithComponent("reminder").Logger), nil
}
