// Package di provides dependency injection configuration for campuslib.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/config"
	"github.com/campuslib/campuslib/internal/di/providers"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// The configuration is loaded by the caller, since it depends on the
// command line.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Outbound mail
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideReminderLimiter)

	// Business services
	do.Provide(injector, providers.ProvideBorrowService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideUserService)
	do.Provide(injector, providers.ProvideReminderService)
	do.Provide(injector, providers.ProvideBackupService)

	return injector
}

// Bootstrap opens the storage layer and wires every service, so
// configuration and connection errors surface before a command runs.
func Bootstrap(ctx context.Context, injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}

	// Business services
	if _, err := do.Invoke[*service.BorrowService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.CatalogService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.UserService](injector); err != nil {
		return err
	}

	return providers.ReindexIfEmpty(ctx, injector)
}
