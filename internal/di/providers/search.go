package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/config"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/search"
	"github.com/campuslib/campuslib/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve catalog index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.Open(search.Options{
		DataPath: cfg.Search.Path,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Debug("search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// ReindexIfEmpty repopulates an empty search index from the store, which
// happens on first run and after a mapping change.
func ReindexIfEmpty(ctx context.Context, i do.Injector) error {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, err := indexHandle.DocumentCount()
	if err != nil || docCount > 0 {
		return err
	}

	items, err := storeHandle.ListItems(ctx)
	if err != nil || len(items) == 0 {
		return err
	}

	log.Info("search index is empty but items exist, reindexing", "item_count", len(items))
	_, err = catalog.Reindex(ctx)
	return err
}
