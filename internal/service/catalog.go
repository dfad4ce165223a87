package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campuslib/campuslib/internal/domain"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/search"
	"github.com/campuslib/campuslib/internal/store"
	"github.com/campuslib/campuslib/internal/validation"
)

// AddItemRequest describes a new catalog item.
type AddItemRequest struct {
	ISBN     string `json:"isbn" validate:"notblank,max=32"`
	Name     string `json:"name" validate:"notblank,max=500"`
	Author   string `json:"author" validate:"notblank,max=200"`
	Category string `json:"category" validate:"category"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// SearchParams configures a catalog search.
type SearchParams struct {
	Query    string
	Field    string // name, author or any
	Category string
	Limit    int
}

// CatalogService manages items and keeps the search index in step with the
// store. The store is authoritative; index failures are logged and repaired
// by Reindex.
type CatalogService struct {
	store     store.Store
	index     *search.Index
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(st store.Store, index *search.Index, v *validation.Validator, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     st,
		index:     index,
		validator: v,
		logger:    logger,
	}
}

// AddItem stores a new item and indexes it.
func (s *CatalogService) AddItem(ctx context.Context, req AddItemRequest) (*domain.Item, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	item := &domain.Item{
		ISBN:     strings.TrimSpace(req.ISBN),
		Name:     strings.TrimSpace(req.Name),
		Author:   strings.TrimSpace(req.Author),
		Category: category,
		Quantity: req.Quantity,
	}

	if err := s.store.CreateItem(ctx, item); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists(fmt.Sprintf("item %s already exists", item.ISBN))
		}
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.indexItem(item)
	s.logger.Info("item added",
		"isbn", item.ISBN,
		"name", item.Name,
		"category", item.Category,
		"quantity", item.Quantity,
	)
	return item, nil
}

// Restock puts n more copies of an existing item on the shelf.
func (s *CatalogService) Restock(ctx context.Context, isbn string, n int) (*domain.Item, error) {
	if n <= 0 {
		return nil, domainerrors.Validation("restock quantity must be positive")
	}

	if err := s.store.AddQuantity(ctx, isbn, n); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.ItemNotFoundf(isbn)
		}
		return nil, fmt.Errorf("add quantity: %w", err)
	}

	item, err := s.GetItem(ctx, isbn)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item restocked", "isbn", isbn, "added", n, "quantity", item.Quantity)
	return item, nil
}

// GetItem returns one item.
func (s *CatalogService) GetItem(ctx context.Context, isbn string) (*domain.Item, error) {
	item, err := s.store.FindByISBN(ctx, isbn)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.ItemNotFoundf(isbn)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns the whole catalog ordered by name.
func (s *CatalogService) ListItems(ctx context.Context) ([]*domain.Item, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// RemoveItem deletes an item from the catalog and the index. Borrow
// records that reference it are kept.
func (s *CatalogService) RemoveItem(ctx context.Context, isbn string) error {
	if err := s.store.DeleteItem(ctx, isbn); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.ItemNotFoundf(isbn)
		}
		return fmt.Errorf("delete item: %w", err)
	}

	if err := s.index.DeleteItem(isbn); err != nil {
		s.logger.Warn("failed to remove item from search index", "isbn", isbn, logger.Err(err))
	}
	s.logger.Info("item removed", "isbn", isbn)
	return nil
}

// Search finds items by text and category. Hits are resolved through the
// store so quantities are current; hits for items no longer stored are
// skipped.
func (s *CatalogService) Search(ctx context.Context, params SearchParams) ([]*domain.Item, error) {
	field, err := search.ParseField(params.Field)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	var category string
	if params.Category != "" {
		c, err := domain.ParseCategory(params.Category)
		if err != nil {
			return nil, domainerrors.Validation(err.Error())
		}
		category = string(c)
	}

	res, err := s.index.Search(ctx, search.SearchParams{
		Query:    strings.TrimSpace(params.Query),
		Field:    field,
		Category: category,
		Limit:    params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	items := make([]*domain.Item, 0, len(res.Hits))
	for _, hit := range res.Hits {
		item, err := s.store.FindByISBN(ctx, hit.ISBN)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug("search hit not in store", "isbn", hit.ISBN)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve hit %s: %w", hit.ISBN, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Reindex rebuilds the search index from the store and returns the number
// of items indexed.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("list items: %w", err)
	}

	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	docs := make([]*search.ItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, search.ItemToDocument(item))
	}
	if err := s.index.IndexItems(docs); err != nil {
		return 0, fmt.Errorf("index items: %w", err)
	}

	s.logger.Info("search index rebuilt", "items", len(docs))
	return len(docs), nil
}

func (s *CatalogService) indexItem(item *domain.Item) {
	if err := s.index.IndexItem(search.ItemToDocument(item)); err != nil {
		s.logger.Warn("failed to index item", "isbn", item.ISBN, logger.Err(err))
	}
}
