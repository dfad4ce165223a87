package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslib/campuslib/internal/domain"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/search"
	"github.com/campuslib/campuslib/internal/store/sqlite"
	"github.com/campuslib/campuslib/internal/validation"
)

func setupCatalogService(t *testing.T) (*CatalogService, *sqlite.Store) {
	t.Helper()

	st := newTestStore(t)
	index, err := search.Open(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	svc := NewCatalogService(st, index, validation.New(), logger.Discard().Logger)
	return svc, st
}

func addTestItems(t *testing.T, svc *CatalogService) {
	t.Helper()

	reqs := []AddItemRequest{
		{ISBN: "111", Name: "Clean Code", Author: "Robert C. Martin", Category: "Book", Quantity: 2},
		{ISBN: "222", Name: "The Clean Coder", Author: "Robert C. Martin", Category: "book", Quantity: 1},
		{ISBN: "333", Name: "Kind of Blue", Author: "Miles Davis", Category: "CD", Quantity: 3},
	}
	for _, req := range reqs {
		_, err := svc.AddItem(context.Background(), req)
		require.NoError(t, err)
	}
}

func isbnsOf(items []*domain.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ISBN
	}
	return out
}

func TestAddItem(t *testing.T) {
	svc, st := setupCatalogService(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, AddItemRequest{
		ISBN:     " 111 ",
		Name:     "Clean Code",
		Author:   "Robert C. Martin",
		Category: "bOOk",
		Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "111", item.ISBN)
	assert.Equal(t, domain.CategoryBook, item.Category)

	stored, err := st.FindByISBN(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, item, stored)
}

func TestAddItem_Validation(t *testing.T) {
	svc, _ := setupCatalogService(t)

	tests := []struct {
		name  string
		req   AddItemRequest
		field string
	}{
		{"blank name", AddItemRequest{ISBN: "1", Name: "  ", Author: "A", Category: "Book", Quantity: 1}, "name"},
		{"blank author", AddItemRequest{ISBN: "1", Name: "N", Category: "Book", Quantity: 1}, "author"},
		{"unknown category", AddItemRequest{ISBN: "1", Name: "N", Author: "A", Category: "DVD", Quantity: 1}, "category"},
		{"zero quantity", AddItemRequest{ISBN: "1", Name: "N", Author: "A", Category: "CD"}, "quantity"},
		{"missing isbn", AddItemRequest{Name: "N", Author: "A", Category: "CD", Quantity: 1}, "isbn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddItem(context.Background(), tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Contains(t, domainErr.Details, tt.field)
		})
	}
}

func TestAddItem_Duplicate(t *testing.T) {
	svc, _ := setupCatalogService(t)
	addTestItems(t, svc)

	_, err := svc.AddItem(context.Background(), AddItemRequest{
		ISBN: "111", Name: "Other", Author: "Someone", Category: "Book", Quantity: 1,
	})
	assert.Equal(t, domainerrors.CodeAlreadyExists, domainerrors.CodeOf(err))
}

func TestRestock(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()
	addTestItems(t, svc)

	item, err := svc.Restock(ctx, "111", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	_, err = svc.Restock(ctx, "999", 1)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrItemNotFound))

	_, err = svc.Restock(ctx, "111", 0)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestGetItem_NotFound(t *testing.T) {
	svc, _ := setupCatalogService(t)

	_, err := svc.GetItem(context.Background(), "999")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrItemNotFound))
}

func TestListItems(t *testing.T) {
	svc, _ := setupCatalogService(t)
	addTestItems(t, svc)

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "333", "222"}, isbnsOf(items))
}

func TestSearch(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()
	addTestItems(t, svc)

	items, err := svc.Search(ctx, SearchParams{Query: "clean"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"111", "222"}, isbnsOf(items))

	items, err = svc.Search(ctx, SearchParams{Query: "davis", Field: "author"})
	require.NoError(t, err)
	assert.Equal(t, []string{"333"}, isbnsOf(items))

	items, err = svc.Search(ctx, SearchParams{Category: "cd"})
	require.NoError(t, err)
	assert.Equal(t, []string{"333"}, isbnsOf(items))
}

func TestSearch_ReturnsCurrentQuantity(t *testing.T) {
	svc, st := setupCatalogService(t)
	ctx := context.Background()
	addTestItems(t, svc)

	ok, err := st.DecrementQuantity(ctx, "111")
	require.NoError(t, err)
	require.True(t, ok)

	items, err := svc.Search(ctx, SearchParams{Query: "clean"})
	require.NoError(t, err)

	quantities := map[string]int{}
	for _, item := range items {
		quantities[item.ISBN] = item.Quantity
	}
	assert.Equal(t, map[string]int{"111": 1, "222": 1}, quantities)
}

func TestSearch_SkipsItemsMissingFromStore(t *testing.T) {
	svc, st := setupCatalogService(t)
	ctx := context.Background()
	addTestItems(t, svc)

	require.NoError(t, st.DeleteItem(ctx, "222"))

	items, err := svc.Search(ctx, SearchParams{Query: "clean"})
	require.NoError(t, err)
	assert.Equal(t, []string{"111"}, isbnsOf(items))
}

func TestSearch_InvalidParams(t *testing.T) {
	svc, _ := setupCatalogService(t)

	_, err := svc.Search(context.Background(), SearchParams{Query: "x", Field: "publisher"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = svc.Search(context.Background(), SearchParams{Category: "vinyl"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestRemoveItem(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()
	addTestItems(t, svc)

	require.NoError(t, svc.RemoveItem(ctx, "333"))

	_, err := svc.GetItem(ctx, "333")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrItemNotFound))

	items, err := svc.Search(ctx, SearchParams{Query: "blue"})
	require.NoError(t, err)
	assert.Empty(t, items)

	err = svc.RemoveItem(ctx, "333")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrItemNotFound))
}

func TestReindex(t *testing.T) {
	svc, st := setupCatalogService(t)
	ctx := context.Background()
	addTestItems(t, svc)

	// Items written straight to the store are invisible until a reindex.
	createTestItem(t, st, "444", "Programming Pearls", domain.CategoryBook, 1)

	items, err := svc.Search(ctx, SearchParams{Query: "pearls"})
	require.NoError(t, err)
	assert.Empty(t, items)

	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	items, err = svc.Search(ctx, SearchParams{Query: "pearls"})
	require.NoError(t, err)
	assert.Equal(t, []string{"444"}, isbnsOf(items))
}
