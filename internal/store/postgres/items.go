package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

const (
	colName     = "name"
	colAuthor   = "author"
	colCategory = "category"
	colQuantity = "quantity"
)

var itemColumns = []any{colISBN, colName, colAuthor, colCategory, colQuantity}

func scanItem(row pgx.Row) (*domain.Item, error) {
	var (
		item     domain.Item
		category string
	)
	if err := row.Scan(&item.ISBN, &item.Name, &item.Author, &category, &item.Quantity); err != nil {
		return nil, err
	}
	c, err := domain.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", item.ISBN, err)
	}
	item.Category = c
	return &item, nil
}

// CreateItem inserts a new catalog item.
func (q *queries) CreateItem(ctx context.Context, item *domain.Item) error {
	_, err := q.exec(ctx, dialect.Insert(tableItems).
		Rows(goqu.Record{
			colISBN:     item.ISBN,
			colName:     item.Name,
			colAuthor:   item.Author,
			colCategory: string(item.Category),
			colQuantity: item.Quantity,
		}).
		Prepared(true))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// FindByISBN returns one item.
func (q *queries) FindByISBN(ctx context.Context, isbn string) (*domain.Item, error) {
	row, err := q.queryRow(ctx, dialect.From(tableItems).
		Select(itemColumns...).
		Where(goqu.C(colISBN).Eq(isbn)).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return item, err
}

// ListItems returns the whole catalog ordered by name.
func (q *queries) ListItems(ctx context.Context) ([]*domain.Item, error) {
	rows, err := q.query(ctx, dialect.From(tableItems).
		Select(itemColumns...).
		Order(goqu.C(colName).Asc(), goqu.C(colISBN).Asc()).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DecrementQuantity takes a copy off the shelf if one is left. The guarded
// update holds the row lock, so concurrent borrowers of the last copy queue
// behind each other and only one sees a changed row.
func (q *queries) DecrementQuantity(ctx context.Context, isbn string) (bool, error) {
	n, err := q.exec(ctx, dialect.Update(tableItems).
		Set(goqu.Record{colQuantity: goqu.L("? - 1", goqu.C(colQuantity))}).
		Where(goqu.C(colISBN).Eq(isbn), goqu.C(colQuantity).Gt(0)).
		Prepared(true))
	return n > 0, err
}

// IncrementQuantity puts a copy back on the shelf.
func (q *queries) IncrementQuantity(ctx context.Context, isbn string) (bool, error) {
	n, err := q.addQuantity(ctx, isbn, 1)
	return n > 0, err
}

// AddQuantity restocks n copies.
func (q *queries) AddQuantity(ctx context.Context, isbn string, n int) error {
	affected, err := q.addQuantity(ctx, isbn, n)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *queries) addQuantity(ctx context.Context, isbn string, n int) (int64, error) {
	return q.exec(ctx, dialect.Update(tableItems).
		Set(goqu.Record{colQuantity: goqu.L("? + ?", goqu.C(colQuantity), n)}).
		Where(goqu.C(colISBN).Eq(isbn)).
		Prepared(true))
}

// DeleteItem removes an item from the catalog.
func (q *queries) DeleteItem(ctx context.Context, isbn string) error {
	n, err := q.exec(ctx, dialect.Delete(tableItems).
		Where(goqu.C(colISBN).Eq(isbn)).
		Prepared(true))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
