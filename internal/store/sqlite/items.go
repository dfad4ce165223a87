package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

const itemColumns = `isbn, name, author, category, quantity`

func scanItem(scanner rowScanner) (*domain.Item, error) {
	var (
		item     domain.Item
		category string
	)
	if err := scanner.Scan(&item.ISBN, &item.Name, &item.Author, &category, &item.Quantity); err != nil {
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
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO items (isbn, name, author, category, quantity)
		VALUES (?, ?, ?, ?, ?)`,
		item.ISBN, item.Name, item.Author, string(item.Category), item.Quantity,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// FindByISBN returns one item.
func (q *queries) FindByISBN(ctx context.Context, isbn string) (*domain.Item, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE isbn = ?`, isbn)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return item, err
}

// ListItems returns the whole catalog ordered by name.
func (q *queries) ListItems(ctx context.Context) ([]*domain.Item, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name, isbn`)
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

// DecrementQuantity takes a copy off the shelf if one is left.
func (q *queries) DecrementQuantity(ctx context.Context, isbn string) (bool, error) {
	return q.execAffected(ctx, `
		UPDATE items SET quantity = quantity - 1
		WHERE isbn = ? AND quantity > 0`,
		isbn,
	)
}

// IncrementQuantity puts a copy back on the shelf.
func (q *queries) IncrementQuantity(ctx context.Context, isbn string) (bool, error) {
	return q.execAffected(ctx, `UPDATE items SET quantity = quantity + 1 WHERE isbn = ?`, isbn)
}

// AddQuantity restocks n copies.
func (q *queries) AddQuantity(ctx context.Context, isbn string, n int) error {
	ok, err := q.execAffected(ctx, `UPDATE items SET quantity = quantity + ? WHERE isbn = ?`, n, isbn)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// DeleteItem removes an item from the catalog.
func (q *queries) DeleteItem(ctx context.Context, isbn string) error {
	ok, err := q.execAffected(ctx, `DELETE FROM items WHERE isbn = ?`, isbn)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// execAffected runs a write and reports whether any row changed.
func (q *queries) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
