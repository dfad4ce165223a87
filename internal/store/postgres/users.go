package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

const (
	colEmail          = "email"
	colRole           = "role"
	colPasswordHash   = "password_hash"
	colLastBorrowDate = "last_borrow_date"
	colCreatedAt      = "created_at"
)

var userColumns = []any{colEmail, colRole, colPasswordHash, colLastBorrowDate, colCreatedAt}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u          domain.User
		role       string
		hash       *string
		lastBorrow *time.Time
	)
	if err := row.Scan(&u.Email, &role, &hash, &lastBorrow, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if hash != nil {
		u.PasswordHash = *hash
	}
	if lastBorrow != nil {
		d := domain.DateOf(*lastBorrow)
		u.LastBorrowDate = &d
	}
	return &u, nil
}

// CreateUser inserts an account.
func (q *queries) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	rec := goqu.Record{
		colEmail:          user.Email,
		colRole:           string(user.Role),
		colPasswordHash:   nil,
		colLastBorrowDate: nil,
		colCreatedAt:      user.CreatedAt.UTC(),
	}
	if user.PasswordHash != "" {
		rec[colPasswordHash] = user.PasswordHash
	}
	if user.LastBorrowDate != nil {
		rec[colLastBorrowDate] = domain.DateOf(*user.LastBorrowDate)
	}

	_, err := q.exec(ctx, dialect.Insert(tableUsers).Rows(rec).Prepared(true))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// GetUserByEmail looks an account up by its identifier.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row, err := q.queryRow(ctx, dialect.From(tableUsers).
		Select(userColumns...).
		Where(goqu.C(colEmail).Eq(email)).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return u, err
}

// ListUsers returns all accounts ordered by email.
func (q *queries) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := q.query(ctx, dialect.From(tableUsers).
		Select(userColumns...).
		Order(goqu.C(colEmail).Asc()).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TouchLastBorrow stamps the user's last borrow date.
func (q *queries) TouchLastBorrow(ctx context.Context, email string, day time.Time) error {
	_, err := q.exec(ctx, dialect.Update(tableUsers).
		Set(goqu.Record{colLastBorrowDate: domain.DateOf(day)}).
		Where(goqu.C(colEmail).Eq(email)).
		Prepared(true))
	return err
}
