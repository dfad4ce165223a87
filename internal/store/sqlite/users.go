package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

const userColumns = `email, role, password_hash, last_borrow_date, created_at`

func scanUser(scanner rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		role       string
		passwordH  sql.NullString
		lastBorrow sql.NullString
		createdAt  string
	)
	if err := scanner.Scan(&u.Email, &role, &passwordH, &lastBorrow, &createdAt); err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	u.PasswordHash = passwordH.String

	if lastBorrow.Valid && lastBorrow.String != "" {
		d, err := domain.ParseDate(lastBorrow.String)
		if err != nil {
			return nil, err
		}
		u.LastBorrowDate = &d
	}

	var err error
	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts an account.
func (q *queries) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	var lastBorrow sql.NullString
	if user.LastBorrowDate != nil {
		lastBorrow = nullString(domain.FormatDate(*user.LastBorrowDate))
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (email, role, password_hash, last_borrow_date, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.Email,
		string(user.Role),
		nullString(user.PasswordHash),
		lastBorrow,
		formatTime(user.CreatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// GetUserByEmail looks an account up by its identifier.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return u, err
}

// ListUsers returns all accounts ordered by email.
func (q *queries) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
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
	_, err := q.db.ExecContext(ctx, `UPDATE users SET last_borrow_date = ? WHERE email = ?`,
		domain.FormatDate(day), email)
	return err
}
