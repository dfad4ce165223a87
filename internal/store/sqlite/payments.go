package sqlite

import (
	"context"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

// CreatePayment stores a receipt.
func (q *queries) CreatePayment(ctx context.Context, p *domain.Payment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payments (id, student_email, amount, paid_at)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.StudentEmail, p.Amount, formatTime(p.PaidAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// ListPayments returns a student's receipts, newest first.
func (q *queries) ListPayments(ctx context.Context, email string) ([]*domain.Payment, error) {
	return q.listPayments(ctx, `
		SELECT id, student_email, amount, paid_at
		FROM payments
		WHERE student_email = ?
		ORDER BY paid_at DESC, id`,
		email,
	)
}

// AllPayments returns every receipt, oldest first.
func (q *queries) AllPayments(ctx context.Context) ([]*domain.Payment, error) {
	return q.listPayments(ctx, `
		SELECT id, student_email, amount, paid_at
		FROM payments
		ORDER BY paid_at, id`,
	)
}

func (q *queries) listPayments(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		var (
			p      domain.Payment
			paidAt string
		)
		if err := rows.Scan(&p.ID, &p.StudentEmail, &p.Amount, &paidAt); err != nil {
			return nil, err
		}
		if p.PaidAt, err = parseTime(paidAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
