package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

const (
	colAmount = "amount"
	colPaidAt = "paid_at"
)

// CreatePayment stores a receipt.
func (q *queries) CreatePayment(ctx context.Context, p *domain.Payment) error {
	_, err := q.exec(ctx, dialect.Insert(tablePayment).
		Rows(goqu.Record{
			colID:           p.ID,
			colStudentEmail: p.StudentEmail,
			colAmount:       p.Amount,
			colPaidAt:       p.PaidAt.UTC(),
		}).
		Prepared(true))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// ListPayments returns a student's receipts, newest first.
func (q *queries) ListPayments(ctx context.Context, email string) ([]*domain.Payment, error) {
	return q.listPayments(ctx, selectPayments().
		Where(goqu.C(colStudentEmail).Eq(email)).
		Order(goqu.C(colPaidAt).Desc(), goqu.C(colID).Asc()))
}

// AllPayments returns every receipt, oldest first.
func (q *queries) AllPayments(ctx context.Context) ([]*domain.Payment, error) {
	return q.listPayments(ctx, selectPayments().
		Order(goqu.C(colPaidAt).Asc(), goqu.C(colID).Asc()))
}

func selectPayments() *goqu.SelectDataset {
	return dialect.From(tablePayment).
		Select(colID, colStudentEmail, colAmount, colPaidAt).
		Prepared(true)
}

func (q *queries) listPayments(ctx context.Context, ds *goqu.SelectDataset) ([]*domain.Payment, error) {
	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.StudentEmail, &p.Amount, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
