package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

const (
	colID           = "id"
	colStudentEmail = "student_email"
	colISBN         = "isbn"
	colBorrowDate   = "borrow_date"
	colDueDate      = "due_date"
	colReturned     = "returned"
	colFine         = "fine"
)

// borrowColumns must match the scan order in scanBorrow.
var borrowColumns = []any{colID, colStudentEmail, colISBN, colBorrowDate, colDueDate, colReturned, colFine}

func scanBorrow(row pgx.Row) (*domain.BorrowRecord, error) {
	var r domain.BorrowRecord
	if err := row.Scan(&r.ID, &r.StudentEmail, &r.ISBN, &r.BorrowDate, &r.DueDate, &r.Returned, &r.Fine); err != nil {
		return nil, err
	}
	r.BorrowDate = domain.DateOf(r.BorrowDate)
	r.DueDate = domain.DateOf(r.DueDate)
	return &r, nil
}

func selectBorrows() *goqu.SelectDataset {
	return dialect.From(tableBorrows).Select(borrowColumns...).Prepared(true)
}

func activeFor(email, isbn string) goqu.Ex {
	return goqu.Ex{colStudentEmail: email, colISBN: isbn, colReturned: false}
}

func (q *queries) listBorrows(ctx context.Context, ds *goqu.SelectDataset) ([]domain.BorrowRecord, error) {
	rows, err := q.query(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BorrowRecord
	for rows.Next() {
		r, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// RecordBorrow inserts an active borrow record.
func (q *queries) RecordBorrow(ctx context.Context, rec *domain.BorrowRecord) (int64, error) {
	row, err := q.queryRow(ctx, dialect.Insert(tableBorrows).
		Rows(goqu.Record{
			colStudentEmail: rec.StudentEmail,
			colISBN:         rec.ISBN,
			colBorrowDate:   domain.DateOf(rec.BorrowDate),
			colDueDate:      domain.DateOf(rec.DueDate),
			colReturned:     false,
			colFine:         0,
		}).
		Returning(colID).
		Prepared(true))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrAlreadyExists.WithCause(err)
		}
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// FindActiveBorrow returns the newest unreturned record for the pair.
func (q *queries) FindActiveBorrow(ctx context.Context, email, isbn string) (*domain.BorrowRecord, error) {
	row, err := q.queryRow(ctx, selectBorrows().
		Where(activeFor(email, isbn)).
		Order(goqu.C(colID).Desc()).
		Limit(1))
	if err != nil {
		return nil, err
	}
	r, err := scanBorrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

// MarkReturned closes the newest active record for the pair. The outer
// returned check matters under READ COMMITTED: a waiting UPDATE rechecks
// its row after the first returner commits and must then match nothing.
func (q *queries) MarkReturned(ctx context.Context, email, isbn string, fine int) (bool, error) {
	newest := dialect.From(tableBorrows).
		Select(colID).
		Where(activeFor(email, isbn)).
		Order(goqu.C(colID).Desc()).
		Limit(1)

	n, err := q.exec(ctx, dialect.Update(tableBorrows).
		Set(goqu.Record{colReturned: true, colFine: fine}).
		Where(
			goqu.C(colID).Eq(newest),
			goqu.C(colReturned).IsFalse(),
		).
		Prepared(true))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TotalFine sums the positive fines owed by a student.
func (q *queries) TotalFine(ctx context.Context, email string) (int, error) {
	row, err := q.queryRow(ctx, dialect.From(tableBorrows).
		Select(goqu.COALESCE(goqu.SUM(colFine), goqu.L("0"))).
		Where(goqu.C(colStudentEmail).Eq(email), goqu.C(colFine).Gt(0)).
		Prepared(true))
	if err != nil {
		return 0, err
	}
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return int(total), nil
}

// UnpaidFines lists records carrying a fine, oldest first.
func (q *queries) UnpaidFines(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	return q.listBorrows(ctx, selectBorrows().
		Where(goqu.C(colStudentEmail).Eq(email), goqu.C(colFine).Gt(0)).
		Order(goqu.C(colID).Asc()))
}

// ApplyPayment locks the student's fine rows and reduces them oldest first.
// Callers outside a transaction should go through Store.ApplyPayment.
func (q *queries) ApplyPayment(ctx context.Context, email string, amount int) (int, error) {
	fines, err := q.listBorrows(ctx, selectBorrows().
		Where(goqu.C(colStudentEmail).Eq(email), goqu.C(colFine).Gt(0)).
		Order(goqu.C(colID).Asc()).
		ForUpdate(exp.Wait))
	if err != nil {
		return 0, fmt.Errorf("lock unpaid fines: %w", err)
	}

	allocs := domain.AllocatePayment(fines, amount)
	for _, a := range allocs {
		n, err := q.exec(ctx, dialect.Update(tableBorrows).
			Set(goqu.Record{colFine: goqu.L("? - ?", goqu.C(colFine), a.Amount)}).
			Where(goqu.C(colID).Eq(a.RecordID), goqu.C(colFine).Gte(a.Amount)).
			Prepared(true))
		if err != nil {
			return 0, fmt.Errorf("apply %d to record %d: %w", a.Amount, a.RecordID, err)
		}
		if n == 0 {
			return 0, fmt.Errorf("record %d changed during payment", a.RecordID)
		}
	}

	return domain.TotalAllocated(allocs), nil
}

// OverdueRecords lists active records past their due date.
func (q *queries) OverdueRecords(ctx context.Context, today time.Time) ([]domain.BorrowRecord, error) {
	return q.listBorrows(ctx, selectBorrows().
		Where(goqu.C(colReturned).IsFalse(), goqu.C(colDueDate).Lt(domain.DateOf(today))).
		Order(goqu.C(colDueDate).Asc(), goqu.C(colID).Asc()))
}

// StudentsWithUnpaidFines lists each student owing anything, once.
func (q *queries) StudentsWithUnpaidFines(ctx context.Context) ([]string, error) {
	rows, err := q.query(ctx, dialect.From(tableBorrows).
		Select(colStudentEmail).
		Distinct().
		Where(goqu.C(colFine).Gt(0)).
		Order(goqu.C(colStudentEmail).Asc()).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// ListBorrows returns a student's full history, newest first.
func (q *queries) ListBorrows(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	return q.listBorrows(ctx, selectBorrows().
		Where(goqu.C(colStudentEmail).Eq(email)).
		Order(goqu.C(colID).Desc()))
}

// AllBorrows returns every record in insertion order.
func (q *queries) AllBorrows(ctx context.Context) ([]domain.BorrowRecord, error) {
	return q.listBorrows(ctx, selectBorrows().Order(goqu.C(colID).Asc()))
}

// RestoreBorrow inserts a record with its original ID and moves the id
// sequence past it so later borrows do not collide.
func (q *queries) RestoreBorrow(ctx context.Context, rec *domain.BorrowRecord) error {
	_, err := q.exec(ctx, dialect.Insert(tableBorrows).
		Rows(goqu.Record{
			colID:           rec.ID,
			colStudentEmail: rec.StudentEmail,
			colISBN:         rec.ISBN,
			colBorrowDate:   domain.DateOf(rec.BorrowDate),
			colDueDate:      domain.DateOf(rec.DueDate),
			colReturned:     rec.Returned,
			colFine:         rec.Fine,
		}).
		Prepared(true))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	if err != nil {
		return err
	}

	_, err = q.db.Exec(ctx, `
		SELECT setval(pg_get_serial_sequence('borrow_records', 'id'),
			GREATEST((SELECT MAX(id) FROM borrow_records), 1))`)
	if err != nil {
		return fmt.Errorf("advance borrow id sequence: %w", err)
	}
	return nil
}
