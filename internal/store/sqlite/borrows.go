package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/store"
)

// borrowColumns is the ordered list of columns selected in borrow queries.
// Must match the scan order in scanBorrow.
const borrowColumns = `id, student_email, isbn, borrow_date, due_date, returned, fine`

func scanBorrow(scanner rowScanner) (*domain.BorrowRecord, error) {
	var (
		r          domain.BorrowRecord
		borrowDate string
		dueDate    string
		returned   int
	)
	if err := scanner.Scan(&r.ID, &r.StudentEmail, &r.ISBN, &borrowDate, &dueDate, &returned, &r.Fine); err != nil {
		return nil, err
	}

	var err error
	if r.BorrowDate, err = domain.ParseDate(borrowDate); err != nil {
		return nil, fmt.Errorf("parse borrow_date %q: %w", borrowDate, err)
	}
	if r.DueDate, err = domain.ParseDate(dueDate); err != nil {
		return nil, fmt.Errorf("parse due_date %q: %w", dueDate, err)
	}
	r.Returned = returned != 0
	return &r, nil
}

func (q *queries) listBorrows(ctx context.Context, query string, args ...any) ([]domain.BorrowRecord, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
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
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO borrow_records (student_email, isbn, borrow_date, due_date, returned, fine)
		VALUES (?, ?, ?, ?, 0, 0)`,
		rec.StudentEmail,
		rec.ISBN,
		domain.FormatDate(rec.BorrowDate),
		domain.FormatDate(rec.DueDate),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrAlreadyExists.WithCause(err)
		}
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// FindActiveBorrow returns the newest unreturned record for the pair.
func (q *queries) FindActiveBorrow(ctx context.Context, email, isbn string) (*domain.BorrowRecord, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+borrowColumns+`
		FROM borrow_records
		WHERE student_email = ? AND isbn = ? AND returned = 0
		ORDER BY id DESC
		LIMIT 1`,
		email, isbn,
	)
	r, err := scanBorrow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

// MarkReturned closes the newest active record for the pair.
func (q *queries) MarkReturned(ctx context.Context, email, isbn string, fine int) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE borrow_records SET returned = 1, fine = ?
		WHERE id = (
			SELECT id FROM borrow_records
			WHERE student_email = ? AND isbn = ? AND returned = 0
			ORDER BY id DESC
			LIMIT 1
		) AND returned = 0`,
		fine, email, isbn,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TotalFine sums the positive fines owed by a student.
func (q *queries) TotalFine(ctx context.Context, email string) (int, error) {
	var total int
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(fine), 0) FROM borrow_records
		WHERE student_email = ? AND fine > 0`,
		email,
	).Scan(&total)
	return total, err
}

// UnpaidFines lists records carrying a fine, oldest first.
func (q *queries) UnpaidFines(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	return q.listBorrows(ctx, `
		SELECT `+borrowColumns+`
		FROM borrow_records
		WHERE student_email = ? AND fine > 0
		ORDER BY id ASC`,
		email,
	)
}

// ApplyPayment reduces fines oldest first. Callers outside a transaction
// should go through Store.ApplyPayment.
func (q *queries) ApplyPayment(ctx context.Context, email string, amount int) (int, error) {
	fines, err := q.UnpaidFines(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("load unpaid fines: %w", err)
	}

	allocs := domain.AllocatePayment(fines, amount)
	for _, a := range allocs {
		res, err := q.db.ExecContext(ctx, `
			UPDATE borrow_records SET fine = fine - ?
			WHERE id = ? AND fine >= ?`,
			a.Amount, a.RecordID, a.Amount,
		)
		if err != nil {
			return 0, fmt.Errorf("apply %d to record %d: %w", a.Amount, a.RecordID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return 0, err
		} else if n == 0 {
			return 0, fmt.Errorf("record %d changed during payment", a.RecordID)
		}
	}

	return domain.TotalAllocated(allocs), nil
}

// OverdueRecords lists active records past their due date.
func (q *queries) OverdueRecords(ctx context.Context, today time.Time) ([]domain.BorrowRecord, error) {
	return q.listBorrows(ctx, `
		SELECT `+borrowColumns+`
		FROM borrow_records
		WHERE returned = 0 AND due_date < ?
		ORDER BY due_date ASC, id ASC`,
		domain.FormatDate(today),
	)
}

// StudentsWithUnpaidFines lists each student owing anything, once.
func (q *queries) StudentsWithUnpaidFines(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT student_email FROM borrow_records
		WHERE fine > 0
		ORDER BY student_email`)
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
	return q.listBorrows(ctx, `
		SELECT `+borrowColumns+`
		FROM borrow_records
		WHERE student_email = ?
		ORDER BY id DESC`,
		email,
	)
}

// AllBorrows returns every record in insertion order.
func (q *queries) AllBorrows(ctx context.Context) ([]domain.BorrowRecord, error) {
	return q.listBorrows(ctx, `SELECT `+borrowColumns+` FROM borrow_records ORDER BY id`)
}

// RestoreBorrow inserts a record with its original ID and state.
func (q *queries) RestoreBorrow(ctx context.Context, rec *domain.BorrowRecord) error {
	returned := 0
	if rec.Returned {
		returned = 1
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO borrow_records (id, student_email, isbn, borrow_date, due_date, returned, fine)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StudentEmail,
		rec.ISBN,
		domain.FormatDate(rec.BorrowDate),
		domain.FormatDate(rec.DueDate),
		returned,
		rec.Fine,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}
