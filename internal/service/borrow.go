package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/campuslib/campuslib/internal/domain"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/id"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/store"
)

// BorrowService runs the borrow/return state machine and the fine ledger.
//
// Business rejections (unpaid fine, unknown item, nothing to return, bad
// amount) come back as coded errors. Storage faults are logged here and
// reported as a plain false or an empty result.
type BorrowService struct {
	store  store.Store
	clock  Clock
	logger *slog.Logger
}

// NewBorrowService creates a new borrow service.
func NewBorrowService(st store.Store, clock Clock, logger *slog.Logger) *BorrowService {
	if clock == nil {
		clock = SystemClock
	}
	return &BorrowService{
		store:  st,
		clock:  clock,
		logger: logger,
	}
}

// BorrowItem lends one copy of isbn to the student. It reports false without
// an error when no copy is left, the student already has this item out, or
// storage failed.
func (s *BorrowService) BorrowItem(ctx context.Context, email, isbn string) (bool, error) {
	email = domain.NormalizeEmail(email)

	if ok, err := s.checkNoFine(ctx, email); !ok {
		return false, err
	}

	item, err := s.store.FindByISBN(ctx, isbn)
	if errors.Is(err, store.ErrNotFound) {
		return false, domainerrors.ItemNotFoundf(isbn)
	}
	if err != nil {
		s.logger.Error("borrow: load item failed", "isbn", isbn, logger.Err(err))
		return false, nil
	}
	if !item.InStock() {
		s.logger.Info("borrow rejected: out of stock", "email", email, "isbn", isbn)
		return false, nil
	}

	today := s.clock.today()
	rec := domain.NewBorrowRecord(email, isbn, item.Category, today)

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		recID, err := tx.RecordBorrow(ctx, rec)
		if err != nil {
			return fmt.Errorf("record borrow: %w", err)
		}
		rec.ID = recID

		ok, err := tx.DecrementQuantity(ctx, isbn)
		if err != nil {
			return fmt.Errorf("decrement quantity: %w", err)
		}
		if !ok {
			return store.ErrOutOfStock
		}

		if err := tx.TouchLastBorrow(ctx, email, today); err != nil {
			return fmt.Errorf("touch last borrow: %w", err)
		}
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info("item borrowed",
			"email", email,
			"isbn", isbn,
			"record_id", rec.ID,
			"due", domain.FormatDate(rec.DueDate),
		)
		return true, nil
	case errors.Is(err, store.ErrOutOfStock):
		s.logger.Info("borrow rejected: out of stock", "email", email, "isbn", isbn)
		return false, nil
	case errors.Is(err, store.ErrAlreadyExists):
		s.logger.Info("borrow rejected: already borrowed", "email", email, "isbn", isbn)
		return false, nil
	default:
		s.logger.Error("borrow failed", "email", email, "isbn", isbn, logger.Err(err))
		return false, nil
	}
}

// ReturnItem closes the student's active borrow of isbn and fixes its fine.
// It reports false without an error when the record was already closed by a
// concurrent return or storage failed.
func (s *BorrowService) ReturnItem(ctx context.Context, email, isbn string) (bool, error) {
	email = domain.NormalizeEmail(email)

	if ok, err := s.checkNoFine(ctx, email); !ok {
		return false, err
	}

	rec, err := s.store.FindActiveBorrow(ctx, email, isbn)
	if errors.Is(err, store.ErrNotFound) {
		return false, domainerrors.ErrNoActiveBorrow
	}
	if err != nil {
		s.logger.Error("return: load borrow failed", "email", email, "isbn", isbn, logger.Err(err))
		return false, nil
	}

	overdueDays := rec.OverdueDays(s.clock.today())

	item, err := s.store.FindByISBN(ctx, isbn)
	if errors.Is(err, store.ErrNotFound) {
		return false, domainerrors.ItemNotFoundf(isbn)
	}
	if err != nil {
		s.logger.Error("return: load item failed", "isbn", isbn, logger.Err(err))
		return false, nil
	}

	rule, err := domain.FineFor(item.Category)
	if err != nil {
		return false, domainerrors.Validation(err.Error())
	}
	fine := rule(overdueDays)

	var returned bool
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		ok, err := tx.MarkReturned(ctx, email, isbn, fine)
		if err != nil {
			return fmt.Errorf("mark returned: %w", err)
		}
		if !ok {
			return nil
		}
		ok, err = tx.IncrementQuantity(ctx, isbn)
		if err != nil {
			return fmt.Errorf("increment quantity: %w", err)
		}
		if !ok {
			return domainerrors.ItemNotFoundf(isbn)
		}
		returned = true
		return nil
	})
	if errors.Is(err, domainerrors.ErrItemNotFound) {
		return false, err
	}
	if err != nil {
		s.logger.Error("return failed", "email", email, "isbn", isbn, logger.Err(err))
		return false, nil
	}

	if !returned {
		s.logger.Info("return found no active record", "email", email, "isbn", isbn)
		return false, nil
	}

	s.logger.Info("item returned",
		"email", email,
		"isbn", isbn,
		"overdue_days", overdueDays,
		"fine", fine,
	)
	return true, nil
}

// checkNoFine reports whether the student may borrow or return. An
// outstanding fine is an error; a storage fault is logged and reported as
// not ok with a nil error.
func (s *BorrowService) checkNoFine(ctx context.Context, email string) (bool, error) {
	total, err := s.store.TotalFine(ctx, email)
	if err != nil {
		s.logger.Error("load total fine failed", "email", email, logger.Err(err))
		return false, nil
	}
	if total > 0 {
		s.logger.Debug("rejected: unpaid fine", "email", email, "total", total)
		return false, domainerrors.ErrUnpaidFine
	}
	return true, nil
}

// PayFine applies amount to the student's fines, oldest first, and returns a
// receipt for what was applied. Any excess is discarded. When nothing was
// owed the receipt has a zero Amount and no ID, and nothing is stored.
func (s *BorrowService) PayFine(ctx context.Context, email string, amount int) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, domainerrors.ErrInvalidAmount
	}
	email = domain.NormalizeEmail(email)

	receipt := &domain.Payment{
		StudentEmail: email,
		PaidAt:       s.clock().UTC(),
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		applied, err := tx.ApplyPayment(ctx, email, amount)
		if err != nil {
			return fmt.Errorf("apply payment: %w", err)
		}
		if applied == 0 {
			return nil
		}

		paymentID, err := id.NewPaymentID()
		if err != nil {
			return fmt.Errorf("generate payment id: %w", err)
		}
		receipt.ID = paymentID
		receipt.Amount = applied
		return tx.CreatePayment(ctx, receipt)
	})
	if err != nil {
		s.logger.Error("payment failed", "email", email, "amount", amount, logger.Err(err))
		return nil, domainerrors.ErrInternal.WithCause(err)
	}

	s.logger.Info("payment applied",
		"email", email,
		"tendered", amount,
		"applied", receipt.Amount,
		"payment_id", receipt.ID,
	)
	return receipt, nil
}

// TotalFine returns what the student owes. Storage faults yield 0.
func (s *BorrowService) TotalFine(ctx context.Context, email string) int {
	email = domain.NormalizeEmail(email)
	total, err := s.store.TotalFine(ctx, email)
	if err != nil {
		s.logger.Error("load total fine failed", "email", email, logger.Err(err))
		return 0
	}
	return total
}

// HasUnpaidFine reports whether the student owes anything.
func (s *BorrowService) HasUnpaidFine(ctx context.Context, email string) bool {
	return s.TotalFine(ctx, email) > 0
}

// OverdueStudents lists active borrows past their due date as of today.
func (s *BorrowService) OverdueStudents(ctx context.Context) []domain.BorrowRecord {
	recs, err := s.store.OverdueRecords(ctx, s.clock.today())
	if err != nil {
		s.logger.Error("load overdue records failed", logger.Err(err))
		return []domain.BorrowRecord{}
	}
	if recs == nil {
		return []domain.BorrowRecord{}
	}
	return recs
}

// StudentsWithUnpaidFines lists the distinct students owing a fine, sorted.
func (s *BorrowService) StudentsWithUnpaidFines(ctx context.Context) []string {
	emails, err := s.store.StudentsWithUnpaidFines(ctx)
	if err != nil {
		s.logger.Error("load students with fines failed", logger.Err(err))
		return []string{}
	}
	if emails == nil {
		return []string{}
	}
	slices.Sort(emails)
	return emails
}

// History lists every borrow of the student, newest first.
func (s *BorrowService) History(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	email = domain.NormalizeEmail(email)
	recs, err := s.store.ListBorrows(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list borrows: %w", err)
	}
	return recs, nil
}

// PaymentHistory lists the student's payment receipts, newest first.
func (s *BorrowService) PaymentHistory(ctx context.Context, email string) ([]*domain.Payment, error) {
	email = domain.NormalizeEmail(email)
	payments, err := s.store.ListPayments(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
