// Package store defines the persistence contracts for the circulation server.
//
// Reads and single-statement writes go straight through a Store. Anything
// that must change several rows together runs inside InTx, which hands the
// callback a Tx bound to one database transaction:
//
//	err := st.InTx(ctx, func(tx store.Tx) error {
//	    if _, err := tx.RecordBorrow(ctx, rec); err != nil {
//	        return err
//	    }
//	    ok, err := tx.DecrementQuantity(ctx, rec.ISBN)
//	    if err == nil && !ok {
//	        err = store.ErrOutOfStock
//	    }
//	    return err
//	})
//
// The transaction commits only when the callback returns nil.
package store

import (
	"context"
	"time"

	"github.com/campuslib/campuslib/internal/domain"
)

// Ledger persists borrow records and the fines attached to them.
type Ledger interface {
	// RecordBorrow inserts an active record and returns its ID.
	RecordBorrow(ctx context.Context, rec *domain.BorrowRecord) (int64, error)
	// FindActiveBorrow returns the newest unreturned record for the pair, or ErrNotFound.
	FindActiveBorrow(ctx context.Context, email, isbn string) (*domain.BorrowRecord, error)
	// MarkReturned closes the newest active record for the pair with the given
	// fine. It reports false when no row was updated.
	MarkReturned(ctx context.Context, email, isbn string, fine int) (bool, error)
	// TotalFine sums all positive fines owed by the student.
	TotalFine(ctx context.Context, email string) (int, error)
	// UnpaidFines lists records with a positive fine, oldest first.
	UnpaidFines(ctx context.Context, email string) ([]domain.BorrowRecord, error)
	// ApplyPayment reduces fines oldest first and returns what was applied.
	ApplyPayment(ctx context.Context, email string, amount int) (int, error)
	// OverdueRecords lists active records whose due date is before today.
	OverdueRecords(ctx context.Context, today time.Time) ([]domain.BorrowRecord, error)
	// StudentsWithUnpaidFines lists distinct emails with any positive fine.
	StudentsWithUnpaidFines(ctx context.Context) ([]string, error)
	// ListBorrows returns every record for the student, newest first.
	ListBorrows(ctx context.Context, email string) ([]domain.BorrowRecord, error)
	// AllBorrows returns every record, oldest first.
	AllBorrows(ctx context.Context) ([]domain.BorrowRecord, error)
	// RestoreBorrow inserts a record exactly as given, ID included.
	RestoreBorrow(ctx context.Context, rec *domain.BorrowRecord) error
}

// Catalog persists items and their shelf quantities.
type Catalog interface {
	CreateItem(ctx context.Context, item *domain.Item) error
	// FindByISBN returns the item or ErrNotFound.
	FindByISBN(ctx context.Context, isbn string) (*domain.Item, error)
	ListItems(ctx context.Context) ([]*domain.Item, error)
	// DecrementQuantity takes one copy off the shelf. It reports false,
	// leaving the quantity untouched, when no copy is left.
	DecrementQuantity(ctx context.Context, isbn string) (bool, error)
	// IncrementQuantity puts one copy back. It reports false when the item
	// no longer exists.
	IncrementQuantity(ctx context.Context, isbn string) (bool, error)
	// AddQuantity restocks n copies.
	AddQuantity(ctx context.Context, isbn string, n int) error
	// DeleteItem removes an item from the catalog. Borrow records that
	// reference it are kept.
	DeleteItem(ctx context.Context, isbn string) error
}

// Users persists accounts. Only LastBorrowDate is written by circulation.
type Users interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	// TouchLastBorrow records the date of the user's latest borrow. A missing
	// user is not an error.
	TouchLastBorrow(ctx context.Context, email string, day time.Time) error
}

// Payments persists payment receipts.
type Payments interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	ListPayments(ctx context.Context, email string) ([]*domain.Payment, error)
	// AllPayments returns every receipt, oldest first.
	AllPayments(ctx context.Context) ([]*domain.Payment, error)
}

// Tx is the set of repositories bound to a single transaction.
type Tx interface {
	Ledger
	Catalog
	Users
	Payments
}

// Store is a live storage handle.
type Store interface {
	Tx

	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back on any error or panic.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	Close() error
}
