package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/store"
	"github.com/campuslib/campuslib/internal/store/sqlite"
)

// day0 is the first test day, a Monday.
var day0 = time.Date(2024, 9, 2, 9, 30, 0, 0, time.UTC)

// testClock is a settable clock shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by whole days.
func (c *testClock) Advance(days int) {
	c.Set(c.Now().AddDate(0, 0, days))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger.Discard().Logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// racingStore runs before at the start of every transaction, ahead of the
// service's own writes, as a concurrent writer would.
type racingStore struct {
	*sqlite.Store
	before func(ctx context.Context, tx store.Tx) error
}

func (s *racingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.InTx(ctx, func(tx store.Tx) error {
		if err := s.before(ctx, tx); err != nil {
			return err
		}
		return fn(tx)
	})
}

func setupBorrowService(t *testing.T) (*BorrowService, *sqlite.Store, *testClock) {
	t.Helper()

	st := newTestStore(t)
	clk := &testClock{now: day0}
	svc := NewBorrowService(st, clk.Now, logger.Discard().Logger)
	return svc, st, clk
}

func createTestItem(t *testing.T, st store.Store, isbn, name string, category domain.Category, qty int) {
	t.Helper()

	require.NoError(t, st.CreateItem(context.Background(), &domain.Item{
		ISBN:     isbn,
		Name:     name,
		Author:   "Test Author",
		Category: category,
		Quantity: qty,
	}))
}

func createTestUser(t *testing.T, st store.Store, email string, createdAt time.Time) {
	t.Helper()

	require.NoError(t, st.CreateUser(context.Background(), &domain.User{
		Email:     email,
		Role:      domain.RoleStudent,
		CreatedAt: createdAt,
	}))
}

func quantityOf(t *testing.T, st store.Store, isbn string) int {
	t.Helper()

	item, err := st.FindByISBN(context.Background(), isbn)
	require.NoError(t, err)
	return item.Quantity
}

// closeWithFine returns an active borrow straight through the store with a
// chosen fine, bypassing the unpaid-fine check.
func closeWithFine(t *testing.T, st store.Store, email, isbn string, fine int) {
	t.Helper()

	ok, err := st.MarkReturned(context.Background(), email, isbn, fine)
	require.NoError(t, err)
	require.True(t, ok)
}
