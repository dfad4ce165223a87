package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslib/campuslib/internal/domain"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/store"
)

func TestBorrowItem_DueDateByCategory(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 2)
	createTestItem(t, st, "333", "Kind of Blue", domain.CategoryCD, 1)

	tests := []struct {
		isbn string
		due  string
	}{
		{"111", "2024-09-30"},
		{"333", "2024-09-09"},
	}

	for _, tt := range tests {
		t.Run(tt.isbn, func(t *testing.T) {
			ok, err := svc.BorrowItem(ctx, "alice@x.com", tt.isbn)
			require.NoError(t, err)
			require.True(t, ok)

			rec, err := st.FindActiveBorrow(ctx, "alice@x.com", tt.isbn)
			require.NoError(t, err)
			assert.Equal(t, "2024-09-02", domain.FormatDate(rec.BorrowDate))
			assert.Equal(t, tt.due, domain.FormatDate(rec.DueDate))
			assert.False(t, rec.Returned)
			assert.Zero(t, rec.Fine)
		})
	}

	assert.Equal(t, 1, quantityOf(t, st, "111"))
	assert.Equal(t, 0, quantityOf(t, st, "333"))
}

func TestBorrowItem_TouchesLastBorrowDate(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)
	createTestUser(t, st, "alice@x.com", day0.AddDate(-2, 0, 0))
	clk.Advance(3)

	ok, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.True(t, ok)

	user, err := st.GetUserByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	require.NotNil(t, user.LastBorrowDate)
	assert.Equal(t, "2024-09-05", domain.FormatDate(*user.LastBorrowDate))
}

func TestBorrowItem_UnknownItem(t *testing.T) {
	svc, _, _ := setupBorrowService(t)

	ok, err := svc.BorrowItem(context.Background(), "alice@x.com", "999")

	assert.False(t, ok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrItemNotFound))
	assert.Contains(t, err.Error(), "999")
}

func TestBorrowItem_OutOfStock(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 0)

	ok, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = st.FindActiveBorrow(ctx, "alice@x.com", "111")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, quantityOf(t, st, "111"))
}

func TestBorrowItem_LastCopyTakenRollsBack(t *testing.T) {
	_, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)
	racing := &racingStore{Store: st, before: func(ctx context.Context, tx store.Tx) error {
		_, err := tx.DecrementQuantity(ctx, "111")
		return err
	}}
	svc := NewBorrowService(racing, clk.Now, logger.Discard().Logger)

	ok, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = st.FindActiveBorrow(ctx, "alice@x.com", "111")
	assert.ErrorIs(t, err, store.ErrNotFound, "record insert must roll back")
	assert.Equal(t, 1, quantityOf(t, st, "111"))
}

func TestBorrowItem_AlreadyBorrowed(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 3)

	ok, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, quantityOf(t, st, "111"))
}

func TestBorrowItem_LastCopyConcurrent(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)

	students := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com", "f@x.com"}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, email := range students {
		wg.Go(func() {
			ok, err := svc.BorrowItem(ctx, email, "111")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, quantityOf(t, st, "111"))
}

func TestReturnItem_LateBookFine(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)

	ok, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, quantityOf(t, st, "111"))

	clk.Advance(28 + 7)

	ok, err = svc.ReturnItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 1, quantityOf(t, st, "111"))
	assert.Equal(t, 70, svc.TotalFine(ctx, "alice@x.com"))
	assert.True(t, svc.HasUnpaidFine(ctx, "alice@x.com"))

	history, err := svc.History(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Returned)
	assert.Equal(t, 70, history[0].Fine)
}

func TestReturnItem_LateCDFine(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "333", "Kind of Blue", domain.CategoryCD, 1)

	_, err := svc.BorrowItem(ctx, "bob@x.com", "333")
	require.NoError(t, err)

	clk.Advance(7 + 3)

	ok, err := svc.ReturnItem(ctx, "bob@x.com", "333")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60, svc.TotalFine(ctx, "bob@x.com"))
}

func TestReturnItem_OnDueDateIsFree(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)

	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)

	clk.Advance(28)

	ok, err := svc.ReturnItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, svc.TotalFine(ctx, "alice@x.com"))
	assert.False(t, svc.HasUnpaidFine(ctx, "alice@x.com"))
}

func TestReturnItem_QuantityRoundTrip(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 4)

	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	_, err = svc.BorrowItem(ctx, "bob@x.com", "111")
	require.NoError(t, err)
	assert.Equal(t, 2, quantityOf(t, st, "111"))

	clk.Advance(10)
	for _, email := range []string{"alice@x.com", "bob@x.com"} {
		ok, err := svc.ReturnItem(ctx, email, "111")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 4, quantityOf(t, st, "111"))
}

func TestReturnItem_NoActiveBorrow(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)

	ok, err := svc.ReturnItem(ctx, "alice@x.com", "111")
	assert.False(t, ok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNoActiveBorrow))
}

func TestReturnItem_Twice(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)

	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)

	ok, err := svc.ReturnItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.ReturnItem(ctx, "alice@x.com", "111")
	assert.False(t, ok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNoActiveBorrow))
	assert.Equal(t, 1, quantityOf(t, st, "111"), "second return must not restock")
}

func TestReturnItem_ItemDeletedWhileBorrowed(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)

	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.NoError(t, st.DeleteItem(ctx, "111"))

	ok, err := svc.ReturnItem(ctx, "alice@x.com", "111")
	assert.False(t, ok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrItemNotFound))

	rec, err := st.FindActiveBorrow(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	assert.False(t, rec.Returned)
}

func TestReturnItem_ItemDeletedDuringReturn(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)
	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)

	racing := &racingStore{Store: st, before: func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteItem(ctx, "111")
	}}
	svc = NewBorrowService(racing, clk.Now, logger.Discard().Logger)

	ok, err := svc.ReturnItem(ctx, "alice@x.com", "111")
	assert.False(t, ok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrItemNotFound))

	rec, err := st.FindActiveBorrow(ctx, "alice@x.com", "111")
	require.NoError(t, err, "close must roll back")
	assert.False(t, rec.Returned)
	assert.Equal(t, 0, quantityOf(t, st, "111"))
}

func TestUnpaidFineBlocksBorrowAndReturn(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)
	createTestItem(t, st, "222", "The Clean Coder", domain.CategoryBook, 1)
	createTestItem(t, st, "444", "Programming Pearls", domain.CategoryBook, 1)

	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	_, err = svc.BorrowItem(ctx, "alice@x.com", "222")
	require.NoError(t, err)

	clk.Advance(30)
	ok, err := svc.ReturnItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 20, svc.TotalFine(ctx, "alice@x.com"))

	ok, err = svc.BorrowItem(ctx, "alice@x.com", "444")
	assert.False(t, ok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnpaidFine))
	assert.Equal(t, 1, quantityOf(t, st, "444"))

	ok, err = svc.ReturnItem(ctx, "alice@x.com", "222")
	assert.False(t, ok)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnpaidFine))

	_, err = svc.PayFine(ctx, "alice@x.com", 20)
	require.NoError(t, err)

	ok, err = svc.ReturnItem(ctx, "alice@x.com", "222")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmailsAreNormalised(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)

	ok, err := svc.BorrowItem(ctx, "  Alice@X.com", "111")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.ReturnItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPayFine_OldestFirst(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "1", "First", domain.CategoryBook, 1)
	createTestItem(t, st, "2", "Second", domain.CategoryBook, 1)

	for _, isbn := range []string{"1", "2"} {
		ok, err := svc.BorrowItem(ctx, "alice@x.com", isbn)
		require.NoError(t, err)
		require.True(t, ok)
	}
	closeWithFine(t, st, "alice@x.com", "1", 30)
	closeWithFine(t, st, "alice@x.com", "2", 20)

	receipt, err := svc.PayFine(ctx, "alice@x.com", 35)
	require.NoError(t, err)
	assert.Equal(t, 35, receipt.Amount)
	assert.Regexp(t, `^pay_`, receipt.ID)
	assert.Equal(t, 15, svc.TotalFine(ctx, "alice@x.com"))

	history, err := svc.History(ctx, "alice@x.com")
	require.NoError(t, err)
	fines := map[string]int{}
	for _, rec := range history {
		fines[rec.ISBN] = rec.Fine
	}
	assert.Equal(t, map[string]int{"1": 0, "2": 15}, fines)

	// Excess over what is owed is dropped.
	receipt, err = svc.PayFine(ctx, "alice@x.com", 100)
	require.NoError(t, err)
	assert.Equal(t, 15, receipt.Amount)
	assert.Zero(t, svc.TotalFine(ctx, "alice@x.com"))

	payments, err := svc.PaymentHistory(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.ElementsMatch(t, []int{35, 15}, []int{payments[0].Amount, payments[1].Amount})
}

func TestPayFine_InvalidAmount(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)
	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	closeWithFine(t, st, "alice@x.com", "111", 50)

	for _, amount := range []int{0, -5} {
		receipt, err := svc.PayFine(ctx, "alice@x.com", amount)
		assert.Nil(t, receipt)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidAmount))
	}

	assert.Equal(t, 50, svc.TotalFine(ctx, "alice@x.com"))
	payments, err := svc.PaymentHistory(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestPayFine_NothingOwed(t *testing.T) {
	svc, _, _ := setupBorrowService(t)
	ctx := context.Background()

	receipt, err := svc.PayFine(ctx, "alice@x.com", 25)
	require.NoError(t, err)
	assert.Zero(t, receipt.Amount)
	assert.Empty(t, receipt.ID)

	payments, err := svc.PaymentHistory(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestOverdueStudents(t *testing.T) {
	svc, st, clk := setupBorrowService(t)
	ctx := context.Background()

	assert.NotNil(t, svc.OverdueStudents(ctx))
	assert.Empty(t, svc.OverdueStudents(ctx))

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)
	createTestItem(t, st, "333", "Kind of Blue", domain.CategoryCD, 2)

	_, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	require.NoError(t, err)
	_, err = svc.BorrowItem(ctx, "bob@x.com", "333")
	require.NoError(t, err)

	// The CD is due today: not yet overdue.
	clk.Advance(7)
	assert.Empty(t, svc.OverdueStudents(ctx))

	clk.Advance(1)
	overdue := svc.OverdueStudents(ctx)
	require.Len(t, overdue, 1)
	assert.Equal(t, "bob@x.com", overdue[0].StudentEmail)
	assert.Equal(t, "333", overdue[0].ISBN)

	// Returned records drop out.
	ok, err := svc.ReturnItem(ctx, "bob@x.com", "333")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, svc.OverdueStudents(ctx))
}

func TestStudentsWithUnpaidFines(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	assert.Equal(t, []string{}, svc.StudentsWithUnpaidFines(ctx))

	createTestItem(t, st, "1", "First", domain.CategoryBook, 5)
	createTestItem(t, st, "2", "Second", domain.CategoryBook, 5)

	for _, email := range []string{"zoe@x.com", "alice@x.com", "mia@x.com"} {
		for _, isbn := range []string{"1", "2"} {
			_, err := svc.BorrowItem(ctx, email, isbn)
			require.NoError(t, err)
		}
	}
	closeWithFine(t, st, "zoe@x.com", "1", 10)
	closeWithFine(t, st, "zoe@x.com", "2", 10)
	closeWithFine(t, st, "alice@x.com", "1", 5)
	closeWithFine(t, st, "mia@x.com", "1", 0)

	assert.Equal(t, []string{"alice@x.com", "zoe@x.com"}, svc.StudentsWithUnpaidFines(ctx))
}

func TestStorageFaultsAreSwallowed(t *testing.T) {
	svc, st, _ := setupBorrowService(t)
	ctx := context.Background()

	createTestItem(t, st, "111", "Clean Code", domain.CategoryBook, 1)
	require.NoError(t, st.Close())

	ok, err := svc.BorrowItem(ctx, "alice@x.com", "111")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ReturnItem(ctx, "alice@x.com", "111")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.Zero(t, svc.TotalFine(ctx, "alice@x.com"))
	assert.Equal(t, []domain.BorrowRecord{}, svc.OverdueStudents(ctx))
	assert.Equal(t, []string{}, svc.StudentsWithUnpaidFines(ctx))

	_, err = svc.PayFine(ctx, "alice@x.com", 10)
	assert.Equal(t, domainerrors.CodeInternal, domainerrors.CodeOf(err))
}
