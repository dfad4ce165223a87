package domain

import "time"

// BorrowRecord is one lending of an item to a student.
//
// A record is created active (Returned false, Fine 0) and closed exactly once
// on return, when the fine is fixed. Records are never deleted; Fine is later
// reduced toward zero by payments.
type BorrowRecord struct {
	ID           int64     `json:"id"`
	StudentEmail string    `json:"student_email"`
	ISBN         string    `json:"isbn"`
	BorrowDate   time.Time `json:"borrow_date"`
	DueDate      time.Time `json:"due_date"`
	Returned     bool      `json:"returned"`
	Fine         int       `json:"fine"`
}

// NewBorrowRecord creates an active record for an item borrowed on
// borrowDate, with the due date fixed by the item's category.
func NewBorrowRecord(email, isbn string, category Category, borrowDate time.Time) *BorrowRecord {
	day := DateOf(borrowDate)
	return &BorrowRecord{
		StudentEmail: email,
		ISBN:         isbn,
		BorrowDate:   day,
		DueDate:      category.DueDate(day),
	}
}

// IsActive reports whether the item is still out.
func (r *BorrowRecord) IsActive() bool {
	return !r.Returned
}

// IsOverdue reports whether the record is active and past its due date.
func (r *BorrowRecord) IsOverdue(today time.Time) bool {
	return r.IsActive() && DateOf(r.DueDate).Before(DateOf(today))
}

// OverdueDays returns the number of days past due as of today, or 0.
func (r *BorrowRecord) OverdueDays(today time.Time) int {
	return OverdueDays(r.DueDate, today)
}
