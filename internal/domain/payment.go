package domain

import "time"

// Payment is a receipt for money applied against a student's fines.
// Amount is what was actually applied; any excess tendered is not kept.
type Payment struct {
	ID           string    `json:"id"`
	StudentEmail string    `json:"student_email"`
	Amount       int       `json:"amount"`
	PaidAt       time.Time `json:"paid_at"`
}

// Allocation is the share of a payment applied to one borrow record.
type Allocation struct {
	RecordID int64
	Amount   int
}

// AllocatePayment spreads amount over fines, oldest first. fines must be
// ordered by ascending record ID. Each fine is reduced toward zero before
// the next is touched; whatever remains after the last fine is dropped.
func AllocatePayment(fines []BorrowRecord, amount int) []Allocation {
	var out []Allocation
	remaining := amount
	for _, r := range fines {
		if remaining <= 0 {
			break
		}
		if r.Fine <= 0 {
			continue
		}
		applied := min(r.Fine, remaining)
		out = append(out, Allocation{RecordID: r.ID, Amount: applied})
		remaining -= applied
	}
	return out
}

// TotalAllocated sums the applied amounts.
func TotalAllocated(allocs []Allocation) int {
	total := 0
	for _, a := range allocs {
		total += a.Amount
	}
	return total
}
