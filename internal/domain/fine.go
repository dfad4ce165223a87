package domain

import (
	"fmt"
	"time"
)

// FineFunc computes the fine owed for a number of overdue days.
// overdueDays is never negative.
type FineFunc func(overdueDays int) int

// perDay returns a FineFunc charging rate units per overdue day.
func perDay(rate int) FineFunc {
	return func(overdueDays int) int {
		return overdueDays * rate
	}
}

// fineTable maps each category to its fine rule.
var fineTable = map[Category]FineFunc{
	CategoryBook: perDay(10),
	CategoryCD:   perDay(20),
}

// FineFor returns the fine rule for a category. An unknown category is a
// configuration error, not a borrowing failure.
func FineFor(c Category) (FineFunc, error) {
	fn, ok := fineTable[c]
	if !ok {
		return nil, fmt.Errorf("no fine rule for category %q", c)
	}
	return fn, nil
}

// OverdueDays returns how many whole days past dueDate today is.
// Returning on the due date itself is not overdue.
func OverdueDays(dueDate, today time.Time) int {
	if !DateOf(dueDate).Before(DateOf(today)) {
		return 0
	}
	return DaysBetween(dueDate, today)
}
