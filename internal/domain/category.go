package domain

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
)

// Category is the kind of a catalog item. It decides the loan period and the
// fine rate.
type Category string

const (
	// CategoryBook is a printed book, lent for four weeks.
	CategoryBook Category = "Book"
	// CategoryCD is an audio disc, lent for one week.
	CategoryCD Category = "CD"
)

// Categories lists every supported category.
var Categories = []Category{CategoryBook, CategoryCD}

// foldCase case-folds s. A Caser may keep state, so each call gets its own.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(name string) (Category, error) {
	folded := foldCase(name)
	for _, c := range Categories {
		if foldCase(string(c)) == folded {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown item category %q", name)
}

// Valid reports whether c is a supported category.
func (c Category) Valid() bool {
	_, ok := loanPeriods[c]
	return ok
}

// loanPeriods holds the fixed number of days an item may be kept.
var loanPeriods = map[Category]int{
	CategoryBook: 28,
	CategoryCD:   7,
}

// LoanDays returns how many days an item of this category may be borrowed.
func (c Category) LoanDays() int {
	return loanPeriods[c]
}

// DueDate returns the date an item borrowed on borrowDate must be returned by.
func (c Category) DueDate(borrowDate time.Time) time.Time {
	return DateOf(borrowDate).AddDate(0, 0, c.LoanDays())
}
