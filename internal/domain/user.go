package domain

import (
	"strings"
	"time"
)

// Role represents the user's permission level in the system.
type Role string

const (
	// RoleAdmin manages accounts.
	RoleAdmin Role = "admin"
	// RoleLibrarian manages inventory and sees circulation reports.
	RoleLibrarian Role = "librarian"
	// RoleStudent borrows items and pays fines.
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLibrarian, RoleStudent:
		return true
	}
	return false
}

// User is an account. Email is the identifier.
type User struct {
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	PasswordHash   string     `json:"-"`
	LastBorrowDate *time.Time `json:"last_borrow_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsStudent returns true if the user may borrow items.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// CanManageInventory returns true for librarians and admins.
func (u *User) CanManageInventory() bool {
	return u.Role == RoleLibrarian || u.Role == RoleAdmin
}

// NormalizeEmail trims and case-folds an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return foldCase(strings.TrimSpace(email))
}

// InactiveSince reports whether the account has not borrowed anything since
// cutoff. Accounts that never borrowed count from their creation date.
func (u *User) InactiveSince(cutoff time.Time) bool {
	if u.LastBorrowDate == nil {
		return u.CreatedAt.Before(cutoff)
	}
	return DateOf(*u.LastBorrowDate).Before(DateOf(cutoff))
}
