package backup

import (
	"time"

	"github.com/campuslib/campuslib/internal/domain"
)

// FormatVersion is the archive format version.
const FormatVersion = "1.0"

// Archive entry names.
const (
	manifestFile = "manifest.json"
	itemsFile    = "entities/items.jsonl"
	usersFile    = "entities/users.jsonl"
	borrowsFile  = "entities/borrows.jsonl"
	paymentsFile = "entities/payments.jsonl"
)

// Manifest describes an archive. It is written last so the counts are final.
type Manifest struct {
	Version   string       `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	Driver    string       `json:"driver,omitempty"`
	Counts    EntityCounts `json:"counts"`
}

// EntityCounts tracks how many rows of each kind an archive holds.
type EntityCounts struct {
	Items    int `json:"items"`
	Users    int `json:"users"`
	Borrows  int `json:"borrows"`
	Payments int `json:"payments"`
}

// Total returns the sum of all counts.
func (c EntityCounts) Total() int {
	return c.Items + c.Users + c.Borrows + c.Payments
}

// userRecord is the archived form of an account. Unlike domain.User it
// carries the password hash.
type userRecord struct {
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	PasswordHash   string      `json:"password_hash,omitempty"`
	LastBorrowDate *time.Time  `json:"last_borrow_date,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func toUserRecord(u *domain.User) userRecord {
	return userRecord{
		Email:          u.Email,
		Role:           u.Role,
		PasswordHash:   u.PasswordHash,
		LastBorrowDate: u.LastBorrowDate,
		CreatedAt:      u.CreatedAt,
	}
}

func (r userRecord) user() *domain.User {
	return &domain.User{
		Email:          r.Email,
		Role:           r.Role,
		PasswordHash:   r.PasswordHash,
		LastBorrowDate: r.LastBorrowDate,
		CreatedAt:      r.CreatedAt,
	}
}
