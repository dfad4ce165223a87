// Package service holds the circulation business logic: borrowing,
// returning, fines, the catalog, accounts and reminders.
package service

import (
	"time"

	"github.com/campuslib/campuslib/internal/domain"
)

// Clock returns the current time. Services read today's date through it.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func (c Clock) today() time.Time {
	if c == nil {
		return domain.DateOf(time.Now())
	}
	return domain.DateOf(c())
}
