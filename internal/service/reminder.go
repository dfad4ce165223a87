package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/notify"
	"github.com/campuslib/campuslib/internal/ratelimit"
)

// ReminderReport summarises one reminder run.
type ReminderReport struct {
	Recipients int      `json:"recipients"`
	Sent       int      `json:"sent"`
	Failed     []string `json:"failed,omitempty"`
}

// ReminderService emails students who owe fines.
type ReminderService struct {
	borrows  *BorrowService
	notifier notify.Notifier
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
}

// NewReminderService creates a new reminder service. Sends are throttled per
// recipient mail domain by limiter.
func NewReminderService(borrows *BorrowService, notifier notify.Notifier, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *ReminderService {
	return &ReminderService{
		borrows:  borrows,
		notifier: notifier,
		limiter:  limiter,
		logger:   logger,
	}
}

// SendFineReminders sends one reminder to every student with an unpaid fine.
// A failed send is recorded in the report and does not stop the run; only a
// cancelled context does.
func (s *ReminderService) SendFineReminders(ctx context.Context) (ReminderReport, error) {
	if err := ctx.Err(); err != nil {
		return ReminderReport{}, err
	}

	emails := s.borrows.StudentsWithUnpaidFines(ctx)
	report := ReminderReport{Recipients: len(emails)}

	if len(emails) == 0 {
		s.logger.Info("no students with unpaid fines")
		return report, nil
	}

	for _, email := range emails {
		if err := s.limiter.Wait(ctx, mailDomain(email)); err != nil {
			return report, err
		}

		total := s.borrows.TotalFine(ctx, email)
		if err := s.notifier.Send(ctx, notify.FineReminder(email, total)); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			s.logger.Warn("fine reminder failed", "email", email, logger.Err(err))
			report.Failed = append(report.Failed, email)
			continue
		}
		report.Sent++
	}

	s.logger.Info("fine reminders sent",
		"recipients", report.Recipients,
		"sent", report.Sent,
		"failed", len(report.Failed),
	)
	return report, nil
}

// mailDomain returns the part of an address after the last @.
func mailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return email
}
