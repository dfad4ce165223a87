// Package notify delivers plain-text messages to students.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Validate rejects messages that cannot be delivered or would smuggle extra
// headers through the recipient or subject.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("message has no recipient")
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("message headers must be single-line")
	}
	return nil
}

// Notifier sends messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// FineReminder builds the reminder sent to a student with unpaid fines.
func FineReminder(to string, total int) Message {
	return Message{
		To:      to,
		Subject: "Library Fine Reminder",
		Body: "Dear Student,\n\n" +
			fmt.Sprintf("You have unpaid library fines of %d in your account. ", total) +
			"Please settle them as soon as possible to avoid borrowing restrictions.\n\n" +
			"Best regards,\nLibrary Admin",
	}
}

// LogNotifier writes messages to the log instead of sending them. It is used
// when no mail account is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	n.logger.Info("notification",
		"to", msg.To,
		"subject", msg.Subject,
		"body_length", len(msg.Body),
	)
	return nil
}
