package providers

import (
	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/config"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/notify"
	"github.com/campuslib/campuslib/internal/ratelimit"
)

// ProvideNotifier sends over SMTP when a mail account is configured and
// falls back to logging otherwise.
func ProvideNotifier(i do.Injector) (notify.Notifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Mail.Enabled() {
		log.Debug("mail disabled, notifications will be logged")
		return notify.NewLogNotifier(log.WithComponent("notify").Logger), nil
	}

	log.Debug("mail enabled", "host", cfg.Mail.Host, "port", cfg.Mail.Port, "from", cfg.Mail.From)
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	}), nil
}

// ReminderLimiterHandle wraps the reminder rate limiter with shutdown
// capability.
type ReminderLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *ReminderLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideReminderLimiter provides the per-domain limiter for reminder mail.
func ProvideReminderLimiter(i do.Injector) (*ReminderLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	limiter := ratelimit.New(cfg.Reminder.RatePerSecond, cfg.Reminder.Burst)
	return &ReminderLimiterHandle{KeyedRateLimiter: limiter}, nil
}
