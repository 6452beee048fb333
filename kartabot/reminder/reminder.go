// Package reminder periodically nudges users whose draw cooldown has just
// elapsed. Disabled by default; enable with [reminder] enabled = true.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/makspace/kartabot/kartabot/database/models"
	"github.com/makspace/kartabot/kartabot/logger"
)

const (
	sweepInterval = time.Hour

	// The nudge window opens one hour after the cooldown elapses and
	// stays open for ~17 minutes, so an hourly sweep hits each user at
	// most once.
	dueAfterSeconds  = 90000
	dueBeforeSeconds = 91000
)

const msgReminder = "🌿 Тобі вже доступна нова карта дня.\n" +
	"Можеш отримати її прямо зараз ✨"

// CooldownLister is the slice of the draw repository the sweep needs.
type CooldownLister interface {
	ListCooldowns(ctx context.Context) ([]models.DailyCard, error)
}

type Service struct {
	store CooldownLister
	send  func(telegramID int64, text string) error
	now   func() int64
}

func New(store CooldownLister, send func(telegramID int64, text string) error) *Service {
	return &Service{
		store: store,
		send:  send,
		now:   func() int64 { return time.Now().Unix() },
	}
}

// Start runs the hourly sweep until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.LogSystem("Reminder sweep started")

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	now := s.now()

	cooldowns, err := s.store.ListCooldowns(ctx)
	if err != nil {
		logger.LogError("Reminder sweep failed to list cooldowns", err)
		return
	}

	for _, cooldown := range cooldowns {
		if !Due(now, cooldown.LastCardTime) {
			continue
		}
		if err := s.send(cooldown.TelegramID, msgReminder); err != nil {
			logger.LogError("Failed to send reminder", err,
				slog.Int64("user_id", cooldown.TelegramID))
		}
	}
}

// Due reports whether a user who last drew at lastTime should be nudged now.
func Due(now, lastTime int64) bool {
	elapsed := now - lastTime
	return elapsed >= dueAfterSeconds && elapsed < dueBeforeSeconds
}
