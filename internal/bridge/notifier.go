package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/planhub/concierge/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReminderSource yields undelivered reminders whose time has arrived.
type ReminderSource interface {
	Due(ctx context.Context, now time.Time) ([]models.Reminder, error)
	MarkDelivered(ctx context.Context, id uint) error
}

// Notifier delivers due reminders as direct messages over a chat adapter.
// Users without a linked chat handle keep their reminders pending until a
// handle is set.
type Notifier struct {
	adapter   Adapter
	reminders ReminderSource
	db        *gorm.DB
	interval  time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

// NotifierOpts holds parameters for creating a Notifier.
type NotifierOpts struct {
	Adapter   Adapter
	Reminders ReminderSource
	DB        *gorm.DB
	Interval  time.Duration // poll interval; defaults to 1m
	Clock     func() time.Time
	Logger    *zap.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(opts NotifierOpts) (*Notifier, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bridge: notifier: adapter is required")
	}
	if opts.Reminders == nil {
		return nil, fmt.Errorf("bridge: notifier: reminder source is required")
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("bridge: notifier: db is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		adapter:   opts.Adapter,
		reminders: opts.Reminders,
		db:        opts.DB,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Run polls for due reminders until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Deliver(ctx)
		}
	}
}

// Deliver sends every currently due reminder. Failures leave the reminder
// pending for the next poll.
func (n *Notifier) Deliver(ctx context.Context) {
	due, err := n.reminders.Due(ctx, n.clock())
	if err != nil {
		n.logger.Error("load due reminders", zap.Error(err))
		return
	}
	for _, r := range due {
		var user models.User
		if err := n.db.WithContext(ctx).First(&user, r.UserID).Error; err != nil {
			n.logger.Warn("reminder user lookup", zap.Uint("reminder_id", r.ID), zap.Error(err))
			continue
		}
		if user.ChatHandle == "" {
			continue
		}
		err := n.adapter.Send(ctx, Outbound{
			ChannelID: user.ChatHandle,
			Text:      fmt.Sprintf("Reminder: %s", r.Message),
		})
		if err != nil {
			n.logger.Warn("deliver reminder", zap.Uint("reminder_id", r.ID), zap.Error(err))
			continue
		}
		if err := n.reminders.MarkDelivered(ctx, r.ID); err != nil {
			n.logger.Error("mark reminder delivered", zap.Uint("reminder_id", r.ID), zap.Error(err))
		}
	}
}
