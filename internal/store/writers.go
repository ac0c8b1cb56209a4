package store

import (
	"context"
	"fmt"
	"time"

	"github.com/planhub/concierge/internal/models"
	"gorm.io/gorm"
)

// Reminders persists reminder records.
type Reminders struct {
	db *gorm.DB
}

// NewReminders creates a Reminders store.
func NewReminders(gdb *gorm.DB) (*Reminders, error) {
	if gdb == nil {
		return nil, fmt.Errorf("store: reminders: db is required")
	}
	return &Reminders{db: gdb}, nil
}

// Create inserts the reminder, filling in its ID.
func (s *Reminders) Create(ctx context.Context, r *models.Reminder) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("store: create reminder: %w", err)
	}
	return nil
}

// Due returns undelivered reminders whose time has arrived, oldest first.
func (s *Reminders) Due(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	var out []models.Reminder
	err := s.db.WithContext(ctx).
		Where("delivered = ? AND remind_at <= ?", false, now).
		Order("remind_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: due reminders: %w", err)
	}
	return out, nil
}

// MarkDelivered flags the reminder so it is not sent again.
func (s *Reminders) MarkDelivered(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ?", id).
		Update("delivered", true).Error
	if err != nil {
		return fmt.Errorf("store: mark reminder delivered: %w", err)
	}
	return nil
}

// Comments persists comment records.
type Comments struct {
	db *gorm.DB
}

// NewComments creates a Comments store.
func NewComments(gdb *gorm.DB) (*Comments, error) {
	if gdb == nil {
		return nil, fmt.Errorf("store: comments: db is required")
	}
	return &Comments{db: gdb}, nil
}

// Create inserts the comment and returns its ID.
func (s *Comments) Create(ctx context.Context, c *models.Comment) (uint, error) {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return 0, fmt.Errorf("store: create comment: %w", err)
	}
	return c.ID, nil
}
