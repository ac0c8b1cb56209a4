package models

import "time"

// Comment is a free-text note attached to a bug or test case.
type Comment struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	EntityType string `gorm:"size:16;not null;index:idx_comment_entity"`
	EntityID   uint   `gorm:"not null;index:idx_comment_entity"`
	AuthorID   uint   `gorm:"not null"`
	Body       string `gorm:"type:text;not null"`
	IsDeleted  bool   `gorm:"default:false;index"`
	CreatedAt  time.Time

	Author User `gorm:"foreignKey:AuthorID"`
}

// Reminder is a scheduled nudge for a user about an entity. Delivery is
// handled by a separate polling job; this subsystem only creates records.
type Reminder struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	UserID     uint      `gorm:"not null;index"`
	EntityType string    `gorm:"size:16;not null"`
	EntityID   uint      `gorm:"not null"`
	Message    string    `gorm:"size:512"`
	RemindAt   time.Time `gorm:"not null;index"`
	CreatedVia string    `gorm:"size:16;default:web"`
	Delivered  bool      `gorm:"default:false;index"`
	CreatedAt  time.Time

	User User `gorm:"foreignKey:UserID"`
}
