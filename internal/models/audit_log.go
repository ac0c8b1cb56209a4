package models

import "time"

// AuditLog is an immutable record of one processed assistant query. Rows are
// created once per query and never mutated or deleted by this subsystem.
type AuditLog struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	RequestID       string `gorm:"size:64;index"`
	UserID          uint   `gorm:"not null;index"`
	ClientID        uint   `gorm:"not null;index"`
	SessionID       string `gorm:"size:64;index"`
	Query           string `gorm:"type:text"`
	IntentType      string `gorm:"size:16"`
	Confidence      float64
	EntitiesAccess  string `gorm:"type:text"` // JSON array of entity codes
	ActionType      string `gorm:"size:24"`
	ActionResult    string `gorm:"size:16"`
	ResponsePreview string `gorm:"size:512"`
	ClientIP        string `gorm:"size:64"`
	UserAgent       string `gorm:"size:256"`
	CreatedAt       time.Time `gorm:"index"`
}
