package models

import "time"

// ChatSession tracks short-lived per-conversation context for the assistant:
// the last classified intent and recently mentioned entities, used to
// disambiguate follow-up queries. Sessions expire after inactivity.
type ChatSession struct {
	ID               string `gorm:"primaryKey;size:64"`
	UserID           uint   `gorm:"not null;index"`
	ClientID         uint   `gorm:"not null;index"`
	CurrentProjectID *uint
	LastIntent       string    `gorm:"size:16"`
	Mentioned        string    `gorm:"type:text"` // JSON array of resolved entity refs
	Status           string    `gorm:"size:16;default:active;index"`
	ExpiresAt        time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Messages []ChatMessage `gorm:"foreignKey:SessionID"`
}

// ChatMessage stores one role-tagged turn of a session's conversation
// history. The history is bounded on read, not on write.
type ChatMessage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:64;not null;index"`
	Sequence  int    `gorm:"not null"`
	Role      string `gorm:"size:16;not null"` // "user", "assistant"
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time

	Session ChatSession `gorm:"foreignKey:SessionID"`
}
