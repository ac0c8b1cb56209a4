package models

import "time"

// User is a platform account scoped to a single client.
type User struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ClientID  uint   `gorm:"not null;index"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:256;uniqueIndex"`
	Role      string `gorm:"size:32;default:member"`
	// ChatHandle is the user's platform id on the connected chat bridge
	// (Slack member id or Discord snowflake), used to map inbound
	// messages to accounts.
	ChatHandle string `gorm:"size:64;index"`
	IsDeleted bool   `gorm:"default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Client Client `gorm:"foreignKey:ClientID"`
}
