package models

import "time"

// Client is the top-level tenant. Every user and every record in the
// hierarchy resolves to exactly one client; reads never cross this boundary.
type Client struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:128;not null"`
	Code      string `gorm:"size:16;uniqueIndex"`
	IsDeleted bool   `gorm:"default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Programs []Program `gorm:"foreignKey:ClientID"`
}

// Program groups projects under a client.
type Program struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ClientID    uint   `gorm:"not null;index"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	IsDeleted   bool   `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Client   Client    `gorm:"foreignKey:ClientID"`
	Projects []Project `gorm:"foreignKey:ProgramID"`
}
