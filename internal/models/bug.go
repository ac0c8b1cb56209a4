package models

import "time"

// Bug is a defect reported against a project. Unlike tasks, bugs carry a
// reporter and an optional QA owner in addition to the assignee; all three
// may update its status.
type Bug struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID   uint   `gorm:"not null;index"`
	Title       string `gorm:"size:256;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:24;default:Open;index"`
	Priority    string `gorm:"size:16;default:Medium;index"`
	Severity    string `gorm:"size:16;default:Minor;index"`
	AssigneeID  *uint  `gorm:"index"`
	ReporterID  *uint  `gorm:"index"`
	QAOwnerID   *uint
	UpdatedByID *uint
	ReopenCount int `gorm:"default:0"`
	ClosedAt    *time.Time
	IsDeleted   bool `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Project  Project `gorm:"foreignKey:ProjectID"`
	Assignee *User   `gorm:"foreignKey:AssigneeID"`
	Reporter *User   `gorm:"foreignKey:ReporterID"`
}

// TestCase is a scripted verification step for a project.
type TestCase struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID   uint   `gorm:"not null;index"`
	Title       string `gorm:"size:256;not null"`
	Steps       string `gorm:"type:text"`
	Expected    string `gorm:"type:text"`
	Status      string `gorm:"size:24;default:Draft"`
	IsDeleted   bool   `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Project Project `gorm:"foreignKey:ProjectID"`
}
