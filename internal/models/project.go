package models

import "time"

// Project is the main unit of delivery inside a program.
type Project struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProgramID   uint   `gorm:"not null;index"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:24;default:Active;index"`
	Priority    string `gorm:"size:16;default:Medium"`
	StartDate   *time.Time
	EndDate     *time.Time
	IsDeleted   bool `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Program  Program   `gorm:"foreignKey:ProgramID"`
	UseCases []UseCase `gorm:"foreignKey:ProjectID"`
}

// UseCase captures a functional area within a project.
type UseCase struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID   uint   `gorm:"not null;index"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	IsDeleted   bool   `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Project Project     `gorm:"foreignKey:ProjectID"`
	Stories []UserStory `gorm:"foreignKey:UseCaseID"`
}

// UserStory is a deliverable slice of a use case; tasks hang off stories.
type UserStory struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UseCaseID   uint   `gorm:"not null;index"`
	Title       string `gorm:"size:256;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:24;default:Open;index"`
	Priority    string `gorm:"size:16;default:Medium"`
	IsDeleted   bool   `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	UseCase UseCase `gorm:"foreignKey:UseCaseID"`
	Tasks   []Task  `gorm:"foreignKey:UserStoryID"`
}
