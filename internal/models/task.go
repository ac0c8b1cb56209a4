package models

import "time"

// Task is the core work item in the hierarchy.
type Task struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	UserStoryID uint   `gorm:"not null;index"`
	Title       string `gorm:"size:256;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:24;default:Open;index"`
	Priority    string `gorm:"size:16;default:Medium;index"`
	AssigneeID  *uint  `gorm:"index"`
	UpdatedByID *uint
	DueDate     *time.Time `gorm:"index"`
	CompletedAt *time.Time
	IsDeleted   bool `gorm:"default:false;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	UserStory UserStory `gorm:"foreignKey:UserStoryID"`
	Assignee  *User     `gorm:"foreignKey:AssigneeID"`
	Subtasks  []Subtask `gorm:"foreignKey:TaskID"`
}

// Subtask is a checklist item under a task.
type Subtask struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TaskID     uint   `gorm:"not null;index"`
	Title      string `gorm:"size:256;not null"`
	Status     string `gorm:"size:24;default:Open"`
	AssigneeID *uint
	IsDeleted  bool `gorm:"default:false;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Task Task `gorm:"foreignKey:TaskID"`
}

// CommitLink records a commit or pull request attached to a task from chat.
type CommitLink struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	TaskID      uint   `gorm:"not null;index"`
	CommitSHA   string `gorm:"size:40;index"`
	PRNumber    int
	Title       string `gorm:"size:256"`
	URL         string `gorm:"size:512"`
	CreatedByID uint
	CreatedAt   time.Time

	Task Task `gorm:"foreignKey:TaskID"`
}
