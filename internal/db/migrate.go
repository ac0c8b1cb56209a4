package db

import (
	"fmt"

	"github.com/planhub/concierge/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model the assistant core touches, in
// dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Client{},
		&models.Program{},
		&models.User{},
		&models.Project{},
		&models.UseCase{},
		&models.UserStory{},
		&models.Task{},
		&models.Subtask{},
		&models.Bug{},
		&models.TestCase{},
		&models.Comment{},
		&models.Reminder{},
		&models.CommitLink{},
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.AuditLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
