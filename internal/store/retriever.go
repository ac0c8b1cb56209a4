// Package store implements client-scoped read access to the entity
// hierarchy for the assistant. Every read compares the record's resolved
// client against the acting user's client; a mismatch surfaces as
// ErrNotFound so that cross-tenant probing cannot distinguish "absent" from
// "forbidden". Soft-deleted records are excluded everywhere.
package store

import (
	"errors"
	"fmt"

	"github.com/planhub/concierge/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned for records that do not exist, are soft-deleted,
// or belong to another client.
var ErrNotFound = errors.New("store: not found")

// Retriever provides point lookups, filtered lists, and aggregates over the
// hierarchy, always scoped to the acting user's client.
type Retriever struct {
	db *gorm.DB
}

// RetrieverOpts holds parameters for creating a Retriever.
type RetrieverOpts struct {
	DB *gorm.DB
}

// NewRetriever creates a Retriever.
func NewRetriever(opts RetrieverOpts) (*Retriever, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("store: retriever: db is required")
	}
	return &Retriever{db: opts.DB}, nil
}

// taskScope joins tasks up the hierarchy to programs and restricts to the
// user's client, excluding soft-deleted tasks.
func (r *Retriever) taskScope(user models.User) *gorm.DB {
	return r.db.Model(&models.Task{}).
		Joins("JOIN user_stories ON user_stories.id = tasks.user_story_id").
		Joins("JOIN use_cases ON use_cases.id = user_stories.use_case_id").
		Joins("JOIN projects ON projects.id = use_cases.project_id").
		Joins("JOIN programs ON programs.id = projects.program_id").
		Where("programs.client_id = ?", user.ClientID).
		Where("tasks.is_deleted = ?", false)
}

// bugScope joins bugs through projects to programs, client-restricted.
func (r *Retriever) bugScope(user models.User) *gorm.DB {
	return r.db.Model(&models.Bug{}).
		Joins("JOIN projects ON projects.id = bugs.project_id").
		Joins("JOIN programs ON programs.id = projects.program_id").
		Where("programs.client_id = ?", user.ClientID).
		Where("bugs.is_deleted = ?", false)
}

// projectScope joins projects to programs, client-restricted.
func (r *Retriever) projectScope(user models.User) *gorm.DB {
	return r.db.Model(&models.Project{}).
		Joins("JOIN programs ON programs.id = projects.program_id").
		Where("programs.client_id = ?", user.ClientID).
		Where("projects.is_deleted = ?", false)
}

// storyScope joins user stories up to programs, client-restricted.
func (r *Retriever) storyScope(user models.User) *gorm.DB {
	return r.db.Model(&models.UserStory{}).
		Joins("JOIN use_cases ON use_cases.id = user_stories.use_case_id").
		Joins("JOIN projects ON projects.id = use_cases.project_id").
		Joins("JOIN programs ON programs.id = projects.program_id").
		Where("programs.client_id = ?", user.ClientID).
		Where("user_stories.is_deleted = ?", false)
}

// TaskByID loads a task by id within the user's client.
func (r *Retriever) TaskByID(user models.User, id uint) (*models.Task, error) {
	var task models.Task
	err := r.taskScope(user).Where("tasks.id = ?", id).First(&task).Error
	if err != nil {
		return nil, notFoundOr("task", id, err)
	}
	return &task, nil
}

// BugByID loads a bug by id within the user's client.
func (r *Retriever) BugByID(user models.User, id uint) (*models.Bug, error) {
	var bug models.Bug
	err := r.bugScope(user).Where("bugs.id = ?", id).First(&bug).Error
	if err != nil {
		return nil, notFoundOr("bug", id, err)
	}
	return &bug, nil
}

// ProjectByID loads a project by id within the user's client.
func (r *Retriever) ProjectByID(user models.User, id uint) (*models.Project, error) {
	var project models.Project
	err := r.projectScope(user).Where("projects.id = ?", id).First(&project).Error
	if err != nil {
		return nil, notFoundOr("project", id, err)
	}
	return &project, nil
}

// UserStoryByID loads a user story by id within the user's client.
func (r *Retriever) UserStoryByID(user models.User, id uint) (*models.UserStory, error) {
	var story models.UserStory
	err := r.storyScope(user).Where("user_stories.id = ?", id).First(&story).Error
	if err != nil {
		return nil, notFoundOr("user story", id, err)
	}
	return &story, nil
}

// UseCaseByID loads a use case by id within the user's client.
func (r *Retriever) UseCaseByID(user models.User, id uint) (*models.UseCase, error) {
	var uc models.UseCase
	err := r.db.Model(&models.UseCase{}).
		Joins("JOIN projects ON projects.id = use_cases.project_id").
		Joins("JOIN programs ON programs.id = projects.program_id").
		Where("programs.client_id = ?", user.ClientID).
		Where("use_cases.is_deleted = ?", false).
		Where("use_cases.id = ?", id).
		First(&uc).Error
	if err != nil {
		return nil, notFoundOr("use case", id, err)
	}
	return &uc, nil
}

// TestCaseByID loads a test case by id within the user's client.
func (r *Retriever) TestCaseByID(user models.User, id uint) (*models.TestCase, error) {
	var tc models.TestCase
	err := r.db.Model(&models.TestCase{}).
		Joins("JOIN projects ON projects.id = test_cases.project_id").
		Joins("JOIN programs ON programs.id = projects.program_id").
		Where("programs.client_id = ?", user.ClientID).
		Where("test_cases.is_deleted = ?", false).
		Where("test_cases.id = ?", id).
		First(&tc).Error
	if err != nil {
		return nil, notFoundOr("test case", id, err)
	}
	return &tc, nil
}

// ProgramByID loads a program by id within the user's client.
func (r *Retriever) ProgramByID(user models.User, id uint) (*models.Program, error) {
	var prog models.Program
	err := r.db.Model(&models.Program{}).
		Where("client_id = ? AND is_deleted = ? AND id = ?", user.ClientID, false, id).
		First(&prog).Error
	if err != nil {
		return nil, notFoundOr("program", id, err)
	}
	return &prog, nil
}

// notFoundOr maps gorm's record-not-found to ErrNotFound and wraps anything
// else.
func notFoundOr(kind string, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("store: load %s %d: %w", kind, id, err)
}

// TaskFilter narrows task list queries. Zero-value fields are ignored.
// Dates are "2006-01-02" strings applied to the due date.
type TaskFilter struct {
	Status     string
	Priority   string
	AssigneeID *uint
	DueStart   string
	DueEnd     string
}

// Tasks lists tasks in the user's client matching the filter, ordered by
// due date then id.
func (r *Retriever) Tasks(user models.User, f TaskFilter) ([]models.Task, error) {
	q := r.taskScope(user)
	if f.Status != "" {
		q = q.Where("LOWER(tasks.status) = LOWER(?)", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("LOWER(tasks.priority) = LOWER(?)", f.Priority)
	}
	if f.AssigneeID != nil {
		q = q.Where("tasks.assignee_id = ?", *f.AssigneeID)
	}
	if f.DueStart != "" {
		q = q.Where("DATE(tasks.due_date) >= ?", f.DueStart)
	}
	if f.DueEnd != "" {
		q = q.Where("DATE(tasks.due_date) <= ?", f.DueEnd)
	}
	var tasks []models.Task
	if err := q.Order("tasks.due_date, tasks.id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	return tasks, nil
}

// BugFilter narrows bug list queries. Zero-value fields are ignored.
type BugFilter struct {
	Status     string
	Priority   string
	Severity   string
	AssigneeID *uint
}

// Bugs lists bugs in the user's client matching the filter.
func (r *Retriever) Bugs(user models.User, f BugFilter) ([]models.Bug, error) {
	q := r.bugScope(user)
	if f.Status != "" {
		q = q.Where("LOWER(bugs.status) = LOWER(?)", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("LOWER(bugs.priority) = LOWER(?)", f.Priority)
	}
	if f.Severity != "" {
		q = q.Where("LOWER(bugs.severity) = LOWER(?)", f.Severity)
	}
	if f.AssigneeID != nil {
		q = q.Where("bugs.assignee_id = ?", *f.AssigneeID)
	}
	var bugs []models.Bug
	if err := q.Order("bugs.id").Find(&bugs).Error; err != nil {
		return nil, fmt.Errorf("store: list bugs: %w", err)
	}
	return bugs, nil
}

// Projects lists projects in the user's client, optionally by status.
func (r *Retriever) Projects(user models.User, status string) ([]models.Project, error) {
	q := r.projectScope(user)
	if status != "" {
		q = q.Where("LOWER(projects.status) = LOWER(?)", status)
	}
	var projects []models.Project
	if err := q.Order("projects.id").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	return projects, nil
}

// UserStories lists stories in the user's client, optionally by status.
func (r *Retriever) UserStories(user models.User, status string) ([]models.UserStory, error) {
	q := r.storyScope(user)
	if status != "" {
		q = q.Where("LOWER(user_stories.status) = LOWER(?)", status)
	}
	var stories []models.UserStory
	if err := q.Order("user_stories.id").Find(&stories).Error; err != nil {
		return nil, fmt.Errorf("store: list user stories: %w", err)
	}
	return stories, nil
}

// CountRow is one bucket of an aggregate count.
type CountRow struct {
	Label string
	Count int64
}

// TaskStatusCounts returns task counts grouped by status for the user's
// client.
func (r *Retriever) TaskStatusCounts(user models.User) ([]CountRow, error) {
	var rows []CountRow
	err := r.taskScope(user).
		Select("tasks.status AS label, COUNT(*) AS count").
		Group("tasks.status").Order("tasks.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: task status counts: %w", err)
	}
	return rows, nil
}

// TaskPriorityCounts returns task counts grouped by priority.
func (r *Retriever) TaskPriorityCounts(user models.User) ([]CountRow, error) {
	var rows []CountRow
	err := r.taskScope(user).
		Select("tasks.priority AS label, COUNT(*) AS count").
		Group("tasks.priority").Order("tasks.priority").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: task priority counts: %w", err)
	}
	return rows, nil
}

// BugStatusCounts returns bug counts grouped by status.
func (r *Retriever) BugStatusCounts(user models.User) ([]CountRow, error) {
	var rows []CountRow
	err := r.bugScope(user).
		Select("bugs.status AS label, COUNT(*) AS count").
		Group("bugs.status").Order("bugs.status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: bug status counts: %w", err)
	}
	return rows, nil
}

// BugSeverityCounts returns bug counts grouped by severity.
func (r *Retriever) BugSeverityCounts(user models.User) ([]CountRow, error) {
	var rows []CountRow
	err := r.bugScope(user).
		Select("bugs.severity AS label, COUNT(*) AS count").
		Group("bugs.severity").Order("bugs.severity").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: bug severity counts: %w", err)
	}
	return rows, nil
}

// WorkloadRow summarizes one user's open items.
type WorkloadRow struct {
	UserID   uint
	UserName string
	Open     int64
}

// Workload returns per-user open task counts for the user's client.
func (r *Retriever) Workload(user models.User) ([]WorkloadRow, error) {
	var rows []WorkloadRow
	err := r.taskScope(user).
		Joins("JOIN users ON users.id = tasks.assignee_id").
		Where("LOWER(tasks.status) NOT IN ?", []string{"completed", "closed"}).
		Select("users.id AS user_id, users.name AS user_name, COUNT(*) AS open").
		Group("users.id, users.name").Order("open DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: workload: %w", err)
	}
	return rows, nil
}

// AuditTrail returns the most recent audit entries for the user's client,
// newest first.
func (r *Retriever) AuditTrail(user models.User, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []models.AuditLog
	err := r.db.Where("client_id = ?", user.ClientID).
		Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("store: audit trail: %w", err)
	}
	return entries, nil
}
