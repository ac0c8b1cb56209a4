// Package session maintains per-conversation assistant state: the last
// classified intent, recently mentioned entities, and a bounded message
// history. Sessions are keyed by UUID and expire after a sliding TTL.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/planhub/concierge/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxMentioned bounds how many entity references a session remembers.
// Older mentions fall off first.
const maxMentioned = 10

// Mention is one resolved entity reference remembered by a session.
type Mention struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Manager creates, loads, and expires chat sessions.
type Manager struct {
	db           *gorm.DB
	ttl          time.Duration
	historyLimit int
	clock        func() time.Time
	logger       *zap.Logger
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	DB           *gorm.DB
	TTL          time.Duration // sliding inactivity window; defaults to 30m
	HistoryLimit int           // messages returned by History; defaults to 20
	Clock        func() time.Time
	Logger       *zap.Logger
}

// NewManager creates a Manager.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("session: manager: db is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db:           opts.DB,
		ttl:          ttl,
		historyLimit: limit,
		clock:        clock,
		logger:       logger,
	}, nil
}

// GetOrCreate loads an active, unexpired session by id, extending its TTL.
// An empty, unknown, expired, or foreign-user id yields a fresh session.
func (m *Manager) GetOrCreate(ctx context.Context, user models.User, sessionID string) (*models.ChatSession, error) {
	now := m.clock()
	if sessionID != "" {
		var s models.ChatSession
		err := m.db.WithContext(ctx).
			Where("id = ? AND user_id = ? AND status = ? AND expires_at > ?",
				sessionID, user.ID, "active", now).
			First(&s).Error
		switch {
		case err == nil:
			s.ExpiresAt = now.Add(m.ttl)
			if uerr := m.db.WithContext(ctx).Model(&s).Update("expires_at", s.ExpiresAt).Error; uerr != nil {
				return nil, fmt.Errorf("session: extend: %w", uerr)
			}
			return &s, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			// fall through to create
		default:
			return nil, fmt.Errorf("session: load: %w", err)
		}
	}

	s := models.ChatSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ClientID:  user.ClientID,
		Status:    "active",
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.db.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return &s, nil
}

// RecordIntent stores the session's last classified intent type.
func (m *Manager) RecordIntent(ctx context.Context, s *models.ChatSession, intentType string) error {
	s.LastIntent = intentType
	err := m.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", s.ID).
		Update("last_intent", intentType).Error
	if err != nil {
		return fmt.Errorf("session: record intent: %w", err)
	}
	return nil
}

// RecordMentions merges resolved entity references into the session's
// mention list, most recent last, bounded at maxMentioned.
func (m *Manager) RecordMentions(ctx context.Context, s *models.ChatSession, mentions []Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	existing := m.Mentions(s)

	merged := make([]Mention, 0, len(existing)+len(mentions))
	seen := make(map[string]bool)
	// Walk newest first so fresh mentions displace stale duplicates.
	for i := len(mentions) - 1; i >= 0; i-- {
		if key := mentions[i].Code; !seen[key] {
			seen[key] = true
			merged = append(merged, mentions[i])
		}
	}
	for i := len(existing) - 1; i >= 0; i-- {
		if key := existing[i].Code; !seen[key] {
			seen[key] = true
			merged = append(merged, existing[i])
		}
	}
	if len(merged) > maxMentioned {
		merged = merged[:maxMentioned]
	}
	// Restore chronological order.
	for i, j := 0, len(merged)-1; i < j; i, j = i+1, j-1 {
		merged[i], merged[j] = merged[j], merged[i]
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("session: encode mentions: %w", err)
	}
	s.Mentioned = string(raw)
	err = m.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", s.ID).
		Update("mentioned", s.Mentioned).Error
	if err != nil {
		return fmt.Errorf("session: record mentions: %w", err)
	}
	return nil
}

// Mentions decodes the session's remembered entity references. A corrupt
// payload is treated as empty.
func (m *Manager) Mentions(s *models.ChatSession) []Mention {
	if s.Mentioned == "" {
		return nil
	}
	var out []Mention
	if err := json.Unmarshal([]byte(s.Mentioned), &out); err != nil {
		m.logger.Warn("decode session mentions", zap.String("session_id", s.ID), zap.Error(err))
		return nil
	}
	return out
}

// SetCurrentProject records the project the conversation is focused on.
func (m *Manager) SetCurrentProject(ctx context.Context, s *models.ChatSession, projectID uint) error {
	s.CurrentProjectID = &projectID
	err := m.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ?", s.ID).
		Update("current_project_id", projectID).Error
	if err != nil {
		return fmt.Errorf("session: set current project: %w", err)
	}
	return nil
}

// AppendMessage adds one turn to the session transcript with the next
// sequence number.
func (m *Manager) AppendMessage(ctx context.Context, s *models.ChatSession, role, content string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		err := tx.Model(&models.ChatMessage{}).
			Where("session_id = ?", s.ID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).Error
		if err != nil {
			return fmt.Errorf("session: next sequence: %w", err)
		}
		msg := models.ChatMessage{
			SessionID: s.ID,
			Sequence:  last + 1,
			Role:      role,
			Content:   content,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("session: append message: %w", err)
		}
		return nil
	})
}

// History returns the most recent transcript turns in chronological order,
// bounded by the configured history limit.
func (m *Manager) History(ctx context.Context, s *models.ChatSession) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := m.db.WithContext(ctx).
		Where("session_id = ?", s.ID).
		Order("sequence DESC").
		Limit(m.historyLimit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("session: history: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Delete ends a session and drops its transcript.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("session: delete messages: %w", err)
		}
		if err := tx.Where("id = ?", sessionID).Delete(&models.ChatSession{}).Error; err != nil {
			return fmt.Errorf("session: delete: %w", err)
		}
		return nil
	})
}

// Sweep marks expired active sessions and returns how many were expired.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	res := m.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("status = ? AND expires_at <= ?", "active", m.clock()).
		Update("status", "expired")
	if res.Error != nil {
		return 0, fmt.Errorf("session: sweep: %w", res.Error)
	}
	return res.RowsAffected, nil
}
