package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/planhub/concierge/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Auditor writes one immutable record per processed query. Audit failures
// never fail the request; they are logged and the answer is returned
// anyway.
type Auditor struct {
	db     *gorm.DB
	logger *zap.Logger
}

// AuditorOpts holds parameters for creating an Auditor.
type AuditorOpts struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewAuditor creates an Auditor.
func NewAuditor(opts AuditorOpts) (*Auditor, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("assistant: auditor: db is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{db: opts.DB, logger: logger}, nil
}

// Entry is the audit payload for one query.
type Entry struct {
	RequestID    string
	User         models.User
	SessionID    string
	Query        string
	IntentType   string
	Confidence   float64
	EntityCodes  []string
	ActionType   string
	ActionResult string
	Preview      string
	ClientIP     string
	UserAgent    string
}

const previewLimit = 512

// Record persists the entry best-effort.
func (a *Auditor) Record(ctx context.Context, e Entry) {
	codes := "[]"
	if len(e.EntityCodes) > 0 {
		if raw, err := json.Marshal(e.EntityCodes); err == nil {
			codes = string(raw)
		}
	}
	preview := e.Preview
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	row := models.AuditLog{
		RequestID:       e.RequestID,
		UserID:          e.User.ID,
		ClientID:        e.User.ClientID,
		SessionID:       e.SessionID,
		Query:           e.Query,
		IntentType:      e.IntentType,
		Confidence:      e.Confidence,
		EntitiesAccess:  codes,
		ActionType:      e.ActionType,
		ActionResult:    e.ActionResult,
		ResponsePreview: preview,
		ClientIP:        e.ClientIP,
		UserAgent:       e.UserAgent,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		a.logger.Error("write audit record",
			zap.String("request_id", e.RequestID),
			zap.Uint("user_id", e.User.ID),
			zap.Error(err))
	}
}
