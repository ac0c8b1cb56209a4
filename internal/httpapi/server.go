// Package httpapi exposes the assistant over HTTP: one chat endpoint plus
// health and session routes.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planhub/concierge/internal/assistant"
	"github.com/planhub/concierge/internal/models"
	"github.com/planhub/concierge/internal/session"
	"github.com/planhub/concierge/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB        *gorm.DB
	Assistant *assistant.Assistant
	Sessions  *session.Manager
	Retriever *store.Retriever
	Port      int
	Logger    *zap.Logger
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("httpapi: db is required")
	}
	if opts.Assistant == nil {
		return fmt.Errorf("httpapi: assistant is required")
	}
	if opts.Sessions == nil {
		return fmt.Errorf("httpapi: session manager is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}

// NewRouter builds the route table. Split out of Start so tests can drive
// the handlers without a listener.
func NewRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handleHealth(opts.DB))
	api := router.Group("/api")
	{
		api.POST("/chat", handleChat(opts))
		api.DELETE("/sessions/:id", handleEndSession(opts))
		api.GET("/audit", handleAuditTrail(opts))
	}
	return router
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// chatRequest is the POST /api/chat payload.
type chatRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

func handleChat(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := authenticate(c, opts.DB)
		if !ok {
			return
		}
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}
		resp := opts.Assistant.ProcessQuery(c.Request.Context(), assistant.Query{
			User:      user,
			Text:      req.Query,
			SessionID: req.SessionID,
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.JSON(http.StatusOK, resp)
	}
}

func handleEndSession(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c, opts.DB); !ok {
			return
		}
		if err := opts.Sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not end session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ended"})
	}
}

func handleAuditTrail(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := authenticate(c, opts.DB)
		if !ok {
			return
		}
		rows, err := opts.Retriever.AuditTrail(user, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load audit trail"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": rows})
	}
}

// authenticate resolves the acting user from the X-User-ID header. Identity
// is established upstream by the platform gateway; this service only loads
// the referenced account.
func authenticate(c *gin.Context, db *gorm.DB) (models.User, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return models.User{}, false
	}
	var user models.User
	err := db.Where("id = ? AND is_deleted = ?", id, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return models.User{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return models.User{}, false
	}
	return user, true
}
