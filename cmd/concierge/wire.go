package main

import (
	"fmt"
	"time"

	"github.com/planhub/concierge/internal/action"
	"github.com/planhub/concierge/internal/assistant"
	"github.com/planhub/concierge/internal/config"
	"github.com/planhub/concierge/internal/db"
	"github.com/planhub/concierge/internal/llm"
	"github.com/planhub/concierge/internal/session"
	"github.com/planhub/concierge/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app bundles the wired components the commands share.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	retriever *store.Retriever
	reminders *store.Reminders
	sessions  *session.Manager
	assistant *assistant.Assistant
	logger    *zap.Logger
}

// connect opens the configured database.
func connect(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.SQLitePath != "" {
		return db.ConnectSQLite(cfg.Database.SQLitePath)
	}
	return db.Connect(cfg.Database.Host, cfg.Database.Port,
		cfg.Database.User, cfg.Database.Password, cfg.Database.Database)
}

// buildApp wires the full assistant stack from configuration.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	gormDB, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	retriever, err := store.NewRetriever(store.RetrieverOpts{DB: gormDB})
	if err != nil {
		return nil, err
	}
	reminders, err := store.NewReminders(gormDB)
	if err != nil {
		return nil, err
	}
	comments, err := store.NewComments(gormDB)
	if err != nil {
		return nil, err
	}

	handlerOpts := action.HandlerOpts{
		DB:        gormDB,
		Retriever: retriever,
		Reminders: reminders,
		Comments:  comments,
		BaseURL:   cfg.Server.BaseURL,
		Logger:    logger,
	}
	if cfg.GitHub.Token != "" {
		commits, err := action.NewGitHubResolver(action.GitHubResolverOpts{
			Token: cfg.GitHub.Token,
			Owner: cfg.GitHub.Owner,
			Repo:  cfg.GitHub.Repo,
		})
		if err != nil {
			return nil, err
		}
		handlerOpts.Commits = commits
	}
	actions, err := action.NewHandler(handlerOpts)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(session.ManagerOpts{
		DB:           gormDB,
		TTL:          time.Duration(cfg.Session.TTLMinutes) * time.Minute,
		HistoryLimit: cfg.Session.HistoryLimit,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	auditor, err := assistant.NewAuditor(assistant.AuditorOpts{DB: gormDB, Logger: logger})
	if err != nil {
		return nil, err
	}

	opts := assistant.Opts{
		Retriever: retriever,
		Actions:   actions,
		Sessions:  sessions,
		Auditor:   auditor,
		BaseURL:   cfg.Server.BaseURL,
		Logger:    logger,
	}
	if cfg.OpenAI.APIKey != "" {
		backend, err := llm.NewOpenAI(llm.OpenAIOpts{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		})
		if err != nil {
			return nil, err
		}
		refiner, err := llm.NewAdapter(llm.AdapterOpts{
			Backend: backend,
			Timeout: time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		opts.Refiner = refiner
		opts.Narrator = backend
	}

	asst, err := assistant.New(opts)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		db:        gormDB,
		retriever: retriever,
		reminders: reminders,
		sessions:  sessions,
		assistant: asst,
		logger:    logger,
	}, nil
}
