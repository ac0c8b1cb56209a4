package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/planhub/concierge/internal/assistant"
	"github.com/planhub/concierge/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserResolver maps a platform identity to a platform account.
type UserResolver interface {
	ResolveUser(ctx context.Context, platform, platformUserID string) (models.User, error)
}

// ErrUnknownUser is returned when no account matches the chat identity.
var ErrUnknownUser = errors.New("bridge: unknown user")

// DBUserResolver resolves chat identities against the users table via the
// ChatHandle column.
type DBUserResolver struct {
	DB *gorm.DB
}

// ResolveUser implements UserResolver.
func (r DBUserResolver) ResolveUser(ctx context.Context, _, platformUserID string) (models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).
		Where("chat_handle = ? AND is_deleted = ?", platformUserID, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUnknownUser
	}
	if err != nil {
		return models.User{}, fmt.Errorf("bridge: resolve user: %w", err)
	}
	return user, nil
}

// Runner drives one adapter: it reads inbound messages, maps senders to
// accounts, runs each query through the assistant, and replies in-thread.
// Each chat thread keeps its own assistant session, so follow-up questions
// retain context.
type Runner struct {
	adapter  Adapter
	resolver UserResolver
	process  func(ctx context.Context, q assistant.Query) *assistant.Response
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]string // thread key -> assistant session id
}

// RunnerOpts holds parameters for creating a Runner.
type RunnerOpts struct {
	Adapter   Adapter
	Resolver  UserResolver
	Assistant *assistant.Assistant
	Logger    *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) (*Runner, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bridge: runner: adapter is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("bridge: runner: user resolver is required")
	}
	if opts.Assistant == nil {
		return nil, fmt.Errorf("bridge: runner: assistant is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		adapter:  opts.Adapter,
		resolver: opts.Resolver,
		process:  opts.Assistant.ProcessQuery,
		logger:   logger,
		sessions: make(map[string]string),
	}, nil
}

// Run connects the adapter and processes messages until the context is
// cancelled or the inbound channel closes.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("bridge: connect: %w", err)
	}
	inbound, err := r.adapter.Listen(ctx)
	if err != nil {
		return fmt.Errorf("bridge: listen: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return r.adapter.Close()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			r.handle(ctx, msg)
		}
	}
}

// handle processes one inbound message. Failures are answered in-channel
// where possible and never stop the loop.
func (r *Runner) handle(ctx context.Context, msg Inbound) {
	if msg.Text == "" {
		return
	}

	user, err := r.resolver.ResolveUser(ctx, msg.Platform, msg.UserID)
	if errors.Is(err, ErrUnknownUser) {
		r.reply(ctx, msg, Outbound{
			Text: "I don't recognize this chat account. Ask an administrator to link it to your profile.",
		})
		return
	}
	if err != nil {
		r.logger.Error("resolve chat user",
			zap.String("platform", msg.Platform),
			zap.String("user_id", msg.UserID),
			zap.Error(err))
		return
	}

	key := r.threadKey(msg)
	r.mu.Lock()
	sessionID := r.sessions[key]
	r.mu.Unlock()

	resp := r.process(ctx, assistant.Query{
		User:      user,
		Text:      msg.Text,
		SessionID: sessionID,
		UserAgent: "bridge/" + msg.Platform,
	})

	if resp.Meta.SessionID != "" {
		r.mu.Lock()
		r.sessions[key] = resp.Meta.SessionID
		r.mu.Unlock()
	}

	out := Outbound{Text: resp.Message}
	for _, a := range resp.Actions {
		if a.Kind == "link" {
			out.Links = append(out.Links, Link{Label: a.Label, URL: a.Value})
		}
	}
	r.reply(ctx, msg, out)
}

// threadKey scopes assistant sessions: one per platform thread, falling
// back to per-user-per-channel for unthreaded platforms.
func (r *Runner) threadKey(msg Inbound) string {
	if msg.ThreadID != "" {
		return msg.Platform + "/" + msg.ChannelID + "/" + msg.ThreadID
	}
	return msg.Platform + "/" + msg.ChannelID + "/" + msg.UserID
}

func (r *Runner) reply(ctx context.Context, in Inbound, out Outbound) {
	out.ChannelID = in.ChannelID
	out.ThreadID = in.ThreadID
	if err := r.adapter.Send(ctx, out); err != nil {
		r.logger.Error("send reply",
			zap.String("platform", in.Platform),
			zap.String("channel", in.ChannelID),
			zap.Error(err))
	}
}
