// Package slack implements the bridge Adapter for Slack over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/planhub/concierge/internal/bridge"
	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

const (
	maxRetries           = 3
	baseBackoff          = 2 * time.Second
	maxBackoff           = 2 * time.Minute
	maxReconnectAttempts = 10
)

// apiClient abstracts the Slack Web API methods the adapter uses, enabling
// test mocks.
type apiClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// socketClient abstracts the Socket Mode client.
type socketClient interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) Run() error                        { return r.client.Run() }
func (r *realSocketClient) EventsChan() chan socketmode.Event { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// Adapter implements bridge.Adapter for Slack Socket Mode. The bot answers
// direct messages and @mentions in channels it has been invited to.
type Adapter struct {
	client     apiClient
	socket     socketClient
	botUserID  string
	appToken   string
	botToken   string
	logger     *zap.Logger
	mu         sync.Mutex
	connected  bool
	closed     bool
	inbound    chan bridge.Inbound
	cancelFunc context.CancelFunc
}

// AdapterOpts holds parameters for creating a slack Adapter.
type AdapterOpts struct {
	AppToken string // xapp-... app-level token for Socket Mode
	BotToken string // xoxb-... bot token
	Logger   *zap.Logger
	// For testing: inject mock clients instead of the real Slack API.
	Client apiClient
	Socket socketClient
}

// New creates a slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slack: app token is required for socket mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client:   opts.Client,
		socket:   opts.Socket,
		appToken: opts.AppToken,
		botToken: opts.BotToken,
		logger:   logger,
		inbound:  make(chan bridge.Inbound, 100),
	}, nil
}

// Connect establishes the Socket Mode connection and resolves the bot's
// own user id for self-message filtering.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.client == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client = api
		a.socket = &realSocketClient{client: socketmode.New(api)}
	}

	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID
	a.connected = true
	return nil
}

// Listen starts the Socket Mode event pump and returns the inbound channel.
func (a *Adapter) Listen(ctx context.Context) (<-chan bridge.Inbound, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	listenCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelFunc = cancel
	a.mu.Unlock()

	go a.runWithReconnect(listenCtx)
	go a.pumpEvents(listenCtx)

	return a.inbound, nil
}

// Send posts a reply, rendering links as attachments.
func (a *Adapter) Send(ctx context.Context, msg bridge.Outbound) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	if msg.ChannelID == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	options := []slackapi.MsgOption{slackapi.MsgOptionText(msg.Text, false)}
	if msg.ThreadID != "" {
		options = append(options, slackapi.MsgOptionTS(msg.ThreadID))
	}
	if len(msg.Links) > 0 {
		var attachments []slackapi.Attachment
		for _, l := range msg.Links {
			attachments = append(attachments, slackapi.Attachment{
				Title:     l.Label,
				TitleLink: l.URL,
				Fallback:  l.URL,
			})
		}
		options = append(options, slackapi.MsgOptionAttachments(attachments...))
	}

	err := a.retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.PostMessage(msg.ChannelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close shuts down the adapter. The event pump owns the inbound channel
// and closes it once it drains, so Close never races a pending deliver.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	return nil
}

// runWithReconnect runs the Socket Mode client, retrying with exponential
// backoff when Run returns an error.
func (a *Adapter) runWithReconnect(ctx context.Context) {
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		err := a.socket.Run()
		if err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * baseBackoff
		if wait > maxBackoff {
			wait = maxBackoff
		}
		a.logger.Warn("socket mode disconnected",
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	a.logger.Error("socket mode reconnection attempts exhausted",
		zap.Int("attempts", maxReconnectAttempts))
}

// pumpEvents converts Socket Mode events into inbound messages. It is the
// only sender on a.inbound and closes it when it exits.
func (a *Adapter) pumpEvents(ctx context.Context) {
	defer close(a.inbound)
	events := a.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.handleSocketEvent(ctx, evt)
		}
	}
}

func (a *Adapter) handleSocketEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		a.handleEventsAPI(ctx, apiEvent)
	case socketmode.EventTypeConnected:
		a.logger.Info("connected to slack socket mode")
	case socketmode.EventTypeConnectionError:
		a.logger.Warn("slack connection error", zap.Any("data", evt.Data))
	}
}

func (a *Adapter) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Only direct messages reach the assistant this way; channel
		// traffic requires an @mention.
		if ev.ChannelType != "im" {
			return
		}
		if ev.User == a.botUserID || ev.BotID != "" || ev.SubType != "" {
			return
		}
		a.deliver(ctx, ev.Channel, ev.ThreadTimeStamp, ev.User, ev.Text, ev.TimeStamp)
	case *slackevents.AppMentionEvent:
		if ev.User == a.botUserID {
			return
		}
		a.deliver(ctx, ev.Channel, ev.ThreadTimeStamp, ev.User, stripMention(ev.Text, a.botUserID), ev.TimeStamp)
	}
}

func (a *Adapter) deliver(ctx context.Context, channel, thread, user, text, ts string) {
	msg := bridge.Inbound{
		Platform:  "slack",
		ChannelID: channel,
		ThreadID:  thread,
		UserID:    user,
		Text:      strings.TrimSpace(text),
		Timestamp: parseTimestamp(ts),
	}
	select {
	case a.inbound <- msg:
	case <-ctx.Done():
	}
}

// stripMention removes the leading <@BOTID> token from a mention.
func stripMention(text, botID string) string {
	return strings.ReplaceAll(text, "<@"+botID+">", "")
}

// retryOnRateLimit retries fn on Slack rate-limit errors, honoring the
// server's RetryAfter hint.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}

// parseTimestamp converts a Slack "seconds.fraction" timestamp.
func parseTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	if len(parts) == 0 {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
