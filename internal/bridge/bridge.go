// Package bridge connects the assistant to chat platforms (Slack, Discord).
// Each adapter owns one platform connection; the Runner pumps inbound
// messages through the assistant and replies in the same thread.
package bridge

import (
	"context"
	"time"
)

// Adapter is the platform-specific connection. Implementations manage the
// websocket lifecycle and translate between platform events and the
// bridge's message types.
type Adapter interface {
	// Connect establishes the platform connection.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages. The channel is closed
	// when the context is cancelled or the adapter is closed. Listen must
	// only be called after Connect.
	Listen(ctx context.Context) (<-chan Inbound, error)

	// Send delivers a reply to the platform.
	Send(ctx context.Context, msg Outbound) error

	// Close shuts down the adapter connection.
	Close() error
}

// Inbound is one message received from a chat platform.
type Inbound struct {
	Platform  string // "slack" or "discord"
	ChannelID string
	ThreadID  string // thread identifier, empty for top-level messages
	UserID    string // platform user id
	UserName  string
	Text      string
	Timestamp time.Time
}

// Link is a labeled URL attached to a reply, rendered platform-natively
// (Slack attachment, Discord embed).
type Link struct {
	Label string
	URL   string
}

// Outbound is one reply to deliver to a chat platform.
type Outbound struct {
	ChannelID string
	ThreadID  string // reply in this thread; empty posts top-level
	Text      string
	Links     []Link
}
