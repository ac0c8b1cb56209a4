package action

import (
	"context"

	"github.com/planhub/concierge/internal/models"
)

// ReminderStore persists reminder records. Implemented by store.Reminders;
// tests substitute spies.
type ReminderStore interface {
	Create(ctx context.Context, reminder *models.Reminder) error
}

// CommentStore persists comments on bugs and test cases.
type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) (uint, error)
}

// CommitInfo is the metadata resolved for a linked commit or pull request.
type CommitInfo struct {
	Title string
	URL   string
}

// CommitResolver fetches commit/PR metadata from the hosting provider.
// Resolution failures are soft: the link is still recorded without
// metadata.
type CommitResolver interface {
	Commit(ctx context.Context, sha string) (*CommitInfo, error)
	PullRequest(ctx context.Context, number int) (*CommitInfo, error)
}
