package action

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GitHubResolver implements CommitResolver against the GitHub API for a
// single repository.
type GitHubResolver struct {
	client *github.Client
	owner  string
	repo   string
}

// GitHubResolverOpts holds parameters for creating a GitHubResolver.
type GitHubResolverOpts struct {
	Token string
	Owner string
	Repo  string
}

// NewGitHubResolver creates a GitHubResolver.
func NewGitHubResolver(opts GitHubResolverOpts) (*GitHubResolver, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("action: github resolver: token is required")
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("action: github resolver: owner and repo are required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	return &GitHubResolver{
		client: github.NewClient(httpClient),
		owner:  opts.Owner,
		repo:   opts.Repo,
	}, nil
}

// Commit implements CommitResolver.
func (r *GitHubResolver) Commit(ctx context.Context, sha string) (*CommitInfo, error) {
	commit, _, err := r.client.Repositories.GetCommit(ctx, r.owner, r.repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("action: resolve commit %s: %w", sha, err)
	}
	return &CommitInfo{
		Title: commit.GetCommit().GetMessage(),
		URL:   commit.GetHTMLURL(),
	}, nil
}

// PullRequest implements CommitResolver.
func (r *GitHubResolver) PullRequest(ctx context.Context, number int) (*CommitInfo, error) {
	pr, _, err := r.client.PullRequests.Get(ctx, r.owner, r.repo, number)
	if err != nil {
		return nil, fmt.Errorf("action: resolve PR #%d: %w", number, err)
	}
	return &CommitInfo{
		Title: pr.GetTitle(),
		URL:   pr.GetHTMLURL(),
	}, nil
}
