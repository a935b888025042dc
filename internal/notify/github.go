package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// StatusContext is the context label attached to published commit statuses.
const StatusContext = "hookdeploy"

// GitHubStatus publishes deploy outcomes as commit statuses on GitHub.
// A zero token disables publishing entirely.
type GitHubStatus struct {
	client *github.Client
	logger *slog.Logger
}

// NewGitHubStatus creates a status publisher. Returns nil when no token
// is configured; callers treat a nil publisher as "notification off".
func NewGitHubStatus(token string, logger *slog.Logger) *GitHubStatus {
	if token == "" {
		return nil
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &GitHubStatus{
		client: github.NewClient(tc),
		logger: logger,
	}
}

// State maps a deploy outcome to a GitHub commit-status state.
func State(succeeded bool) string {
	if succeeded {
		return "success"
	}
	return "failure"
}

// Publish attaches a commit status to owner/repo@sha.
func (n *GitHubStatus) Publish(ctx context.Context, owner, repo, sha string, succeeded bool, description string) error {
	state := State(succeeded)
	status := &github.RepoStatus{
		State:       github.String(state),
		Description: github.String(description),
		Context:     github.String(StatusContext),
	}

	_, _, err := n.client.Repositories.CreateStatus(ctx, owner, repo, sha, status)
	if err != nil {
		return fmt.Errorf("failed to publish commit status: %w", err)
	}

	n.logger.Info("commit status published",
		"repository", owner+"/"+repo, "commit", sha, "state", state)
	return nil
}
