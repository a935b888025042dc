package webhook

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const githubOrigin = "https://github.com"

// Historical hook origin addresses published by GitHub.
var githubHookAddrs = []string{
	"207.97.227.253",
	"50.57.128.197",
	"108.171.174.178",
}

// githubPush mirrors the fields of a GitHub push event this service
// consumes; everything else in the event is ignored.
type githubPush struct {
	Commits []struct {
		ID        string `json:"id"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	} `json:"commits"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
		Owner    struct {
			Name  string `json:"name"`
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

// GitHub parses GitHub push-event notifications.
type GitHub struct {
	logger *slog.Logger
}

func NewGitHub(logger *slog.Logger) *GitHub {
	return &GitHub{logger: logger}
}

func (g *GitHub) Name() string   { return "github" }
func (g *GitHub) Origin() string { return githubOrigin }

func (g *GitHub) DefaultAllowList() []string {
	return append([]string(nil), githubHookAddrs...)
}

func (g *GitHub) Parse(raw []byte) (*Payload, error) {
	g.logger.Info("validating payload", "provider", g.Name())

	var push githubPush
	if len(raw) == 0 {
		return nil, &ValidationError{Reason: ReasonNoData}
	}
	if err := json.Unmarshal(raw, &push); err != nil {
		return nil, &ValidationError{Reason: ReasonNoData}
	}
	if len(push.Commits) == 0 && push.Repository.HTMLURL == "" {
		return nil, &ValidationError{Reason: ReasonNoData}
	}
	if !strings.HasPrefix(push.Repository.HTMLURL, githubOrigin+"/") {
		return nil, &ValidationError{Reason: ReasonWrongOrigin}
	}
	if len(push.Commits) == 0 {
		return nil, &ValidationError{Reason: ReasonNoCommits}
	}
	repo := push.Repository
	owner := repo.Owner.Name
	if owner == "" {
		owner = repo.Owner.Login
	}
	if repo.HTMLURL == "" || owner == "" || repo.Name == "" {
		return nil, &ValidationError{Reason: ReasonNoRepoInfo}
	}

	payload := &Payload{
		CanonOrigin: githubOrigin,
		Repository: Repository{
			Owner: owner,
			Name:  repo.Name,
			// GitHub has no separate slug; the repository name fills that role.
			Slug: repo.Name,
			URL:  repo.HTMLURL,
		},
	}
	for _, c := range push.Commits {
		payload.Commits = append(payload.Commits, Commit{
			ID:        c.ID,
			Message:   c.Message,
			Timestamp: c.Timestamp,
		})
	}

	g.logger.Info("payload validated", "provider", g.Name(),
		"repository", owner+"/"+repo.Name, "commits", len(payload.Commits))
	return payload, nil
}

func (g *GitHub) BuildURL(p *Payload, useHTTPS bool, username, password string) string {
	path := p.Repository.Owner + "/" + p.Repository.Name
	return remoteURL(useHTTPS, username, password, "github.com", path)
}
