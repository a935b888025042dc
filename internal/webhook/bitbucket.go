package webhook

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const bitbucketOrigin = "https://bitbucket.org"

// Historical POST-service origin addresses published by Bitbucket.
var bitbucketHookAddrs = []string{
	"131.103.20.165",
	"131.103.20.166",
}

// bitbucketPush mirrors Bitbucket's classic POST-service payload.
type bitbucketPush struct {
	CanonURL string `json:"canon_url"`
	Commits  []struct {
		Node      string `json:"node"`
		RawNode   string `json:"raw_node"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	} `json:"commits"`
	Repository struct {
		AbsoluteURL string `json:"absolute_url"`
		Name        string `json:"name"`
		Owner       string `json:"owner"`
		Slug        string `json:"slug"`
	} `json:"repository"`
}

// Bitbucket parses classic Bitbucket POST-service notifications.
type Bitbucket struct {
	logger *slog.Logger
}

func NewBitbucket(logger *slog.Logger) *Bitbucket {
	return &Bitbucket{logger: logger}
}

func (b *Bitbucket) Name() string   { return "bitbucket" }
func (b *Bitbucket) Origin() string { return bitbucketOrigin }

func (b *Bitbucket) DefaultAllowList() []string {
	return append([]string(nil), bitbucketHookAddrs...)
}

func (b *Bitbucket) Parse(raw []byte) (*Payload, error) {
	b.logger.Info("validating payload", "provider", b.Name())

	var push bitbucketPush
	if len(raw) == 0 {
		return nil, &ValidationError{Reason: ReasonNoData}
	}
	if err := json.Unmarshal(raw, &push); err != nil {
		return nil, &ValidationError{Reason: ReasonNoData}
	}
	if push.CanonURL == "" && len(push.Commits) == 0 && push.Repository.Slug == "" {
		return nil, &ValidationError{Reason: ReasonNoData}
	}
	if push.CanonURL != bitbucketOrigin {
		return nil, &ValidationError{Reason: ReasonWrongOrigin}
	}
	if len(push.Commits) == 0 {
		return nil, &ValidationError{Reason: ReasonNoCommits}
	}
	repo := push.Repository
	if repo.AbsoluteURL == "" || repo.Owner == "" || repo.Name == "" || repo.Slug == "" {
		return nil, &ValidationError{Reason: ReasonNoRepoInfo}
	}

	payload := &Payload{
		CanonOrigin: push.CanonURL,
		Repository: Repository{
			Owner: repo.Owner,
			Name:  repo.Name,
			Slug:  repo.Slug,
			URL:   push.CanonURL + repo.AbsoluteURL,
		},
	}
	for _, c := range push.Commits {
		id := c.Node
		if id == "" {
			id = c.RawNode
		}
		payload.Commits = append(payload.Commits, Commit{
			ID:        id,
			Message:   c.Message,
			Timestamp: c.Timestamp,
		})
	}

	b.logger.Info("payload validated", "provider", b.Name(),
		"repository", repo.Owner+"/"+repo.Slug, "commits", len(payload.Commits))
	return payload, nil
}

func (b *Bitbucket) BuildURL(p *Payload, useHTTPS bool, username, password string) string {
	path := strings.ToLower(p.Repository.Owner) + "/" + p.Repository.Slug
	return remoteURL(useHTTPS, username, password, "bitbucket.org", path)
}
