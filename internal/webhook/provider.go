package webhook

import (
	"fmt"
	"log/slog"
	"strings"
)

// Provider adapts one hosting provider's webhook wire format to the
// normalized Payload shape. Adding a provider means adding a variant
// here; nothing downstream changes.
type Provider interface {
	// Name is the identifier used in target configuration.
	Name() string

	// Origin is the canonical host URL the provider's payloads must claim.
	Origin() string

	// Parse validates a raw notification body and returns the normalized
	// payload. The error is a *ValidationError for structural problems.
	Parse(raw []byte) (*Payload, error)

	// BuildURL composes the clone/fetch URL for the payload's repository.
	// Credentials are only embedded when useHTTPS is true.
	BuildURL(p *Payload, useHTTPS bool, username, password string) string

	// DefaultAllowList returns the provider's known webhook origin
	// addresses, used to seed the IP filter unless overridden.
	DefaultAllowList() []string
}

// ByName looks up a provider variant by its configuration name.
func ByName(name string, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(name) {
	case "bitbucket":
		return NewBitbucket(logger), nil
	case "github":
		return NewGitHub(logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// remoteURL assembles scheme://[user[:pass]@]host/path.git. Credentials
// are never embedded on plain http.
func remoteURL(useHTTPS bool, username, password, host, path string) string {
	scheme := "http://"
	auth := ""
	if useHTTPS {
		scheme = "https://"
		if username != "" {
			auth = username
			if password != "" {
				auth += ":" + password
			}
			auth += "@"
		}
	}
	return scheme + auth + host + "/" + path + ".git"
}
