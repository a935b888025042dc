package deploy

import (
	"log/slog"
	"strings"

	"hookdeploy/internal/webhook"
)

const (
	// DeployMarker opts a commit in when auto-deploy is off.
	DeployMarker = "[deploy]"

	// SkipMarker opts a commit out when auto-deploy is on.
	SkipMarker = "[skipdeploy]"
)

// SelectCommit picks the commit to deploy from a delivery-ordered list
// (oldest first). The scan runs newest to oldest so the most recent
// qualifying commit wins, which lets a later push squash-skip earlier
// intermediate commits.
//
// With autoDeploy true every commit deploys unless its message carries
// SkipMarker; with autoDeploy false only commits carrying DeployMarker
// deploy. Returns "" when no commit qualifies.
func SelectCommit(commits []webhook.Commit, autoDeploy bool, logger *slog.Logger) string {
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		if autoDeploy {
			if strings.Contains(c.Message, SkipMarker) {
				logger.Info("commit skipped by marker", "commit", c.ID)
				continue
			}
			return c.ID
		}
		if strings.Contains(c.Message, DeployMarker) {
			return c.ID
		}
		logger.Info("commit not marked for deploy", "commit", c.ID)
	}
	return ""
}
