// Package server implements the HTTP front end of the hookdeploy webhook
// receiver.
//
// This package provides:
//   - Provider webhook endpoint handling (Bitbucket and GitHub push payloads)
//   - IP allow-list authorization and optional HMAC signature verification
//   - Per-IP rate limiting to prevent abuse
//   - A health endpoint for monitoring
//   - Structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/target: Target configuration and validation
//   - internal/webhook: Provider payload parsing and validation
//   - internal/deploy: Commit selection and the git deploy sequence
//   - internal/notify: Optional GitHub commit-status reporting
//
// Security features:
//   - Per-provider IP allow-lists seeded from known hook origins
//   - Optional HMAC-SHA256 webhook signature verification
//   - Content-Type validation (JSON or classic form encoding)
//   - Payload size limits (1MB max)
//   - Rate limiting (global and per-webhook)
//   - Per-target deployment locking (prevents concurrent deployments)
package server
