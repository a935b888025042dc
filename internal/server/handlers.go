package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"hookdeploy/internal/deploy"
	"hookdeploy/internal/notify"
	"hookdeploy/internal/target"
	"hookdeploy/internal/webhook"

	"github.com/go-chi/chi/v5"
)

const MaxPayloadBytes = 1_000_000 // 1 MB

// HandleWebhook handles provider webhook requests
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	targetName := chi.URLParam(r, "targetName")

	// Check if target exists
	t, err := s.Registry.Get(targetName)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown target"})
		return
	}

	// Check payload size (ContentLength can be -1 if not set)
	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	// Read payload. Bitbucket's classic POST service delivers the JSON
	// as a form field named "payload"; everything newer posts raw JSON.
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err, "target", targetName)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}

	body, ok := extractPayload(r.Header.Get("Content-Type"), raw)
	if !ok {
		s.respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "Invalid content type"})
		return
	}

	// Verify signature when the target carries a shared secret. The
	// signature covers the raw request body, not the extracted field.
	if t.Secret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !VerifySignature(raw, signature, t.Secret) {
			s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid signature"})
			return
		}
	}

	logger, closeLog := s.targetLogger(t)

	provider, err := webhook.ByName(t.Provider, logger)
	if err != nil {
		closeLog()
		s.Logger.Error("Target references unknown provider", "target", targetName, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Misconfigured target"})
		return
	}

	deployer := deploy.NewDeployer(provider, s.Runner, logger)
	deployer.Configure(t.Overrides())
	if t.Username != "" {
		deployer.Authenticate(t.Username, t.Password)
	}

	// Authorize the caller before touching the payload contents
	if err := deployer.AuthorizeRequest(remoteIP(r)); err != nil {
		closeLog()
		var denied *deploy.AccessDeniedError
		if errors.As(err, &denied) {
			s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "IP address not allowed"})
			return
		}
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Authorization failed"})
		return
	}

	// Parse and validate the payload
	payload, err := provider.Parse(body)
	if err != nil {
		closeLog()
		var verr *webhook.ValidationError
		if errors.As(err, &verr) {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		s.Logger.Error("Failed to parse payload", "error", err, "target", targetName)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
		return
	}

	// Try to acquire the per-target deployment lock
	if !s.LockManager.TryLock(t.Dir) {
		closeLog()
		s.Logger.Warn("Deployment already in progress, rejecting", "target", targetName)
		s.respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Deployment already in progress"})
		return
	}

	// Respond immediately to the provider to avoid its delivery timeout;
	// the git sequence may be long-running.
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Deployment accepted",
		"target":  targetName,
	})

	// Execute deployment asynchronously
	s.deployWg.Add(1)
	go func() {
		defer s.deployWg.Done()
		defer s.LockManager.Unlock(t.Dir)
		defer closeLog()
		s.executeDeployment(context.Background(), t, deployer, payload)
	}()
}

// executeDeployment runs the deployment and reports the outcome
func (s *Server) executeDeployment(ctx context.Context, t *target.Target, deployer *deploy.Deployer, payload *webhook.Payload) {
	commit, err := deployer.Deploy(ctx, payload)

	if err != nil {
		s.Logger.Error("deployment failed", "target", t.Name, "error", err)
	} else {
		s.Logger.Info("deployment completed", "target", t.Name)
	}

	s.publishStatus(ctx, t, payload, commit, err)
}

// publishStatus reports the deploy outcome as a GitHub commit status for
// GitHub targets carrying an API token. The commit is the one Deploy
// resolved; an empty commit means nothing was deployed.
func (s *Server) publishStatus(ctx context.Context, t *target.Target, payload *webhook.Payload, commit string, deployErr error) {
	if t.Provider != "github" {
		return
	}

	publisher := notify.NewGitHubStatus(t.GitHubToken, s.Logger)
	if publisher == nil {
		return
	}

	if commit == "" {
		return
	}

	description := "deploy completed"
	if deployErr != nil {
		description = "deploy failed"
	}

	if err := publisher.Publish(ctx, payload.Repository.Owner, payload.Repository.Name,
		commit, deployErr == nil, description); err != nil {
		s.Logger.Error("Failed to publish commit status", "target", t.Name, "error", err)
	}
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":       "ok",
		"targets":      s.Registry.List(),
		"target_count": s.Registry.Count(),
	}

	s.respondJSON(w, http.StatusOK, response)
}

// extractPayload pulls the JSON document out of the request body based
// on content type. Returns false for unsupported content types.
func extractPayload(contentType string, raw []byte) ([]byte, bool) {
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}

	switch mediaType {
	case "application/json":
		return raw, true
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, false
		}
		return []byte(values.Get("payload")), true
	default:
		return nil, false
	}
}

// remoteIP strips the port from the caller-observed remote address.
// chi's RealIP middleware has already honored forwarding headers.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
