package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hookdeploy/internal/target"
	"hookdeploy/pkg/cmdutil"
)

// httptest requests carry this client address by default.
const testClientIP = "192.0.2.1"

const testBitbucketPayload = `{
	"canon_url": "https://bitbucket.org",
	"commits": [{"node": "620ade18607a", "message": "first pass"}],
	"repository": {"absolute_url": "/acme/widgets/", "name": "Widgets", "owner": "acme", "slug": "widgets"}
}`

// recordingRunner is a deploy.Runner that records commands and succeeds.
type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingRunner) Run(ctx context.Context, dir string, argv []string) (*cmdutil.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, argv)
	return &cmdutil.Result{ExitCode: 0, Output: []byte("ok")}, nil
}

func (r *recordingRunner) commandCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func setupTestServer(t *testing.T) (*Server, *recordingRunner, *target.Target) {
	t.Helper()

	testTarget := &target.Target{
		Name:        "test-site",
		Provider:    "bitbucket",
		Dir:         filepath.Join(t.TempDir(), "site"),
		Branch:      "master",
		AutoDeploy:  true,
		UseHTTPS:    true,
		IPAllowList: []string{testClientIP},
	}

	registry := target.NewRegistry(map[string]*target.Target{
		"test-site": testTarget,
	})

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	srv := NewServer(registry, logger, true)
	runner := &recordingRunner{}
	srv.Runner = runner

	return srv, runner, testTarget
}

func postWebhook(srv *Server, targetName string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/hooks/"+targetName, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandleWebhook_UnknownTarget(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	rr := postWebhook(srv, "unknown-site", []byte(testBitbucketPayload), "application/json")

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	var response map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &response)

	if response["error"] != "Unknown target" {
		t.Errorf("Expected 'Unknown target' error, got %v", response)
	}
}

func TestHandleWebhook_PayloadTooLarge(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	largePayload := make([]byte, MaxPayloadBytes+1)
	rr := postWebhook(srv, "test-site", largePayload, "application/json")

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rr.Code)
	}
}

func TestHandleWebhook_InvalidContentType(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	rr := postWebhook(srv, "test-site", []byte(testBitbucketPayload), "text/plain")

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status 415, got %d", rr.Code)
	}
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	srv, _, testTarget := setupTestServer(t)
	testTarget.Secret = "test-secret-at-least-32-chars-long-here"

	body := []byte(testBitbucketPayload)
	wrongSignature := MakeTestSignature(body, "wrong-secret-32-chars-long-xxxxxxxx")

	req := httptest.NewRequest("POST", "/hooks/test-site", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", wrongSignature)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rr.Code)
	}
}

func TestHandleWebhook_ValidSignature(t *testing.T) {
	srv, _, testTarget := setupTestServer(t)
	testTarget.Secret = "test-secret-at-least-32-chars-long-here"

	body := []byte(testBitbucketPayload)
	signature := MakeTestSignature(body, testTarget.Secret)

	req := httptest.NewRequest("POST", "/hooks/test-site", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", signature)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	srv.WaitForDeployments()

	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleWebhook_IPNotAllowed(t *testing.T) {
	srv, runner, testTarget := setupTestServer(t)
	testTarget.IPAllowList = []string{"1.2.3.4"}

	rr := postWebhook(srv, "test-site", []byte(testBitbucketPayload), "application/json")

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rr.Code)
	}
	if runner.commandCount() != 0 {
		t.Error("denied request must not run any commands")
	}
}

func TestHandleWebhook_InvalidPayload(t *testing.T) {
	srv, runner, _ := setupTestServer(t)

	testCases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "empty object",
			body: `{}`,
			want: "no data",
		},
		{
			name: "wrong origin",
			body: `{"canon_url": "https://evil.example", "commits": [{"node": "a", "message": "m"}], "repository": {"absolute_url": "/a/b/", "name": "b", "owner": "a", "slug": "b"}}`,
			want: "wrong origin",
		},
		{
			name: "no commits",
			body: `{"canon_url": "https://bitbucket.org", "repository": {"absolute_url": "/a/b/", "name": "b", "owner": "a", "slug": "b"}}`,
			want: "no commits",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postWebhook(srv, "test-site", []byte(tc.body), "application/json")

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}

			var response map[string]string
			_ = json.Unmarshal(rr.Body.Bytes(), &response)
			if !strings.Contains(response["error"], tc.want) {
				t.Errorf("error = %q, expected to contain %q", response["error"], tc.want)
			}
		})
	}

	if runner.commandCount() != 0 {
		t.Error("invalid payloads must not run any commands")
	}
}

func TestHandleWebhook_AcceptsAndDeploys(t *testing.T) {
	srv, runner, testTarget := setupTestServer(t)

	rr := postWebhook(srv, "test-site", []byte(testBitbucketPayload), "application/json")
	srv.WaitForDeployments()

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var response map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &response)
	if response["target"] != "test-site" {
		t.Errorf("response = %v", response)
	}

	if runner.commandCount() == 0 {
		t.Error("accepted delivery should run the deploy sequence")
	}
	if !dirExists(testTarget.Dir) {
		t.Error("deploy should create the target directory")
	}
}

func TestHandleWebhook_FormEncodedPayload(t *testing.T) {
	srv, runner, _ := setupTestServer(t)

	form := url.Values{"payload": {testBitbucketPayload}}
	rr := postWebhook(srv, "test-site", []byte(form.Encode()), "application/x-www-form-urlencoded")
	srv.WaitForDeployments()

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if runner.commandCount() == 0 {
		t.Error("form-encoded delivery should run the deploy sequence")
	}
}

// syncBuffer is a goroutine-safe log sink; the async deployment can log
// concurrently with the request middleware.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHandleWebhook_SelectorRunsOncePerDelivery(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	var buf syncBuffer
	srv.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	// Newest commit carries the skip marker so the selector leaves a
	// per-commit log entry before settling on the older commit.
	payload := `{
		"canon_url": "https://bitbucket.org",
		"commits": [
			{"node": "620ade18607a", "message": "first pass"},
			{"node": "f36e2b1a9c44", "message": "[skipdeploy] wip"}
		],
		"repository": {"absolute_url": "/acme/widgets/", "name": "Widgets", "owner": "acme", "slug": "widgets"}
	}`

	rr := postWebhook(srv, "test-site", []byte(payload), "application/json")
	srv.WaitForDeployments()

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	log := buf.String()
	if n := strings.Count(log, "commit skipped by marker"); n != 1 {
		t.Errorf("selector logged the skipped commit %d times, expected 1:\n%s", n, log)
	}

	skipped := strings.Index(log, "commit skipped by marker")
	completed := strings.Index(log, `msg="deploy completed"`)
	if completed < 0 {
		t.Fatalf("deploy completed entry missing:\n%s", log)
	}
	if skipped > completed {
		t.Errorf("selector entry logged after the deploy finished:\n%s", log)
	}
}

func TestHandleWebhook_DeploymentInProgress(t *testing.T) {
	srv, _, testTarget := setupTestServer(t)

	// Simulate an in-flight deployment for the same target directory
	if !srv.LockManager.TryLock(testTarget.Dir) {
		t.Fatal("setup lock failed")
	}
	defer srv.LockManager.Unlock(testTarget.Dir)

	rr := postWebhook(srv, "test-site", []byte(testBitbucketPayload), "application/json")

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var response map[string]interface{}
	_ = json.Unmarshal(rr.Body.Bytes(), &response)

	if response["status"] != "ok" {
		t.Errorf("status = %v", response["status"])
	}
	if count, ok := response["target_count"].(float64); !ok || count != 1 {
		t.Errorf("target_count = %v", response["target_count"])
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
