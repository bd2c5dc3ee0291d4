package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type testAuthenticator struct {
	identity Identity
	err      error
	calls    int
}

func (a *testAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	a.calls++
	return a.identity, a.err
}

func TestMiddleware_Unauthorized(t *testing.T) {
	authn := &testAuthenticator{err: ErrUnauthenticated}
	called := false
	h := Middleware{
		Authenticator: authn,
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.test/pipelines", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatalf("handler should not be called")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["kind"] != "unauthorized" {
		t.Fatalf("kind=%v, want unauthorized", body["kind"])
	}
	if body["request_id"] != "rid-1" {
		t.Fatalf("request_id=%v, want rid-1", body["request_id"])
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	authn := &testAuthenticator{err: errors.New("bad token")}
	h := Middleware{
		Authenticator: authn,
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.test/pipelines", nil)
	req.Header.Set("X-Request-Id", "rid-2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["kind"] != "invalid_token" {
		t.Fatalf("kind=%v, want invalid_token", body["kind"])
	}
}

func TestMiddleware_SkipPrefix(t *testing.T) {
	authn := &testAuthenticator{err: ErrUnauthenticated}
	called := false
	h := Middleware{
		Authenticator: authn,
		SkipPrefixes:  []string{"/healthz"},
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.test/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("handler should be called")
	}
	if authn.calls != 0 {
		t.Fatalf("authenticator calls=%d, want 0", authn.calls)
	}
}

func TestRunTokenAuthenticator_AcceptsRunToken(t *testing.T) {
	secret := "test-secret"
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	token, err := GenerateRunToken(secret, RunTokenClaims{
		RunID:         "run-123",
		PipelineName:  "training_pipeline",
		ExpiresAtUnix: now.Add(1 * time.Hour).Unix(),
	}, now)
	if err != nil {
		t.Fatalf("GenerateRunToken: %v", err)
	}

	next := &testAuthenticator{err: ErrUnauthenticated}
	authn := RunTokenAuthenticator{
		Secret: secret,
		Next:   next,
		Now:    func() time.Time { return now },
	}

	req := httptest.NewRequest(http.MethodPost, "http://example.test/pipelines/x/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	identity, err := authn.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if next.calls != 0 {
		t.Fatalf("next calls=%d, want 0", next.calls)
	}
	runID, pipelineName, ok := ParseRunTokenSubject(identity.Subject)
	if !ok || runID != "run-123" || pipelineName != "training_pipeline" {
		t.Fatalf("subject=%q parsed as (%q, %q, %v)", identity.Subject, runID, pipelineName, ok)
	}
}

func TestRunTokenAuthenticator_FallsThrough(t *testing.T) {
	next := &testAuthenticator{identity: Identity{Subject: "alice"}}
	authn := RunTokenAuthenticator{Secret: "test-secret", Next: next}

	req := httptest.NewRequest(http.MethodGet, "http://example.test/pipelines", nil)
	req.Header.Set("Authorization", "Bearer some-oidc-token")
	identity, err := authn.Authenticate(context.Background(), req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("next calls=%d, want 1", next.calls)
	}
	if identity.Subject != "alice" {
		t.Fatalf("subject=%q, want alice", identity.Subject)
	}
}
