package auth

import (
	"testing"
	"time"
)

func TestRunToken_RoundTrip(t *testing.T) {
	secret := "test-secret"
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	token, err := GenerateRunToken(secret, RunTokenClaims{
		RunID:         "run-123",
		PipelineName:  "training_pipeline",
		ExpiresAtUnix: now.Add(30 * time.Minute).Unix(),
	}, now)
	if err != nil {
		t.Fatalf("GenerateRunToken: %v", err)
	}

	claims, err := VerifyRunToken(secret, token, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("VerifyRunToken: %v", err)
	}
	if claims.RunID != "run-123" {
		t.Fatalf("RunID=%q, want %q", claims.RunID, "run-123")
	}
	if claims.PipelineName != "training_pipeline" {
		t.Fatalf("PipelineName=%q, want %q", claims.PipelineName, "training_pipeline")
	}
	if claims.IssuedAtUnix != now.Unix() {
		t.Fatalf("IssuedAtUnix=%d, want %d", claims.IssuedAtUnix, now.Unix())
	}
}

func TestRunToken_Expired(t *testing.T) {
	secret := "test-secret"
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	token, err := GenerateRunToken(secret, RunTokenClaims{
		RunID:         "run-123",
		ExpiresAtUnix: now.Add(1 * time.Minute).Unix(),
	}, now)
	if err != nil {
		t.Fatalf("GenerateRunToken: %v", err)
	}

	_, err = VerifyRunToken(secret, token, now.Add(2*time.Minute))
	if err != ErrRunTokenExpired {
		t.Fatalf("VerifyRunToken error=%v, want %v", err, ErrRunTokenExpired)
	}
}

func TestRunToken_TamperedSignature(t *testing.T) {
	secret := "test-secret"
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	token, err := GenerateRunToken(secret, RunTokenClaims{
		RunID:         "run-123",
		ExpiresAtUnix: now.Add(1 * time.Hour).Unix(),
	}, now)
	if err != nil {
		t.Fatalf("GenerateRunToken: %v", err)
	}

	_, err = VerifyRunToken("other-secret", token, now)
	if err != ErrRunTokenInvalid {
		t.Fatalf("VerifyRunToken error=%v, want %v", err, ErrRunTokenInvalid)
	}
}

func TestRunTokenSubject_Parse(t *testing.T) {
	subject := RunTokenSubject(RunTokenClaims{RunID: "run-123", PipelineName: "training_pipeline"})
	runID, pipelineName, ok := ParseRunTokenSubject(subject)
	if !ok {
		t.Fatalf("ParseRunTokenSubject ok=false")
	}
	if runID != "run-123" {
		t.Fatalf("runID=%q, want %q", runID, "run-123")
	}
	if pipelineName != "training_pipeline" {
		t.Fatalf("pipelineName=%q, want %q", pipelineName, "training_pipeline")
	}
}
