package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/platform/auth"
	"github.com/flowlane-labs/flowlane-go/internal/platform/env"
)

type HTTPConfig struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration

	// RunTokenSecret, when set, mints a run-scoped bearer token into every
	// submitted run so executing steps can call back into the trigger API.
	RunTokenSecret string
	RunTokenTTL    time.Duration
}

func HTTPConfigFromEnv() (HTTPConfig, error) {
	timeout, err := env.Duration("FLOWLANE_BACKEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return HTTPConfig{}, err
	}
	runTokenTTL, err := env.Duration("FLOWLANE_RUN_TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return HTTPConfig{}, err
	}
	cfg := HTTPConfig{
		BaseURL:        env.String("FLOWLANE_BACKEND_URL", "http://localhost:8090"),
		Token:          env.String("FLOWLANE_BACKEND_TOKEN", ""),
		RequestTimeout: timeout,
		RunTokenSecret: env.String("FLOWLANE_RUN_TOKEN_SECRET", ""),
		RunTokenTTL:    runTokenTTL,
	}
	if err := cfg.Validate(); err != nil {
		return HTTPConfig{}, err
	}
	return cfg, nil
}

func (c HTTPConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("FLOWLANE_BACKEND_URL is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("FLOWLANE_BACKEND_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.RunTokenSecret) != "" && c.RunTokenTTL <= 0 {
		return errors.New("FLOWLANE_RUN_TOKEN_TTL must be positive")
	}
	return nil
}

// HTTPBackend posts runs to the orchestrator's admission endpoint. Every
// call carries a bounded timeout; the call fails with ErrUnavailable instead
// of hanging on a slow backend.
type HTTPBackend struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPBackend{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}, nil
}

func (b *HTTPBackend) Submit(ctx context.Context, run Run) error {
	if secret := strings.TrimSpace(b.cfg.RunTokenSecret); secret != "" && run.RunToken == "" {
		now := time.Now().UTC()
		token, err := auth.GenerateRunToken(secret, auth.RunTokenClaims{
			RunID:         run.RunID,
			PipelineName:  run.PipelineName,
			ExpiresAtUnix: now.Add(b.cfg.RunTokenTTL).Unix(),
		}, now)
		if err != nil {
			return fmt.Errorf("mint run token: %w", err)
		}
		run.RunToken = token
	}

	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	url := strings.TrimRight(b.cfg.BaseURL, "/") + "/runs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(b.cfg.Token) != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.Token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: backend returned %d", ErrUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: backend returned %d: %s", ErrRejected, resp.StatusCode, readReason(resp.Body))
	}
}

func readReason(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 1<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
