package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// StepClient is the in-pipeline front door: a step running inside an
// executing pipeline uses it to launch another pipeline. Credentials come
// from the run token the orchestrator injects into the step's environment.
type StepClient struct {
	client       *Client
	parentRunID  string
	pipelineName string
}

// NewStepClientFromEnv builds a StepClient from the environment of an
// executing step: FLOWLANE_API_URL for the trigger API and
// FLOWLANE_RUN_TOKEN for the run-scoped credential.
func NewStepClientFromEnv() (*StepClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("FLOWLANE_API_URL"))
	if baseURL == "" {
		return nil, errors.New("FLOWLANE_API_URL is not set; not running inside a pipeline step")
	}
	token := strings.TrimSpace(os.Getenv("FLOWLANE_RUN_TOKEN"))
	if token == "" {
		return nil, errors.New("FLOWLANE_RUN_TOKEN is not set; not running inside a pipeline step")
	}

	c, err := New(baseURL, WithToken(token))
	if err != nil {
		return nil, err
	}
	return &StepClient{
		client:       c,
		parentRunID:  strings.TrimSpace(os.Getenv("FLOWLANE_RUN_ID")),
		pipelineName: strings.TrimSpace(os.Getenv("FLOWLANE_PIPELINE_NAME")),
	}, nil
}

// NewStepClientWithCredentials builds a StepClient that authenticates with
// an OAuth2 client-credentials grant instead of a run token. Intended for
// long-lived orchestration services acting on behalf of pipelines.
func NewStepClientWithCredentials(ctx context.Context, baseURL string, cfg clientcredentials.Config) (*StepClient, error) {
	c, err := New(baseURL, WithTokenSource(cfg.TokenSource(ctx)))
	if err != nil {
		return nil, err
	}
	return &StepClient{client: c}, nil
}

// ParentRunID is the run this step belongs to, when known.
func (s *StepClient) ParentRunID() string {
	return s.parentRunID
}

// TriggerPipeline launches a run of another pipeline from inside a step.
// When no idempotency key is given, one is derived from the parent run so
// a retried step does not fan out duplicate child runs.
func (s *StepClient) TriggerPipeline(ctx context.Context, pipeline string, req TriggerRequest) (RunHandle, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" && s.parentRunID != "" {
		req.IdempotencyKey = fmt.Sprintf("run:%s:child:%s", s.parentRunID, strings.TrimSpace(pipeline))
	}
	return s.client.TriggerPipeline(ctx, pipeline, req)
}

// GetRun fetches the trigger-side record of a run.
func (s *StepClient) GetRun(ctx context.Context, runID string) (RunHandle, error) {
	return s.client.GetRun(ctx, runID)
}
