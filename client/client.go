// Package client is the Go SDK for the flowlane trigger API. It covers the
// two script-side front doors: publishing run templates and triggering runs
// from a local machine or CI job.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Kinds mirror the error taxonomy of the trigger API. A non-2xx response
// with a recognizable body decodes into *Error carrying one of these.
const (
	KindNotFound            = "not_found"
	KindAmbiguousTemplate   = "ambiguous_template"
	KindUnknownStep         = "unknown_step"
	KindUnknownParameter    = "unknown_parameter"
	KindMissingParameter    = "missing_parameter"
	KindTypeMismatch        = "type_mismatch"
	KindDanglingArtifactRef = "dangling_artifact_reference"
	KindCycle               = "cycle"
	KindIdempotencyConflict = "idempotency_conflict"
	KindBackendUnavailable  = "backend_unavailable"
	KindSubmissionRejected  = "submission_rejected"
)

// Error is a structured rejection from the trigger API.
type Error struct {
	Kind       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("flowlane api error (status=%d, kind=%s)", e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the API error kind, or "" for transport and decode errors.
func KindOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sets a static bearer token for every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithTokenSource fetches a bearer token per request, e.g. from an OAuth2
// client-credentials flow.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokenSource = ts }
}

type Client struct {
	baseURL     string
	http        *http.Client
	token       string
	tokenSource oauth2.TokenSource
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		return nil, errors.New("http client is required")
	}
	return c, nil
}

// TriggerRequest selects a template, names the run and overrides step
// parameters. Overrides maps step name to parameter name to value; a value
// is a literal, or an object {"fromStep": ..., "output": ...} referencing
// another step's artifact output.
type TriggerRequest struct {
	TemplateID string                    `json:"templateId,omitempty"`
	RunName    string                    `json:"runName,omitempty"`
	Overrides  map[string]map[string]any `json:"overrides,omitempty"`

	// IdempotencyKey travels in the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

type RunHandle struct {
	RunID        string    `json:"runId"`
	TemplateID   string    `json:"templateId"`
	PipelineName string    `json:"pipelineName"`
	RunName      string    `json:"runName,omitempty"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

type TemplateInfo struct {
	TemplateID   string    `json:"templateId"`
	PipelineName string    `json:"pipelineName"`
	Description  string    `json:"description,omitempty"`
	PublishedAt  time.Time `json:"publishedAt"`
	PublishedBy  string    `json:"publishedBy,omitempty"`
}

// TriggerPipeline launches a run of the named pipeline and returns its
// handle. The server replies before the run executes; a handle only means
// the run was accepted for execution.
func (c *Client) TriggerPipeline(ctx context.Context, pipeline string, req TriggerRequest) (RunHandle, error) {
	pipeline = strings.TrimSpace(pipeline)
	if pipeline == "" {
		return RunHandle{}, errors.New("pipeline name is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return RunHandle{}, fmt.Errorf("marshal trigger request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/pipelines/"+url.PathEscape(pipeline)+"/trigger", bytes.NewReader(body))
	if err != nil {
		return RunHandle{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}

	var handle RunHandle
	if err := c.do(httpReq, &handle); err != nil {
		return RunHandle{}, err
	}
	return handle, nil
}

// TemplateSpec is the publish payload: the compiled step graph plus default
// parameter values per step. The pipeline name comes from the URL.
type TemplateSpec struct {
	Description string                    `json:"description,omitempty"`
	Graph       json.RawMessage           `json:"graph"`
	Defaults    map[string]map[string]any `json:"defaults,omitempty"`
}

// PublishTemplate registers a new template version for the pipeline and
// advances the latest pointer to it.
func (c *Client) PublishTemplate(ctx context.Context, pipeline string, spec TemplateSpec) (TemplateInfo, error) {
	pipeline = strings.TrimSpace(pipeline)
	if pipeline == "" {
		return TemplateInfo{}, errors.New("pipeline name is required")
	}

	body, err := json.Marshal(spec)
	if err != nil {
		return TemplateInfo{}, fmt.Errorf("marshal template spec: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/pipelines/"+url.PathEscape(pipeline)+"/templates", bytes.NewReader(body))
	if err != nil {
		return TemplateInfo{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var info TemplateInfo
	if err := c.do(httpReq, &info); err != nil {
		return TemplateInfo{}, err
	}
	return info, nil
}

// PublishTemplateYAML publishes a template authored as a YAML document.
func (c *Client) PublishTemplateYAML(ctx context.Context, pipeline string, doc []byte) (TemplateInfo, error) {
	pipeline = strings.TrimSpace(pipeline)
	if pipeline == "" {
		return TemplateInfo{}, errors.New("pipeline name is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/pipelines/"+url.PathEscape(pipeline)+"/templates", bytes.NewReader(doc))
	if err != nil {
		return TemplateInfo{}, err
	}
	httpReq.Header.Set("Content-Type", "application/yaml")

	var info TemplateInfo
	if err := c.do(httpReq, &info); err != nil {
		return TemplateInfo{}, err
	}
	return info, nil
}

// ListTemplates returns every published version for the pipeline, newest
// first.
func (c *Client) ListTemplates(ctx context.Context, pipeline string) ([]TemplateInfo, error) {
	pipeline = strings.TrimSpace(pipeline)
	if pipeline == "" {
		return nil, errors.New("pipeline name is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/pipelines/"+url.PathEscape(pipeline)+"/templates", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Templates []TemplateInfo `json:"templates"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

// GetRun fetches the trigger-side record of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (RunHandle, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return RunHandle{}, errors.New("run id is required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return RunHandle{}, err
	}

	var handle RunHandle
	if err := c.do(httpReq, &handle); err != nil {
		return RunHandle{}, err
	}
	return handle, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return fmt.Errorf("fetch token: %w", err)
		}
		token.SetAuthHeader(req)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	var apiErr struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Kind != "" {
		return &Error{Kind: apiErr.Kind, Message: apiErr.Message, StatusCode: resp.StatusCode}
	}
	return &Error{
		Kind:       "unexpected_response",
		Message:    strings.TrimSpace(string(body)),
		StatusCode: resp.StatusCode,
	}
}
