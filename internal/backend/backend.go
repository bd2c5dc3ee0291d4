// Package backend defines the admission interface to the execution backend.
// The trigger subsystem hands a concrete run across this boundary and owns
// nothing beyond it: scheduling, step execution and cancellation are the
// backend's concern.
package backend

import (
	"context"
	"errors"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
)

var (
	// ErrUnavailable marks transient admission failures. Callers may retry
	// the same run id.
	ErrUnavailable = errors.New("execution backend unavailable")

	// ErrRejected marks backend-side policy rejections. Retrying the same
	// request cannot succeed.
	ErrRejected = errors.New("execution backend rejected the run")
)

// Run is the concrete run request handed to the backend.
type Run struct {
	RunID        string               `json:"runId"`
	PipelineName string               `json:"pipelineName"`
	TemplateID   string               `json:"templateId"`
	RunName      string               `json:"runName,omitempty"`
	Spec         domain.MergedRunSpec `json:"spec"`

	// RunToken is a run-scoped credential the orchestrator injects into each
	// step's environment so steps can call back into the trigger API.
	RunToken string `json:"runToken,omitempty"`
}

type Backend interface {
	Submit(ctx context.Context, run Run) error
}
