package repo

import (
	"context"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
)

// RunRecord is the durable form of a submitted (or rejected) run.
type RunRecord struct {
	RunID          string
	PipelineName   string
	TemplateID     string
	RunName        string
	IdempotencyKey string
	Status         domain.RunStatus
	SpecHash       string
	MergedSpec     []byte
	SubmittedAt    time.Time
	SubmittedBy    string
}

// Handle converts the record into the caller-facing run handle.
func (r RunRecord) Handle() domain.RunHandle {
	return domain.RunHandle{
		RunID:        r.RunID,
		TemplateID:   r.TemplateID,
		PipelineName: r.PipelineName,
		RunName:      r.RunName,
		Status:       r.Status,
		SubmittedAt:  r.SubmittedAt,
	}
}

// TemplateStore keeps pipeline templates append-only and tracks the latest
// published template per pipeline name. A Latest lookup never observes a
// partially published template.
type TemplateStore interface {
	Publish(ctx context.Context, tpl domain.PipelineTemplate) error
	Latest(ctx context.Context, name string) (domain.PipelineTemplate, error)
	Get(ctx context.Context, name, templateID string) (domain.PipelineTemplate, error)
	ListVersions(ctx context.Context, name string, limit int) ([]domain.PipelineTemplate, error)
}

// RunStore persists run records. CreateRun deduplicates on
// (pipeline_name, idempotency_key) when a key is present: under concurrent
// identical-key submissions exactly one caller wins and the others receive
// the winner's record with created=false.
// ReopenRun flips a Rejected run back to Pending so a retry can resubmit
// it. The flip is conditional on the run still being Rejected: under
// concurrent retries of the same idempotency key exactly one caller sees
// reopened=true and owns the resubmission, the rest keep the winner's
// record untouched.
type RunStore interface {
	CreateRun(ctx context.Context, rec RunRecord) (RunRecord, bool, error)
	GetRun(ctx context.Context, runID string) (RunRecord, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error
	ReopenRun(ctx context.Context, runID string) (reopened bool, err error)
}
