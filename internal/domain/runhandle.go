package domain

import "time"

// RunStatus is the trigger-side view of a run's lifecycle. Once a run is
// handed to the execution backend the backend owns all further transitions;
// the trigger subsystem only originates Pending and terminal Rejected.
type RunStatus string

const (
	RunPending  RunStatus = "Pending"
	RunRejected RunStatus = "Rejected"
)

// RunHandle is returned to a caller after successful submission.
type RunHandle struct {
	RunID        string    `json:"runId"`
	TemplateID   string    `json:"templateId"`
	PipelineName string    `json:"pipelineName"`
	RunName      string    `json:"runName,omitempty"`
	Status       RunStatus `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
}
