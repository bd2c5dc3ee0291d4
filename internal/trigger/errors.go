package trigger

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies trigger failures so callers can branch on them. Kinds map
// 1:1 to the REST error body and status codes.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindAmbiguousTemplate   Kind = "ambiguous_template"
	KindUnknownStep         Kind = "unknown_step"
	KindUnknownParameter    Kind = "unknown_parameter"
	KindMissingParameter    Kind = "missing_parameter"
	KindTypeMismatch        Kind = "type_mismatch"
	KindDanglingArtifactRef Kind = "dangling_artifact_reference"
	KindCycle               Kind = "cycle"
	KindIdempotencyConflict Kind = "idempotency_conflict"
	KindBackendUnavailable  Kind = "backend_unavailable"
	KindSubmissionRejected  Kind = "submission_rejected"
)

// Error carries the failure kind plus the offending step/parameter, so the
// first violation is reported unambiguously.
type Error struct {
	Kind      Kind
	Step      string
	Parameter string
	Message   string
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, string(e.Kind))
	if strings.TrimSpace(e.Step) != "" {
		loc := "step " + e.Step
		if strings.TrimSpace(e.Parameter) != "" {
			loc += " parameter " + e.Parameter
		}
		parts = append(parts, loc)
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

// Retryable reports whether retrying the identical request can succeed.
// Only transient backend failures qualify; everything else is deterministic
// given the same inputs.
func (e *Error) Retryable() bool {
	return e.Kind == KindBackendUnavailable
}

func newError(kind Kind, step, parameter, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Step:      step,
		Parameter: parameter,
		Message:   fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the trigger error kind, or "" for foreign errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
