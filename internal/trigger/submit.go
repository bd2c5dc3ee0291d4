package trigger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowlane-labs/flowlane-go/internal/backend"
	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
)

// Submitter converts a validated merged spec into a concrete run, persists
// the handle, and admits the run to the execution backend. The run id is
// generated before the backend is contacted so it survives partial failures.
type Submitter struct {
	backend     backend.Backend
	runs        repo.RunStore
	maxAttempts int
	retryBase   time.Duration
	now         func() time.Time
}

type SubmitterConfig struct {
	// MaxAttempts bounds backend admission attempts per trigger. Retries
	// happen only before the backend acknowledges the run id and only on
	// transient failures.
	MaxAttempts int
	RetryBase   time.Duration
}

type SubmitOptions struct {
	IdempotencyKey string
	Actor          string
}

func NewSubmitter(b backend.Backend, runs repo.RunStore, cfg SubmitterConfig) (*Submitter, error) {
	if b == nil {
		return nil, errors.New("backend is required")
	}
	if runs == nil {
		return nil, errors.New("run store is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}
	return &Submitter{
		backend:     b,
		runs:        runs,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
		now:         time.Now,
	}, nil
}

func (s *Submitter) Submit(ctx context.Context, spec domain.MergedRunSpec, opts SubmitOptions) (domain.RunHandle, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("encode merged spec: %w", err)
	}
	digest := sha256.Sum256(specJSON)
	specHash := hex.EncodeToString(digest[:])

	runID, err := newRunID()
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("generate run id: %w", err)
	}

	rec := repo.RunRecord{
		RunID:          runID,
		PipelineName:   spec.PipelineName,
		TemplateID:     spec.TemplateID,
		RunName:        spec.RunName,
		IdempotencyKey: opts.IdempotencyKey,
		Status:         domain.RunPending,
		SpecHash:       specHash,
		MergedSpec:     specJSON,
		SubmittedAt:    s.now().UTC(),
		SubmittedBy:    opts.Actor,
	}

	stored, created, err := s.runs.CreateRun(ctx, rec)
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("persist run: %w", err)
	}
	if !created {
		// An identical idempotency key already won. Same payload: return
		// the winner's handle without a second backend job. Rejected
		// winner: take over its run id and resubmit, but only one of any
		// concurrent retriers may do so — the reopen is a conditional
		// Rejected->Pending flip, and losers fall back to the winner's
		// current record.
		if stored.SpecHash != specHash {
			return domain.RunHandle{}, newError(KindIdempotencyConflict, "", "",
				"idempotency key %q was used with a different run configuration", opts.IdempotencyKey)
		}
		if stored.Status != domain.RunRejected {
			return stored.Handle(), nil
		}
		reopened, err := s.runs.ReopenRun(ctx, stored.RunID)
		if err != nil {
			return domain.RunHandle{}, fmt.Errorf("reopen run: %w", err)
		}
		if !reopened {
			current, err := s.runs.GetRun(ctx, stored.RunID)
			if err != nil {
				return domain.RunHandle{}, fmt.Errorf("read reopened run: %w", err)
			}
			return current.Handle(), nil
		}
		stored.Status = domain.RunPending
	}

	if err := s.admit(ctx, backend.Run{
		RunID:        stored.RunID,
		PipelineName: stored.PipelineName,
		TemplateID:   stored.TemplateID,
		RunName:      stored.RunName,
		Spec:         spec,
	}); err != nil {
		if statusErr := s.runs.UpdateRunStatus(ctx, stored.RunID, domain.RunRejected); statusErr != nil {
			return domain.RunHandle{}, errors.Join(err, statusErr)
		}
		return domain.RunHandle{}, err
	}
	return stored.Handle(), nil
}

// admit retries transient backend failures with exponential backoff. A
// rejection is terminal immediately.
func (s *Submitter) admit(ctx context.Context, run backend.Run) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return newError(KindBackendUnavailable, "", "", "submission canceled: %v", ctx.Err())
			case <-time.After(delay):
			}
		}
		err := s.backend.Submit(ctx, run)
		if err == nil {
			return nil
		}
		if errors.Is(err, backend.ErrRejected) {
			return newError(KindSubmissionRejected, "", "", "%v", err)
		}
		lastErr = err
		if !errors.Is(err, backend.ErrUnavailable) {
			break
		}
	}
	return newError(KindBackendUnavailable, "", "", "%v", lastErr)
}

// newRunID returns a time-ordered identifier so backend-side listings sort
// by submission time.
func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
