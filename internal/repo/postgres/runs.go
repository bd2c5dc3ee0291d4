package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
)

// RunStore persists triggered runs. Idempotency-key deduplication rides on
// the (pipeline_name, idempotency_key) unique index: the losing insert sees
// no row back and re-reads the winner's record.
type RunStore struct {
	db DB
}

const (
	insertRunQuery = `INSERT INTO runs (
		run_id,
		pipeline_name,
		template_id,
		run_name,
		idempotency_key,
		status,
		spec_hash,
		merged_spec,
		submitted_at,
		submitted_by
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (pipeline_name, idempotency_key) DO NOTHING
	RETURNING run_id, pipeline_name, template_id, run_name, idempotency_key, status, spec_hash, merged_spec, submitted_at, submitted_by`

	selectRunByIDQuery = `SELECT run_id, pipeline_name, template_id, run_name, idempotency_key, status, spec_hash, merged_spec, submitted_at, submitted_by
	 FROM runs
	 WHERE run_id = $1`

	selectRunByKeyQuery = `SELECT run_id, pipeline_name, template_id, run_name, idempotency_key, status, spec_hash, merged_spec, submitted_at, submitted_by
	 FROM runs
	 WHERE pipeline_name = $1 AND idempotency_key = $2`

	updateRunStatusQuery = `UPDATE runs SET status = $2 WHERE run_id = $1`

	reopenRunQuery = `UPDATE runs SET status = $2 WHERE run_id = $1 AND status = $3`
)

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, rec repo.RunRecord) (repo.RunRecord, bool, error) {
	if s == nil || s.db == nil {
		return repo.RunRecord{}, false, fmt.Errorf("run store not initialized")
	}
	if strings.TrimSpace(rec.RunID) == "" {
		return repo.RunRecord{}, false, fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(rec.PipelineName) == "" {
		return repo.RunRecord{}, false, fmt.Errorf("pipeline name is required")
	}
	if strings.TrimSpace(rec.TemplateID) == "" {
		return repo.RunRecord{}, false, fmt.Errorf("template id is required")
	}
	if strings.TrimSpace(rec.SpecHash) == "" {
		return repo.RunRecord{}, false, fmt.Errorf("spec hash is required")
	}
	if len(rec.MergedSpec) == 0 {
		return repo.RunRecord{}, false, fmt.Errorf("merged spec is required")
	}
	if rec.Status == "" {
		rec.Status = domain.RunPending
	}
	rec.SubmittedAt = normalizeTime(rec.SubmittedAt)

	stored, err := s.scanRun(s.db.QueryRowContext(
		ctx,
		insertRunQuery,
		rec.RunID,
		rec.PipelineName,
		rec.TemplateID,
		nullString(strings.TrimSpace(rec.RunName)),
		nullString(strings.TrimSpace(rec.IdempotencyKey)),
		string(rec.Status),
		rec.SpecHash,
		rec.MergedSpec,
		rec.SubmittedAt,
		nullString(strings.TrimSpace(rec.SubmittedBy)),
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.RunRecord{}, false, fmt.Errorf("insert run: %w", err)
	}

	existing, err := s.getRunByKey(ctx, rec.PipelineName, rec.IdempotencyKey)
	if err != nil {
		return repo.RunRecord{}, false, err
	}
	return existing, false, nil
}

func (s *RunStore) GetRun(ctx context.Context, runID string) (repo.RunRecord, error) {
	if s == nil || s.db == nil {
		return repo.RunRecord{}, fmt.Errorf("run store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return repo.RunRecord{}, fmt.Errorf("run id is required")
	}
	return s.scanRun(s.db.QueryRowContext(ctx, selectRunByIDQuery, runID))
}

func (s *RunStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	result, err := s.db.ExecContext(ctx, updateRunStatusQuery, runID, string(status))
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ReopenRun is a conditional update so concurrent retries race on the row
// predicate instead of on a read-then-write: only the caller whose UPDATE
// matched the Rejected row reports reopened.
func (s *RunStore) ReopenRun(ctx context.Context, runID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("run store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return false, fmt.Errorf("run id is required")
	}
	result, err := s.db.ExecContext(ctx, reopenRunQuery, runID, string(domain.RunPending), string(domain.RunRejected))
	if err != nil {
		return false, fmt.Errorf("reopen run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *RunStore) getRunByKey(ctx context.Context, pipelineName, idempotencyKey string) (repo.RunRecord, error) {
	return s.scanRun(s.db.QueryRowContext(ctx, selectRunByKeyQuery, pipelineName, idempotencyKey))
}

func (s *RunStore) scanRun(row rowScanner) (repo.RunRecord, error) {
	var (
		rec            repo.RunRecord
		runName        sql.NullString
		idempotencyKey sql.NullString
		submittedBy    sql.NullString
		status         string
	)
	if err := row.Scan(
		&rec.RunID,
		&rec.PipelineName,
		&rec.TemplateID,
		&runName,
		&idempotencyKey,
		&status,
		&rec.SpecHash,
		&rec.MergedSpec,
		&rec.SubmittedAt,
		&submittedBy,
	); err != nil {
		return repo.RunRecord{}, handleNotFound(err)
	}
	rec.RunName = runName.String
	rec.IdempotencyKey = idempotencyKey.String
	rec.SubmittedBy = submittedBy.String
	rec.Status = domain.RunStatus(status)
	return rec, nil
}
