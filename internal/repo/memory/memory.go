// Package memory holds in-process store implementations used by dev mode
// and tests. The template store keeps the same latest-wins pointer semantics
// as the Postgres store; the run store is the single point of mutual
// exclusion for idempotency-key deduplication.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
)

type TemplateStore struct {
	mu     sync.RWMutex
	byID   map[string]domain.PipelineTemplate
	byName map[string][]string // append-only publish order, newest last
	latest map[string]string   // monotonic latest pointer per name
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		byID:   make(map[string]domain.PipelineTemplate),
		byName: make(map[string][]string),
		latest: make(map[string]string),
	}
}

func (s *TemplateStore) Publish(_ context.Context, tpl domain.PipelineTemplate) error {
	if err := tpl.ValidateBasicShape(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[tpl.TemplateID] = tpl
	s.byName[tpl.Name] = append(s.byName[tpl.Name], tpl.TemplateID)
	s.latest[tpl.Name] = tpl.TemplateID
	return nil
}

func (s *TemplateStore) Latest(_ context.Context, name string) (domain.PipelineTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.latest[name]
	if !ok {
		return domain.PipelineTemplate{}, repo.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *TemplateStore) Get(_ context.Context, name, templateID string) (domain.PipelineTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.byID[templateID]
	if !ok {
		return domain.PipelineTemplate{}, repo.ErrNotFound
	}
	if tpl.Name != name {
		return domain.PipelineTemplate{}, repo.ErrAmbiguous
	}
	return tpl, nil
}

func (s *TemplateStore) ListVersions(_ context.Context, name string, limit int) ([]domain.PipelineTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.byName[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := make([]domain.PipelineTemplate, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.byID[ids[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type RunStore struct {
	mu    sync.Mutex
	byID  map[string]repo.RunRecord
	byKey map[string]string // pipeline + "\x00" + idempotency key -> run id
}

func NewRunStore() *RunStore {
	return &RunStore{
		byID:  make(map[string]repo.RunRecord),
		byKey: make(map[string]string),
	}
}

func (s *RunStore) CreateRun(_ context.Context, rec repo.RunRecord) (repo.RunRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key := dedupeKey(rec); key != "" {
		if existingID, ok := s.byKey[key]; ok {
			return s.byID[existingID], false, nil
		}
		s.byKey[key] = rec.RunID
	}
	s.byID[rec.RunID] = rec
	return rec, true, nil
}

func (s *RunStore) GetRun(_ context.Context, runID string) (repo.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[runID]
	if !ok {
		return repo.RunRecord{}, repo.ErrNotFound
	}
	return rec, nil
}

func (s *RunStore) UpdateRunStatus(_ context.Context, runID string, status domain.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[runID]
	if !ok {
		return repo.ErrNotFound
	}
	rec.Status = status
	s.byID[runID] = rec
	return nil
}

func (s *RunStore) ReopenRun(_ context.Context, runID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[runID]
	if !ok || rec.Status != domain.RunRejected {
		return false, nil
	}
	rec.Status = domain.RunPending
	s.byID[runID] = rec
	return true, nil
}

func dedupeKey(rec repo.RunRecord) string {
	key := strings.TrimSpace(rec.IdempotencyKey)
	if key == "" {
		return ""
	}
	return rec.PipelineName + "\x00" + key
}
