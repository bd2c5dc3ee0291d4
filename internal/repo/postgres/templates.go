package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
)

// TemplateStore keeps templates append-only in pipeline_templates and the
// per-name latest pointer in pipeline_latest. Publish issues two statements;
// run it on a transaction so a Latest lookup never observes a half-published
// template.
type TemplateStore struct {
	db DB
}

const (
	insertTemplateQuery = `INSERT INTO pipeline_templates (
		template_id,
		pipeline_name,
		description,
		graph,
		defaults,
		published_at,
		published_by
	) VALUES ($1,$2,$3,$4,$5,$6,$7)`

	advanceLatestQuery = `INSERT INTO pipeline_latest (pipeline_name, template_id, published_at)
	 VALUES ($1,$2,$3)
	 ON CONFLICT (pipeline_name) DO UPDATE
	 SET template_id = EXCLUDED.template_id, published_at = EXCLUDED.published_at`

	selectLatestTemplateQuery = `SELECT t.template_id, t.pipeline_name, t.description, t.graph, t.defaults, t.published_at, t.published_by
	 FROM pipeline_latest l
	 JOIN pipeline_templates t ON t.template_id = l.template_id
	 WHERE l.pipeline_name = $1`

	selectTemplateByIDQuery = `SELECT template_id, pipeline_name, description, graph, defaults, published_at, published_by
	 FROM pipeline_templates
	 WHERE template_id = $1`

	selectTemplateVersionsQuery = `SELECT template_id, pipeline_name, description, graph, defaults, published_at, published_by
	 FROM pipeline_templates
	 WHERE pipeline_name = $1
	 ORDER BY published_at DESC
	 LIMIT $2`
)

func NewTemplateStore(db DB) *TemplateStore {
	if db == nil {
		return nil
	}
	return &TemplateStore{db: db}
}

func (s *TemplateStore) Publish(ctx context.Context, tpl domain.PipelineTemplate) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("template store not initialized")
	}
	if strings.TrimSpace(tpl.TemplateID) == "" {
		return fmt.Errorf("template id is required")
	}
	if strings.TrimSpace(tpl.Name) == "" {
		return fmt.Errorf("pipeline name is required")
	}

	graphJSON, err := encodeJSON(tpl.Graph)
	if err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	defaults := tpl.DefaultConfig
	if defaults == nil {
		defaults = domain.DefaultConfig{}
	}
	defaultsJSON, err := encodeJSON(defaults)
	if err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	publishedAt := normalizeTime(tpl.PublishedAt)

	if _, err := s.db.ExecContext(
		ctx,
		insertTemplateQuery,
		tpl.TemplateID,
		tpl.Name,
		nullString(strings.TrimSpace(tpl.Description)),
		graphJSON,
		defaultsJSON,
		publishedAt,
		nullString(strings.TrimSpace(tpl.PublishedBy)),
	); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, advanceLatestQuery, tpl.Name, tpl.TemplateID, publishedAt); err != nil {
		return fmt.Errorf("advance latest pointer: %w", err)
	}
	return nil
}

func (s *TemplateStore) Latest(ctx context.Context, name string) (domain.PipelineTemplate, error) {
	if s == nil || s.db == nil {
		return domain.PipelineTemplate{}, fmt.Errorf("template store not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.PipelineTemplate{}, fmt.Errorf("pipeline name is required")
	}
	return s.scanTemplate(s.db.QueryRowContext(ctx, selectLatestTemplateQuery, name))
}

func (s *TemplateStore) Get(ctx context.Context, name, templateID string) (domain.PipelineTemplate, error) {
	if s == nil || s.db == nil {
		return domain.PipelineTemplate{}, fmt.Errorf("template store not initialized")
	}
	name = strings.TrimSpace(name)
	templateID = strings.TrimSpace(templateID)
	if name == "" {
		return domain.PipelineTemplate{}, fmt.Errorf("pipeline name is required")
	}
	if templateID == "" {
		return domain.PipelineTemplate{}, fmt.Errorf("template id is required")
	}
	tpl, err := s.scanTemplate(s.db.QueryRowContext(ctx, selectTemplateByIDQuery, templateID))
	if err != nil {
		return domain.PipelineTemplate{}, err
	}
	if tpl.Name != name {
		return domain.PipelineTemplate{}, repo.ErrAmbiguous
	}
	return tpl, nil
}

func (s *TemplateStore) ListVersions(ctx context.Context, name string, limit int) ([]domain.PipelineTemplate, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("template store not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("pipeline name is required")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectTemplateVersionsQuery, name, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PipelineTemplate, 0, limit)
	for rows.Next() {
		tpl, err := scanTemplateRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, repo.ErrNotFound
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TemplateStore) scanTemplate(row rowScanner) (domain.PipelineTemplate, error) {
	tpl, err := scanTemplateRow(row.Scan)
	if err != nil {
		return domain.PipelineTemplate{}, handleNotFound(err)
	}
	return tpl, nil
}

func scanTemplateRow(scan func(dest ...any) error) (domain.PipelineTemplate, error) {
	var (
		tpl          domain.PipelineTemplate
		description  sql.NullString
		publishedBy  sql.NullString
		graphJSON    []byte
		defaultsJSON []byte
		publishedAt  time.Time
	)
	if err := scan(
		&tpl.TemplateID,
		&tpl.Name,
		&description,
		&graphJSON,
		&defaultsJSON,
		&publishedAt,
		&publishedBy,
	); err != nil {
		return domain.PipelineTemplate{}, err
	}
	graph, err := decodeGraph(graphJSON)
	if err != nil {
		return domain.PipelineTemplate{}, err
	}
	defaults, err := decodeDefaults(defaultsJSON)
	if err != nil {
		return domain.PipelineTemplate{}, err
	}
	tpl.Description = description.String
	tpl.PublishedBy = publishedBy.String
	tpl.Graph = graph
	tpl.DefaultConfig = defaults
	tpl.PublishedAt = publishedAt
	return tpl, nil
}
