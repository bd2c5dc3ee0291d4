package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/platform/auditlog"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
	repopg "github.com/flowlane-labs/flowlane-go/internal/repo/postgres"
)

// templatePublisher stores a template and its audit event as one unit. A
// failed publish must leave neither an orphan template version nor a stray
// audit row behind.
type templatePublisher interface {
	PublishTemplate(ctx context.Context, tpl domain.PipelineTemplate, event auditlog.Event) error
}

// txTemplatePublisher runs the template insert, the latest-pointer advance,
// and the audit insert on a single transaction.
type txTemplatePublisher struct {
	db *sql.DB
}

func (p txTemplatePublisher) PublishTemplate(ctx context.Context, tpl domain.PipelineTemplate, event auditlog.Event) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := repopg.NewTemplateStore(tx).Publish(ctx, tpl); err != nil {
		return err
	}
	if _, err := auditlog.Insert(ctx, tx, event); err != nil {
		return fmt.Errorf("audit publish: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

// memTemplatePublisher backs the dev/memory store mode, which has no
// durable audit sink.
type memTemplatePublisher struct {
	store repo.TemplateStore
}

func (p memTemplatePublisher) PublishTemplate(ctx context.Context, tpl domain.PipelineTemplate, _ auditlog.Event) error {
	return p.store.Publish(ctx, tpl)
}
