package trigger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/repo"
)

// State tracks a trigger through the façade's straight-line pipeline. No
// state is ever re-entered; a failure short-circuits to StateRejected.
type State string

const (
	StateReceived  State = "received"
	StateResolved  State = "resolved"
	StateMerged    State = "merged"
	StateValidated State = "validated"
	StateSubmitted State = "submitted"
	StateRejected  State = "rejected"
)

// Request is the single trigger contract shared by the local-script client,
// the in-pipeline step client and the REST endpoint.
type Request struct {
	PipelineName string
	// TemplateID pins a specific template version. Empty means latest.
	TemplateID     string
	Config         domain.RunConfiguration
	IdempotencyKey string
	Actor          string
}

// Facade resolves, merges, validates and submits a trigger. All
// dependencies are explicit; concurrent triggers share nothing but the
// template store's latest pointer.
type Facade struct {
	templates repo.TemplateStore
	validator *Validator
	submitter *Submitter
	logger    *slog.Logger
}

func NewFacade(templates repo.TemplateStore, validator *Validator, submitter *Submitter, logger *slog.Logger) (*Facade, error) {
	if templates == nil {
		return nil, errors.New("template store is required")
	}
	if validator == nil {
		return nil, errors.New("validator is required")
	}
	if submitter == nil {
		return nil, errors.New("submitter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		templates: templates,
		validator: validator,
		submitter: submitter,
		logger:    logger,
	}, nil
}

// Trigger launches a run of the named pipeline's template, applying the
// caller's overrides. The template is resolved exactly once: a republish
// while the trigger is in flight does not affect it.
func (f *Facade) Trigger(ctx context.Context, req Request) (domain.RunHandle, error) {
	name := strings.TrimSpace(req.PipelineName)
	if name == "" {
		return domain.RunHandle{}, newError(KindNotFound, "", "", "pipeline name is required")
	}

	tpl, err := f.resolve(ctx, name, strings.TrimSpace(req.TemplateID))
	if err != nil {
		return f.reject(StateReceived, name, err)
	}

	merged, err := Merge(tpl, req.Config)
	if err != nil {
		return f.reject(StateResolved, name, err)
	}

	if err := f.validator.Validate(ctx, tpl.Graph, merged); err != nil {
		return f.reject(StateMerged, name, err)
	}

	handle, err := f.submitter.Submit(ctx, merged, SubmitOptions{
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Actor:          strings.TrimSpace(req.Actor),
	})
	if err != nil {
		return f.reject(StateValidated, name, err)
	}

	f.logger.Info("run triggered",
		"pipeline", name,
		"template_id", handle.TemplateID,
		"run_id", handle.RunID,
		"status", string(handle.Status),
	)
	return handle, nil
}

func (f *Facade) resolve(ctx context.Context, name, templateID string) (domain.PipelineTemplate, error) {
	var (
		tpl domain.PipelineTemplate
		err error
	)
	if templateID == "" {
		tpl, err = f.templates.Latest(ctx, name)
	} else {
		tpl, err = f.templates.Get(ctx, name, templateID)
	}
	if err == nil {
		return tpl, nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return domain.PipelineTemplate{}, newError(KindNotFound, "", "",
			"no template published for pipeline %q", name)
	}
	if errors.Is(err, repo.ErrAmbiguous) {
		return domain.PipelineTemplate{}, newError(KindAmbiguousTemplate, "", "",
			"template %q does not belong to pipeline %q", templateID, name)
	}
	return domain.PipelineTemplate{}, err
}

func (f *Facade) reject(last State, pipeline string, err error) (domain.RunHandle, error) {
	f.logger.Info("trigger rejected",
		"pipeline", pipeline,
		"last_state", string(last),
		"kind", string(KindOf(err)),
		"error", err.Error(),
	)
	return domain.RunHandle{}, err
}
