package trigger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flowlane-labs/flowlane-go/internal/artifacts"
	"github.com/flowlane-labs/flowlane-go/internal/backend"
	"github.com/flowlane-labs/flowlane-go/internal/domain"
	"github.com/flowlane-labs/flowlane-go/internal/repo/memory"
)

type facadeEnv struct {
	facade    *Facade
	templates *memory.TemplateStore
	backend   *backend.MemoryBackend
	resolver  *artifacts.MemoryResolver
}

func newFacadeEnv(t *testing.T) *facadeEnv {
	t.Helper()
	templates := memory.NewTemplateStore()
	runs := memory.NewRunStore()
	be := backend.NewMemoryBackend()
	resolver := artifacts.NewMemoryResolver()
	sub, err := NewSubmitter(be, runs, SubmitterConfig{MaxAttempts: 3, RetryBase: time.Millisecond})
	if err != nil {
		t.Fatalf("NewSubmitter: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	facade, err := NewFacade(templates, NewValidator(resolver), sub, logger)
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	return &facadeEnv{facade: facade, templates: templates, backend: be, resolver: resolver}
}

func (e *facadeEnv) publish(t *testing.T, tpl domain.PipelineTemplate) {
	t.Helper()
	if err := e.templates.Publish(context.Background(), tpl); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestFacade_TriggerLatest(t *testing.T) {
	env := newFacadeEnv(t)
	env.publish(t, trainingTemplate())
	env.resolver.Add("dataset-v12")

	handle, err := env.facade.Trigger(context.Background(), Request{
		PipelineName: "training_pipeline",
		Actor:        "alice@example.com",
		Config: domain.RunConfiguration{
			RunName: "nightly",
			Overrides: map[string]map[string]domain.ParameterValue{
				"trainer": {
					"epochs": lit(int64(20)),
					"data":   lit("dataset-v12"),
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if handle.PipelineName != "training_pipeline" || handle.TemplateID != "tpl-1" {
		t.Fatalf("handle=%+v", handle)
	}
	if handle.RunName != "nightly" || handle.Status != domain.RunPending {
		t.Fatalf("handle=%+v", handle)
	}

	accepted := env.backend.Accepted()
	if len(accepted) != 1 {
		t.Fatalf("accepted=%d", len(accepted))
	}
	step, ok := accepted[0].Spec.Step("trainer")
	if !ok {
		t.Fatalf("submitted spec lacks trainer step")
	}
	epochs, _ := step.Parameter("epochs")
	if epochs.Value == nil || epochs.Value.Literal != int64(20) {
		t.Fatalf("epochs=%+v", epochs)
	}
	if !epochs.Overridden {
		t.Fatalf("override flag lost in submitted spec")
	}
}

func TestFacade_UnpublishedPipeline(t *testing.T) {
	env := newFacadeEnv(t)

	_, err := env.facade.Trigger(context.Background(), Request{PipelineName: "nonexistent"})
	wantKind(t, err, KindNotFound)
}

func TestFacade_EmptyPipelineName(t *testing.T) {
	env := newFacadeEnv(t)

	_, err := env.facade.Trigger(context.Background(), Request{PipelineName: "  "})
	wantKind(t, err, KindNotFound)
}

func TestFacade_PinnedTemplate(t *testing.T) {
	env := newFacadeEnv(t)
	env.publish(t, trainingTemplate())

	v2 := trainingTemplate()
	v2.TemplateID = "tpl-2"
	v2.DefaultConfig["trainer"]["epochs"] = lit(int64(50))
	env.publish(t, v2)

	handle, err := env.facade.Trigger(context.Background(), Request{
		PipelineName: "training_pipeline",
		TemplateID:   "tpl-1",
	})
	if err != nil {
		t.Fatalf("Trigger pinned: %v", err)
	}
	if handle.TemplateID != "tpl-1" {
		t.Fatalf("TemplateID=%q", handle.TemplateID)
	}

	latest, err := env.facade.Trigger(context.Background(), Request{PipelineName: "training_pipeline"})
	if err != nil {
		t.Fatalf("Trigger latest: %v", err)
	}
	if latest.TemplateID != "tpl-2" {
		t.Fatalf("TemplateID=%q, want latest tpl-2", latest.TemplateID)
	}
}

func TestFacade_TemplateOfOtherPipeline(t *testing.T) {
	env := newFacadeEnv(t)
	env.publish(t, trainingTemplate())
	other := trainingTemplate()
	other.Name = "eval_pipeline"
	other.TemplateID = "tpl-eval"
	env.publish(t, other)

	_, err := env.facade.Trigger(context.Background(), Request{
		PipelineName: "training_pipeline",
		TemplateID:   "tpl-eval",
	})
	wantKind(t, err, KindAmbiguousTemplate)
}

func TestFacade_RejectsBeforeSubmitting(t *testing.T) {
	env := newFacadeEnv(t)
	env.publish(t, trainingTemplate())

	tests := []struct {
		name string
		cfg  domain.RunConfiguration
		kind Kind
	}{
		{
			name: "unknown step",
			cfg: domain.RunConfiguration{Overrides: map[string]map[string]domain.ParameterValue{
				"nonexistent_step": {"x": lit(int64(1))},
			}},
			kind: KindUnknownStep,
		},
		{
			name: "unknown parameter",
			cfg: domain.RunConfiguration{Overrides: map[string]map[string]domain.ParameterValue{
				"trainer": {"learning_rate": lit(0.1)},
			}},
			kind: KindUnknownParameter,
		},
		{
			name: "type mismatch",
			cfg: domain.RunConfiguration{Overrides: map[string]map[string]domain.ParameterValue{
				"trainer": {"epochs": lit("ten")},
			}},
			kind: KindTypeMismatch,
		},
		{
			name: "dangling artifact",
			cfg: domain.RunConfiguration{Overrides: map[string]map[string]domain.ParameterValue{
				"trainer": {"data": lit("no-such-artifact")},
			}},
			kind: KindDanglingArtifactRef,
		},
	}

	for _, tc := range tests {
		_, err := env.facade.Trigger(context.Background(), Request{
			PipelineName: "training_pipeline",
			Config:       tc.cfg,
		})
		wantKind(t, err, tc.kind)
	}
	if got := len(env.backend.Accepted()); got != 0 {
		t.Fatalf("backend admitted %d runs for rejected triggers", got)
	}
}

func TestFacade_BackendOutageSurfacesAsUnavailable(t *testing.T) {
	env := newFacadeEnv(t)
	env.publish(t, trainingTemplate())
	env.backend.FailNext(backend.ErrUnavailable, backend.ErrUnavailable, backend.ErrUnavailable)

	_, err := env.facade.Trigger(context.Background(), Request{PipelineName: "training_pipeline"})
	te := wantKind(t, err, KindBackendUnavailable)
	if !te.Retryable() {
		t.Fatalf("backend outage must be retryable")
	}
}
