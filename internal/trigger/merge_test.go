package trigger

import (
	"errors"
	"testing"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
)

func lit(v any) domain.ParameterValue {
	return domain.ParameterValue{Literal: v}
}

func outputRef(fromStep, output string) domain.ParameterValue {
	return domain.ParameterValue{StepOutput: &domain.StepOutputRef{FromStep: fromStep, Output: output}}
}

func trainingTemplate() domain.PipelineTemplate {
	return domain.PipelineTemplate{
		Name:       "training_pipeline",
		TemplateID: "tpl-1",
		Graph: domain.StepGraph{
			Steps: []domain.StepSpec{
				{
					Name: "load_data",
					Parameters: []domain.ParameterSpec{
						{Name: "source", Type: domain.ParamString, Required: true},
					},
					Outputs: []domain.ArtifactOutput{
						{Name: "raw_data"},
					},
				},
				{
					Name: "trainer",
					Parameters: []domain.ParameterSpec{
						{Name: "epochs", Type: domain.ParamInt, Required: true},
						{Name: "data", Type: domain.ParamArtifact, Required: true},
					},
				},
			},
			Dependencies: []domain.DependencyEdge{
				{From: "load_data", To: "trainer"},
			},
		},
		DefaultConfig: domain.DefaultConfig{
			"load_data": {"source": lit("s3://datasets/default")},
			"trainer": {
				"epochs": lit(int64(10)),
				"data":   outputRef("load_data", "raw_data"),
			},
		},
	}
}

func wantKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %q", kind)
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("error type=%T (%v), want *Error", err, err)
	}
	if te.Kind != kind {
		t.Fatalf("kind=%q (%v), want %q", te.Kind, te, kind)
	}
	return te
}

func TestMerge_OverrideWinsKeyByKey(t *testing.T) {
	tpl := trainingTemplate()

	merged, err := Merge(tpl, domain.RunConfiguration{
		RunName: "nightly",
		Overrides: map[string]map[string]domain.ParameterValue{
			"trainer": {"epochs": lit(int64(20))},
		},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if merged.PipelineName != "training_pipeline" || merged.TemplateID != "tpl-1" {
		t.Fatalf("identity not carried: %+v", merged)
	}
	if merged.RunName != "nightly" {
		t.Fatalf("RunName=%q", merged.RunName)
	}

	trainer, ok := merged.Step("trainer")
	if !ok {
		t.Fatalf("trainer step missing")
	}
	epochs, _ := trainer.Parameter("epochs")
	if epochs.Value == nil || epochs.Value.Literal != int64(20) {
		t.Fatalf("epochs=%+v, want overridden 20", epochs)
	}
	if !epochs.Overridden {
		t.Fatalf("epochs not marked overridden")
	}

	// The untouched key of the same step keeps its default.
	data, _ := trainer.Parameter("data")
	if data.Value == nil || data.Value.StepOutput == nil || data.Value.StepOutput.FromStep != "load_data" {
		t.Fatalf("data=%+v, want default step-output reference", data)
	}
	if data.Overridden {
		t.Fatalf("data wrongly marked overridden")
	}

	loadData, _ := merged.Step("load_data")
	source, _ := loadData.Parameter("source")
	if source.Value == nil || source.Value.Literal != "s3://datasets/default" {
		t.Fatalf("source=%+v, want default", source)
	}
}

func TestMerge_StepsKeepDeclarationOrder(t *testing.T) {
	merged, err := Merge(trainingTemplate(), domain.RunConfiguration{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.Steps) != 2 || merged.Steps[0].Name != "load_data" || merged.Steps[1].Name != "trainer" {
		t.Fatalf("step order=%+v", merged.Steps)
	}
}

func TestMerge_UnknownStep(t *testing.T) {
	_, err := Merge(trainingTemplate(), domain.RunConfiguration{
		Overrides: map[string]map[string]domain.ParameterValue{
			"zeta_step": {"x": lit(int64(1))},
			"alpha_step": {"x": lit(int64(1))},
		},
	})
	te := wantKind(t, err, KindUnknownStep)
	// With several unknown steps the lexicographically first is reported, so
	// the failure is deterministic across runs.
	if te.Step != "alpha_step" {
		t.Fatalf("Step=%q, want alpha_step", te.Step)
	}
}

func TestMerge_UnknownParameter(t *testing.T) {
	_, err := Merge(trainingTemplate(), domain.RunConfiguration{
		Overrides: map[string]map[string]domain.ParameterValue{
			"trainer": {"learning_rate": lit(0.1)},
		},
	})
	te := wantKind(t, err, KindUnknownParameter)
	if te.Step != "trainer" || te.Parameter != "learning_rate" {
		t.Fatalf("location=%q/%q", te.Step, te.Parameter)
	}
}

func TestMerge_EmptyConfigurationUsesDefaults(t *testing.T) {
	merged, err := Merge(trainingTemplate(), domain.RunConfiguration{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	for _, step := range merged.Steps {
		for _, p := range step.Parameters {
			if p.Overridden {
				t.Fatalf("step %s parameter %s marked overridden without overrides", step.Name, p.Name)
			}
		}
	}
}
