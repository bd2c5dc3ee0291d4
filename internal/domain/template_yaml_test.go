package domain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseTemplateYAML_ReferenceDocument(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "api", "run_template.yaml"))
	if err != nil {
		t.Fatalf("read reference document: %v", err)
	}

	tpl, err := ParseTemplateYAML(raw)
	if err != nil {
		t.Fatalf("ParseTemplateYAML: %v", err)
	}
	if tpl.Name != "training_pipeline" {
		t.Fatalf("Name=%q", tpl.Name)
	}
	if tpl.TemplateID != "" {
		t.Fatalf("documents must not carry a template id, got %q", tpl.TemplateID)
	}
	if len(tpl.Graph.Steps) != 2 {
		t.Fatalf("steps=%d", len(tpl.Graph.Steps))
	}

	trainer, ok := tpl.Graph.Step("trainer")
	if !ok {
		t.Fatalf("trainer step missing")
	}
	data, ok := trainer.Parameter("data")
	if !ok || data.Type != ParamArtifact || !data.Required {
		t.Fatalf("data parameter=%+v", data)
	}

	epochs := tpl.DefaultConfig["trainer"]["epochs"]
	if epochs.Literal != int64(10) {
		t.Fatalf("default epochs=%#v", epochs.Literal)
	}
	ref := tpl.DefaultConfig["trainer"]["data"].StepOutput
	if ref == nil || ref.FromStep != "load_data" || ref.Output != "raw_data" {
		t.Fatalf("default data ref=%+v", ref)
	}
	if !tpl.DefaultConfig["load_data"]["sample_fraction"].MatchesType(ParamFloat) {
		t.Fatalf("sample_fraction default should satisfy its declared type")
	}
}

func TestParseTemplateYAML_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty document", "   \n"},
		{"unknown field", "name: p\nowner: me\ngraph:\n  steps:\n    - name: s\n"},
		{"multiple documents", "name: p\ngraph:\n  steps:\n    - name: s\n---\nname: q\ngraph:\n  steps:\n    - name: s\n"},
		{"missing name", "graph:\n  steps:\n    - name: s\n"},
		{"no steps", "name: p\ngraph:\n  steps: []\n"},
		{"duplicate step", "name: p\ngraph:\n  steps:\n    - name: s\n    - name: s\n"},
		{"unknown parameter type", "name: p\ngraph:\n  steps:\n    - name: s\n      parameters:\n        - name: x\n          type: decimal\n"},
		{"dependency self edge", "name: p\ngraph:\n  steps:\n    - name: s\n  dependencies:\n    - from: s\n      to: s\n"},
		{"dependency to unknown step", "name: p\ngraph:\n  steps:\n    - name: s\n  dependencies:\n    - from: s\n      to: ghost\n"},
	}

	for _, tc := range tests {
		if _, err := ParseTemplateYAML([]byte(tc.raw)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestValidateBasicShape_DuplicateParameter(t *testing.T) {
	tpl := PipelineTemplate{
		Name: "p",
		Graph: StepGraph{Steps: []StepSpec{{
			Name: "s",
			Parameters: []ParameterSpec{
				{Name: "x", Type: ParamInt},
				{Name: "x", Type: ParamString},
			},
		}}},
	}
	if err := tpl.ValidateBasicShape(); err == nil {
		t.Fatalf("expected duplicate parameter error")
	}
}
