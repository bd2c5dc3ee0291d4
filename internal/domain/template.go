package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PipelineTemplate is an immutable, versioned run template: a compiled step
// graph plus the default configuration used when a trigger supplies no
// override for a step. Republishing a pipeline name creates a new TemplateID;
// existing templates are never mutated.
type PipelineTemplate struct {
	Name          string        `json:"name" yaml:"name"`
	TemplateID    string        `json:"templateId" yaml:"templateId"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	Graph         StepGraph     `json:"graph" yaml:"graph"`
	DefaultConfig DefaultConfig `json:"defaults" yaml:"defaults"`
	PublishedAt   time.Time     `json:"publishedAt" yaml:"publishedAt"`
	PublishedBy   string        `json:"publishedBy,omitempty" yaml:"publishedBy,omitempty"`
}

// DefaultConfig maps step name to that step's default parameter values.
type DefaultConfig map[string]map[string]ParameterValue

type StepGraph struct {
	Steps        []StepSpec       `json:"steps" yaml:"steps"`
	Dependencies []DependencyEdge `json:"dependencies" yaml:"dependencies"`
}

type DependencyEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// StepSpec declares a step's parameter schema and artifact outputs.
type StepSpec struct {
	Name       string           `json:"name" yaml:"name"`
	Parameters []ParameterSpec  `json:"parameters" yaml:"parameters"`
	Outputs    []ArtifactOutput `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

type ParameterSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Type     ParamType `json:"type" yaml:"type"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

type ArtifactOutput struct {
	Name      string `json:"name" yaml:"name"`
	MediaType string `json:"mediaType,omitempty" yaml:"mediaType,omitempty"`
}

type ParamType string

const (
	ParamString   ParamType = "string"
	ParamInt      ParamType = "int"
	ParamFloat    ParamType = "float"
	ParamBool     ParamType = "bool"
	ParamArtifact ParamType = "artifact"
)

func (t ParamType) Valid() bool {
	switch t {
	case ParamString, ParamInt, ParamFloat, ParamBool, ParamArtifact:
		return true
	}
	return false
}

// StepNameSet returns the set of step names declared in the graph.
func (g StepGraph) StepNameSet() map[string]struct{} {
	names := make(map[string]struct{}, len(g.Steps))
	for _, step := range g.Steps {
		if strings.TrimSpace(step.Name) == "" {
			continue
		}
		names[step.Name] = struct{}{}
	}
	return names
}

// Step returns the declared step by name.
func (g StepGraph) Step(name string) (StepSpec, bool) {
	for _, step := range g.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return StepSpec{}, false
}

// Parameter returns the declared parameter by name.
func (s StepSpec) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// DeclaresOutput reports whether the step declares the named artifact output.
func (s StepSpec) DeclaresOutput(name string) bool {
	for _, out := range s.Outputs {
		if out.Name == name {
			return true
		}
	}
	return false
}

// ValidateBasicShape performs lightweight structural checks without DAG traversal.
func (t PipelineTemplate) ValidateBasicShape() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("pipeline name is required")
	}
	if len(t.Graph.Steps) == 0 {
		return errors.New("graph must contain at least one step")
	}
	seen := make(map[string]struct{}, len(t.Graph.Steps))
	for i, step := range t.Graph.Steps {
		name := strings.TrimSpace(step.Name)
		if name == "" {
			return fmt.Errorf("step[%d] name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate step name %q", name)
		}
		seen[name] = struct{}{}

		params := make(map[string]struct{}, len(step.Parameters))
		for j, p := range step.Parameters {
			pname := strings.TrimSpace(p.Name)
			if pname == "" {
				return fmt.Errorf("step[%s] parameter[%d] name is required", name, j)
			}
			if !p.Type.Valid() {
				return fmt.Errorf("step[%s] parameter %q has unknown type %q", name, pname, p.Type)
			}
			if _, dup := params[pname]; dup {
				return fmt.Errorf("step[%s] duplicate parameter %q", name, pname)
			}
			params[pname] = struct{}{}
		}
	}
	for _, edge := range t.Graph.Dependencies {
		from := strings.TrimSpace(edge.From)
		to := strings.TrimSpace(edge.To)
		if from == "" || to == "" {
			return errors.New("dependency edges must specify from and to")
		}
		if from == to {
			return fmt.Errorf("dependency %q has self-edge", from)
		}
		if _, ok := seen[from]; !ok {
			return fmt.Errorf("dependency from %q not found", from)
		}
		if _, ok := seen[to]; !ok {
			return fmt.Errorf("dependency to %q not found", to)
		}
	}
	return nil
}
