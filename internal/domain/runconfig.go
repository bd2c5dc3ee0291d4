package domain

// RunConfiguration is the caller-supplied override set for a trigger: a
// partial mapping from step name to parameter overrides. Steps absent from
// Overrides use the template defaults unchanged.
type RunConfiguration struct {
	RunName   string                               `json:"runName,omitempty" yaml:"runName,omitempty"`
	Overrides map[string]map[string]ParameterValue `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// StepNames returns the names of all steps the configuration overrides.
func (c RunConfiguration) StepNames() []string {
	names := make([]string, 0, len(c.Overrides))
	for name := range c.Overrides {
		names = append(names, name)
	}
	return names
}

// MergedRunSpec is the validated union of a template's defaults and a
// RunConfiguration: one fully resolved parameter set per step, in step
// declaration order.
type MergedRunSpec struct {
	PipelineName string       `json:"pipelineName"`
	TemplateID   string       `json:"templateId"`
	RunName      string       `json:"runName,omitempty"`
	Steps        []MergedStep `json:"steps"`
}

type MergedStep struct {
	Name       string            `json:"name"`
	Parameters []MergedParameter `json:"parameters"`
}

// MergedParameter keeps parameter declaration order so validation failures
// are reported deterministically.
type MergedParameter struct {
	Name       string          `json:"name"`
	Value      *ParameterValue `json:"value,omitempty"`
	Overridden bool            `json:"overridden,omitempty"`
}

// Step returns the merged step by name.
func (s MergedRunSpec) Step(name string) (MergedStep, bool) {
	for _, step := range s.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return MergedStep{}, false
}

// Parameter returns the merged parameter by name.
func (s MergedStep) Parameter(name string) (MergedParameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return MergedParameter{}, false
}
