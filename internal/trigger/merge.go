package trigger

import (
	"sort"

	"github.com/flowlane-labs/flowlane-go/internal/domain"
)

// Merge combines a template's default configuration with a caller-supplied
// override set into one fully resolved parameter set per step. Overrides win
// key by key; a step or key absent from the overrides keeps its default.
// Merge is a pure function of its two inputs.
func Merge(tpl domain.PipelineTemplate, cfg domain.RunConfiguration) (domain.MergedRunSpec, error) {
	stepNames := tpl.Graph.StepNameSet()
	unknown := make([]string, 0)
	for name := range cfg.Overrides {
		if _, ok := stepNames[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return domain.MergedRunSpec{}, newError(KindUnknownStep, unknown[0], "",
			"override names step %q not present in pipeline %q", unknown[0], tpl.Name)
	}

	merged := domain.MergedRunSpec{
		PipelineName: tpl.Name,
		TemplateID:   tpl.TemplateID,
		RunName:      cfg.RunName,
		Steps:        make([]domain.MergedStep, 0, len(tpl.Graph.Steps)),
	}

	for _, step := range tpl.Graph.Steps {
		defaults := tpl.DefaultConfig[step.Name]
		overrides := cfg.Overrides[step.Name]

		overrideKeys := make([]string, 0, len(overrides))
		for name := range overrides {
			overrideKeys = append(overrideKeys, name)
		}
		sort.Strings(overrideKeys)
		for _, name := range overrideKeys {
			if _, declared := step.Parameter(name); !declared {
				return domain.MergedRunSpec{}, newError(KindUnknownParameter, step.Name, name,
					"override names parameter %q not declared by step %q", name, step.Name)
			}
		}

		params := make([]domain.MergedParameter, 0, len(step.Parameters))
		for _, spec := range step.Parameters {
			mp := domain.MergedParameter{Name: spec.Name}
			if v, ok := defaults[spec.Name]; ok {
				value := v
				mp.Value = &value
			}
			if v, ok := overrides[spec.Name]; ok {
				value := v
				mp.Value = &value
				mp.Overridden = true
			}
			params = append(params, mp)
		}
		merged.Steps = append(merged.Steps, domain.MergedStep{
			Name:       step.Name,
			Parameters: params,
		})
	}
	return merged, nil
}
