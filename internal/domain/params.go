package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParameterValue is a trigger-time value for a step parameter: either a
// literal scalar or a reference to an artifact produced by an upstream step.
// A plain string assigned to an artifact-typed parameter is taken as an
// externally addressable artifact id.
type ParameterValue struct {
	Literal    any
	StepOutput *StepOutputRef
}

// StepOutputRef points at a named artifact output of another step in the
// same graph.
type StepOutputRef struct {
	FromStep string `json:"fromStep" yaml:"fromStep"`
	Output   string `json:"output" yaml:"output"`
}

// IsArtifactRef reports whether the value is an artifact reference rather
// than a plain literal, given the declared parameter type.
func (v ParameterValue) IsArtifactRef(t ParamType) bool {
	if v.StepOutput != nil {
		return true
	}
	if t != ParamArtifact {
		return false
	}
	_, ok := v.Literal.(string)
	return ok
}

// ArtifactID returns the external artifact id carried by the value, if any.
func (v ParameterValue) ArtifactID() (string, bool) {
	if v.StepOutput != nil {
		return "", false
	}
	s, ok := v.Literal.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// MatchesType reports whether the value is assignable to the declared type.
func (v ParameterValue) MatchesType(t ParamType) bool {
	switch t {
	case ParamArtifact:
		if v.StepOutput != nil {
			return v.StepOutput.FromStep != "" && v.StepOutput.Output != ""
		}
		s, ok := v.Literal.(string)
		return ok && strings.TrimSpace(s) != ""
	case ParamString:
		_, ok := v.Literal.(string)
		return v.StepOutput == nil && ok
	case ParamInt:
		if v.StepOutput != nil {
			return false
		}
		switch n := v.Literal.(type) {
		case int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case ParamFloat:
		if v.StepOutput != nil {
			return false
		}
		switch v.Literal.(type) {
		case int64, float64:
			return true
		}
		return false
	case ParamBool:
		_, ok := v.Literal.(bool)
		return v.StepOutput == nil && ok
	}
	return false
}

func (v ParameterValue) MarshalJSON() ([]byte, error) {
	if v.StepOutput != nil {
		return json.Marshal(v.StepOutput)
	}
	return json.Marshal(v.Literal)
}

func (v *ParameterValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return errors.New("parameter value must not be null")
	}
	if strings.HasPrefix(trimmed, "{") {
		var ref StepOutputRef
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&ref); err != nil {
			return fmt.Errorf("object parameter values must be step-output references: %w", err)
		}
		if strings.TrimSpace(ref.FromStep) == "" || strings.TrimSpace(ref.Output) == "" {
			return errors.New("step-output reference requires fromStep and output")
		}
		v.StepOutput = &ref
		v.Literal = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		return errors.New("array parameter values are not supported")
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	v.StepOutput = nil
	v.Literal = normalizeScalar(raw)
	return nil
}

func (v ParameterValue) MarshalYAML() (any, error) {
	if v.StepOutput != nil {
		return v.StepOutput, nil
	}
	return v.Literal, nil
}

func (v *ParameterValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var ref StepOutputRef
		if err := node.Decode(&ref); err != nil {
			return fmt.Errorf("mapping parameter values must be step-output references: %w", err)
		}
		if strings.TrimSpace(ref.FromStep) == "" || strings.TrimSpace(ref.Output) == "" {
			return errors.New("step-output reference requires fromStep and output")
		}
		v.StepOutput = &ref
		v.Literal = nil
		return nil
	case yaml.ScalarNode:
		var raw any
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw == nil {
			return errors.New("parameter value must not be null")
		}
		v.StepOutput = nil
		v.Literal = normalizeScalar(raw)
		return nil
	}
	return errors.New("sequence parameter values are not supported")
}

func normalizeScalar(raw any) any {
	switch n := raw.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case int:
		return int64(n)
	case int64, float64, string, bool:
		return n
	}
	return raw
}
