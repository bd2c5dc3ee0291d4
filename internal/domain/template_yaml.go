package domain

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseTemplateYAML decodes a pipeline template document. TemplateID and
// publish metadata are assigned by the registry, never by the document.
func ParseTemplateYAML(raw []byte) (PipelineTemplate, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return PipelineTemplate{}, errors.New("template document is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var tpl PipelineTemplate
	if err := dec.Decode(&tpl); err != nil {
		return PipelineTemplate{}, fmt.Errorf("decode template: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return PipelineTemplate{}, errors.New("template must be a single YAML document")
	}

	if err := tpl.ValidateBasicShape(); err != nil {
		return PipelineTemplate{}, err
	}
	return tpl, nil
}
