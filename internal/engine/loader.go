package engine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/steps"
)

// ParseTemplate разбирает шаблон workflow из YAML (или JSON) и валидирует его.
//
//	id: onboarding
//	name: Onboarding
//	steps:
//	  - action: send
//	    ref: welcome
//	    fields: {recipient: "{{ .Data.user_id }}", template: welcome}
//	  - action: delay
//	    fields: {duration: 24h}
func ParseTemplate(data []byte, registry *steps.Registry) (*domain.WorkflowTemplate, error) {
	var tmpl domain.WorkflowTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := ValidateTemplate(&tmpl, registry); err != nil {
		return nil, err
	}
	return &tmpl, nil
}
