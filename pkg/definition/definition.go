// Package definition models connector and operator definitions: the catalogue
// entries whose component specifications drive the configuration forms.
package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

var (
	ErrInvalidDefinition    = errors.New("definition: invalid definition")
	ErrMissingSpecification = errors.New("definition: specification missing")
)

const connectorTypePrefix = "CONNECTOR_TYPE_"

// Definition is a connector or operator definition.
type Definition struct {
	Name             string `json:"name" validate:"required"`
	UID              string `json:"uid,omitempty"`
	ID               string `json:"id" validate:"required"`
	Title            string `json:"title" validate:"required"`
	Type             string `json:"type,omitempty"`
	Vendor           string `json:"vendor,omitempty"`
	DocumentationURL string `json:"documentation_url,omitempty" validate:"omitempty,url"`
	Icon             string `json:"icon,omitempty"`
	Spec             Spec   `json:"spec"`
}

// Spec holds the specifications of a definition.
type Spec struct {
	// Component describes the configuration of a pipeline component.
	Component *schema.Node `json:"component_specification" validate:"required"`
	// Resource describes the configuration of a standalone connector
	// resource, where credentials usually live.
	Resource *schema.Node `json:"resource_specification,omitempty"`
}

// Specification returns the component specification, or the resource
// specification when resource is true.
func (d Definition) Specification(resource bool) (*schema.Node, error) {
	node := d.Spec.Component
	if resource {
		node = d.Spec.Resource
	}
	if node == nil {
		kind := "component"
		if resource {
			kind = "resource"
		}
		return nil, fmt.Errorf("%w: %s has no %s specification", ErrMissingSpecification, d.ID, kind)
	}
	return node, nil
}

// ShortType returns Type without the CONNECTOR_TYPE_ prefix, lower-cased.
func (d Definition) ShortType() string {
	return strings.ToLower(strings.TrimPrefix(d.Type, connectorTypePrefix))
}

// MatchesType reports whether the definition has the given type, in full or
// short form, ignoring case. An empty filter matches everything.
func (d Definition) MatchesType(filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return strings.EqualFold(d.Type, filter) || strings.EqualFold(d.ShortType(), strings.TrimPrefix(strings.ToUpper(filter), connectorTypePrefix))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the required definition fields.
func Validate(def Definition) error {
	err := validate.Struct(def)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	label := def.ID
	if label == "" {
		label = def.Name
	}
	return fmt.Errorf("%w %q: %s", ErrInvalidDefinition, label, strings.Join(parts, ", "))
}

type listResponse struct {
	ConnectorDefinitions []Definition `json:"connector_definitions"`
	OperatorDefinitions  []Definition `json:"operator_definitions"`
	Definitions          []Definition `json:"definitions"`
}

// Decode parses a JSON or YAML document holding a single definition, a list
// of definitions, or a listing response.
func Decode(raw []byte) ([]Definition, error) {
	payload, err := schema.ToJSON(raw)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(payload, []byte("[")) {
		var list []Definition
		if err := json.Unmarshal(payload, &list); err != nil {
			return nil, fmt.Errorf("definition: decode list: %w", err)
		}
		return sanitizeIcons(list), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("definition: decode: %w", err)
	}
	_, hasConnectors := envelope["connector_definitions"]
	_, hasOperators := envelope["operator_definitions"]
	_, hasDefinitions := envelope["definitions"]
	if hasConnectors || hasOperators || hasDefinitions {
		var resp listResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, fmt.Errorf("definition: decode listing: %w", err)
		}
		out := append([]Definition(nil), resp.ConnectorDefinitions...)
		out = append(out, resp.OperatorDefinitions...)
		return sanitizeIcons(append(out, resp.Definitions...)), nil
	}

	var single Definition
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("definition: decode: %w", err)
	}
	return sanitizeIcons([]Definition{single}), nil
}
