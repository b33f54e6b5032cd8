package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// UpstreamType classifies how a field value may be supplied: as a literal, a
// single reference to another component's output, or a template mixing both.
type UpstreamType string

const (
	UpstreamValue     UpstreamType = "value"
	UpstreamReference UpstreamType = "reference"
	UpstreamTemplate  UpstreamType = "template"
)

// FormatSemiStructured marks object fields that accept a free-form JSON string.
const FormatSemiStructured = "semi-structured"

// Node is a component specification schema node: JSON Schema plus the
// builder's instill* annotation keywords.
type Node struct {
	// Boolean is set when the document held a literal true/false schema.
	Boolean *bool `json:"-"`

	Ref               string           `json:"$ref,omitempty"`
	Anchor            string           `json:"$anchor,omitempty"`
	Defs              Properties       `json:"$defs,omitempty"`
	Type              Type             `json:"type,omitempty"`
	Title             string           `json:"title,omitempty"`
	Description       string           `json:"description,omitempty"`
	Default           any              `json:"default,omitempty"`
	Example           any              `json:"example,omitempty"`
	Examples          []any            `json:"examples,omitempty"`
	Enum              []any            `json:"enum,omitempty"`
	Const             any              `json:"const,omitempty"`
	Pattern           string           `json:"pattern,omitempty"`
	Format            string           `json:"format,omitempty"`
	Required          []string         `json:"required,omitempty"`
	Properties        Properties       `json:"properties,omitempty"`
	PatternProperties map[string]*Node `json:"patternProperties,omitempty"`
	Items             *Node            `json:"items,omitempty"`
	OneOf             []*Node          `json:"oneOf,omitempty"`
	AnyOf             []*Node          `json:"anyOf,omitempty"`

	UpstreamType        UpstreamType   `json:"instillUpstreamType,omitempty"`
	UpstreamTypes       []UpstreamType `json:"instillUpstreamTypes,omitempty"`
	AcceptFormats       []string       `json:"instillAcceptFormats,omitempty"`
	DataFormat          string         `json:"instillFormat,omitempty"`
	UIOrder             *float64       `json:"instillUIOrder,omitempty"`
	CredentialField     bool           `json:"instillCredentialField,omitempty"`
	ShortDescription    string         `json:"instillShortDescription,omitempty"`
	EditOnNodeFields    []string       `json:"instillEditOnNodeFields,omitempty"`
	PatternErrorMessage string         `json:"instillPatternErrorMessage,omitempty"`
}

type nodeAlias Node

// UnmarshalJSON accepts both object schemas and boolean schemas.
func (n *Node) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "true", "false":
		value := string(trimmed) == "true"
		*n = Node{Boolean: &value}
		return nil
	case "null":
		*n = Node{}
		return nil
	}
	var alias nodeAlias
	if err := json.Unmarshal(trimmed, &alias); err != nil {
		return err
	}
	*n = Node(alias)
	return nil
}

// MarshalJSON writes boolean schemas back as literals.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Boolean != nil {
		return json.Marshal(*n.Boolean)
	}
	return json.Marshal(nodeAlias(n))
}

// IsBoolean reports whether the node is a literal boolean schema. A nil node
// counts as the unconstrained `true` schema.
func (n *Node) IsBoolean() bool {
	return n == nil || n.Boolean != nil
}

// PrimaryType returns the first declared type, or "" when none is declared.
func (n *Node) PrimaryType() string {
	if n == nil {
		return ""
	}
	return n.Type.Primary()
}

// HasConst reports whether a const keyword is present.
func (n *Node) HasConst() bool {
	return n != nil && n.Const != nil
}

// IsRequired reports whether key is listed in the node's required array.
func (n *Node) IsRequired(key string) bool {
	if n == nil || key == "" {
		return false
	}
	for _, name := range n.Required {
		if name == key {
			return true
		}
	}
	return false
}

// Property returns the named property schema.
func (n *Node) Property(name string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	return n.Properties.Get(name)
}

// Upstream returns the anyOf branch tagged with the given upstream type.
func (n *Node) Upstream(kind UpstreamType) *Node {
	if n == nil {
		return nil
	}
	for _, branch := range n.AnyOf {
		if branch != nil && branch.UpstreamType == kind {
			return branch
		}
	}
	return nil
}

// AcceptsUpstream reports whether an anyOf branch of the given kind exists.
func (n *Node) AcceptsUpstream(kind UpstreamType) bool {
	return n.Upstream(kind) != nil
}

// AcceptsFormat reports whether the accepted-formats list contains format.
func (n *Node) AcceptsFormat(format string) bool {
	if n == nil {
		return false
	}
	for _, candidate := range n.AcceptFormats {
		if candidate == format {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy; nested schemas are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	return &clone
}

// WithInheritedType returns a copy of branch whose type falls back to the
// supplied parent type. The branch itself is left untouched.
func WithInheritedType(parent Type, branch *Node) *Node {
	merged := branch.Clone()
	if merged == nil {
		merged = &Node{}
	}
	if len(merged.Type) == 0 && len(parent) > 0 {
		merged.Type = append(Type(nil), parent...)
	}
	return merged
}

// Discriminator returns the first property of branch carrying a string
// const. Branches without one report ok=false.
func Discriminator(branch *Node) (key, value string, ok bool) {
	if branch == nil {
		return "", "", false
	}
	for _, prop := range branch.Properties {
		if !prop.Schema.HasConst() {
			continue
		}
		str, isString := prop.Schema.Const.(string)
		if !isString || str == "" {
			return "", "", false
		}
		return prop.Name, str, true
	}
	return "", "", false
}

// Type holds the JSON Schema "type" keyword, which may be a string or a list.
type Type []string

// Primary returns the first entry.
func (t Type) Primary() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Is reports whether the primary type equals name.
func (t Type) Is(name string) bool {
	return t.Primary() == name
}

func (t *Type) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*t = nil
		return nil
	}
	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*t = Type{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return fmt.Errorf("schema: type must be a string or list of strings: %w", err)
	}
	*t = Type(list)
	return nil
}

func (t Type) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// Property is a named schema entry of an ordered object keyword.
type Property struct {
	Name   string
	Schema *Node
}

// Properties keeps object keywords ("properties", "$defs") in document order.
type Properties []Property

var errPropertiesNotObject = errors.New("schema: properties must be an object")

// Get returns the schema stored under name.
func (p Properties) Get(name string) (*Node, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Schema, true
		}
	}
	return nil, false
}

// Names returns the property names in order.
func (p Properties) Names() []string {
	out := make([]string, 0, len(p))
	for _, prop := range p {
		out = append(out, prop.Name)
	}
	return out
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errPropertiesNotObject
	}

	var out Properties
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errPropertiesNotObject
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		child := &Node{}
		if err := json.Unmarshal(raw, child); err != nil {
			return fmt.Errorf("schema: property %q: %w", key, err)
		}
		if idx, dup := seen[key]; dup {
			out[idx].Schema = child
			continue
		}
		seen[key] = len(out)
		out = append(out, Property{Name: key, Schema: child})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, prop := range p {
		if idx > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(prop.Schema)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses a JSON or YAML component specification.
func Decode(raw []byte) (*Node, error) {
	payload, err := ToJSON(raw)
	if err != nil {
		return nil, err
	}
	node := &Node{}
	if err := json.Unmarshal(payload, node); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	return node, nil
}
