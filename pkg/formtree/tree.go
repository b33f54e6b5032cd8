// Package formtree derives the UI-agnostic form tree that renderers walk to
// build a component configuration form.
package formtree

import (
	"encoding/json"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

// Kind tags the four form-tree variants.
type Kind string

const (
	KindItem        Kind = "item"
	KindGroup       Kind = "group"
	KindObjectArray Kind = "objectArray"
	KindCondition   Kind = "condition"
)

// Node is implemented by *Item, *Group, *ObjectArray and *Condition only.
type Node interface {
	Kind() Kind
	Metadata() *Meta
	node()
}

// Meta carries the resolved flags and display metadata shared by every
// variant.
type Meta struct {
	Key      string `json:"key,omitempty"`
	Path     string `json:"path,omitempty"`
	Required bool   `json:"required"`
	// Hidden is advisory: renderers skip the field, validators relax it.
	Hidden bool `json:"hidden,omitempty"`

	Title            string                `json:"title,omitempty"`
	Description      string                `json:"description,omitempty"`
	ShortDescription string                `json:"shortDescription,omitempty"`
	Default          any                   `json:"default,omitempty"`
	Example          any                   `json:"example,omitempty"`
	Examples         []any                 `json:"examples,omitempty"`
	Pattern          string                `json:"pattern,omitempty"`
	Const            any                   `json:"const,omitempty"`
	Enum             []any                 `json:"enum,omitempty"`
	UpstreamType     schema.UpstreamType   `json:"upstreamType,omitempty"`
	UpstreamTypes    []schema.UpstreamType `json:"upstreamTypes,omitempty"`
	DataFormat       string                `json:"dataFormat,omitempty"`
	AcceptFormats    []string              `json:"acceptFormats,omitempty"`
	CredentialField  bool                  `json:"credentialField,omitempty"`
	UIOrder          *float64              `json:"uiOrder,omitempty"`
	EditOnNodeFields []string              `json:"editOnNodeFields,omitempty"`

	// Schema is the node the entry was derived from.
	Schema *schema.Node `json:"-"`
}

// Metadata returns the shared metadata.
func (m *Meta) Metadata() *Meta { return m }

// Item is a leaf field.
type Item struct {
	Meta
	// Type is the primary JSON type, "array" for scalar lists, or "null" when
	// no type could be resolved.
	Type string `json:"type"`
}

// Group is an object with ordered children.
type Group struct {
	Meta
	Children []Node `json:"children"`
}

// ObjectArray is a list whose items are objects described by Item.
type ObjectArray struct {
	Meta
	Item Node `json:"item"`
}

// Branch is one alternative of a Condition.
type Branch struct {
	Value string `json:"value"`
	Tree  Node   `json:"tree"`
}

// Condition is a oneOf field whose active branch is picked by the value of a
// discriminator property.
type Condition struct {
	Meta
	// Discriminator is the property key whose const value selects a branch.
	Discriminator string   `json:"discriminator"`
	Branches      []Branch `json:"branches"`
}

func (*Item) Kind() Kind        { return KindItem }
func (*Group) Kind() Kind       { return KindGroup }
func (*ObjectArray) Kind() Kind { return KindObjectArray }
func (*Condition) Kind() Kind   { return KindCondition }

func (*Item) node()        {}
func (*Group) node()       {}
func (*ObjectArray) node() {}
func (*Condition) node()   {}

// Branch returns the sub-tree for a discriminator value.
func (c *Condition) Branch(value string) (Node, bool) {
	if idx := c.branchIndex(value); idx >= 0 {
		return c.Branches[idx].Tree, true
	}
	return nil, false
}

func (c *Condition) branchIndex(value string) int {
	for idx, branch := range c.Branches {
		if branch.Value == value {
			return idx
		}
	}
	return -1
}

// Values returns the discriminator values in branch order.
func (c *Condition) Values() []string {
	out := make([]string, 0, len(c.Branches))
	for _, branch := range c.Branches {
		out = append(out, branch.Value)
	}
	return out
}

// DiscriminatorPath is the configuration path of the discriminator field.
func (c *Condition) DiscriminatorPath() string {
	return joinPath(c.Path, c.Discriminator)
}

func (i *Item) MarshalJSON() ([]byte, error) {
	type alias Item
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindItem, (*alias)(i)})
}

func (g *Group) MarshalJSON() ([]byte, error) {
	type alias Group
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindGroup, (*alias)(g)})
}

func (a *ObjectArray) MarshalJSON() ([]byte, error) {
	type alias ObjectArray
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindObjectArray, (*alias)(a)})
}

func (c *Condition) MarshalJSON() ([]byte, error) {
	type alias Condition
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindCondition, (*alias)(c)})
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	if key == "" {
		return base
	}
	return base + "." + key
}
