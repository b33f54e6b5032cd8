package formtree

import (
	"reflect"
	"sort"

	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

// Options position the transformed node inside its parent.
type Options struct {
	// Key is the property name of the node within Parent.
	Key string
	// Path is the dotted path of the node; Key is used when empty.
	Path string
	// Parent supplies the required list used to resolve Key.
	Parent *schema.Node
	// Hidden classifies fields as hidden. Nil hides nothing.
	Hidden visibility.Predicate
}

// shape is the variant a schema node maps to. Classification happens once per
// node; each shape has its own builder.
type shape int

const (
	shapeUnconstrained shape = iota
	shapeUpstreamEnum
	shapeCondition
	shapeObjectArray
	shapeScalarArray
	shapeGroup
	shapeItem
)

func classify(node *schema.Node) shape {
	switch {
	case node.IsBoolean():
		return shapeUnconstrained
	case upstreamValue(node) != nil && len(upstreamValue(node).Enum) > 0:
		return shapeUpstreamEnum
	case len(node.OneOf) > 0:
		return shapeCondition
	case node.Type.Is("array") && node.Items != nil && !node.Items.IsBoolean():
		if node.Items.Type.Is("object") {
			return shapeObjectArray
		}
		return shapeScalarArray
	case len(node.Properties) > 0:
		return shapeGroup
	default:
		return shapeItem
	}
}

func upstreamValue(node *schema.Node) *schema.Node {
	if len(node.AnyOf) == 0 {
		return nil
	}
	return node.Upstream(schema.UpstreamValue)
}

// Transform converts a specification node into a form tree. The input is
// never modified.
func Transform(node *schema.Node, opts Options) Node {
	t := transformer{hidden: opts.Hidden}
	return t.build(node, opts.Parent, opts.Key, opts.Path)
}

type transformer struct {
	hidden visibility.Predicate
}

func (t transformer) build(node *schema.Node, parent *schema.Node, key, path string) Node {
	if path == "" {
		path = key
	}
	meta := Meta{
		Key:      key,
		Path:     path,
		Required: parent.IsRequired(key),
	}

	kind := classify(node)
	if kind == shapeUnconstrained {
		meta.Required = false
		return &Item{Meta: meta, Type: "null"}
	}

	meta.Hidden = t.hidden.Hidden(visibility.Target{Parent: parent, Schema: node, Key: key, Path: path})
	meta.Schema = node

	switch kind {
	case shapeUpstreamEnum:
		return t.upstreamEnum(node, meta)
	case shapeCondition:
		return t.condition(node, parent, meta)
	case shapeObjectArray:
		return t.objectArray(node, meta)
	case shapeScalarArray:
		return t.scalarArray(node, meta)
	case shapeGroup:
		return t.group(node, meta)
	default:
		return t.item(node, meta)
	}
}

func (t transformer) upstreamEnum(node *schema.Node, meta Meta) Node {
	value := upstreamValue(node)
	applyBase(&meta, node)
	meta.Enum = cloneAnySlice(value.Enum)
	meta.Example = value.Example
	meta.Examples = cloneAnySlice(value.Examples)
	meta.AcceptFormats = acceptFormats(meta.AcceptFormats)
	return &Item{Meta: meta, Type: typeOrNull(value.PrimaryType())}
}

func (t transformer) condition(node *schema.Node, parent *schema.Node, meta Meta) Node {
	cond := &Condition{}

	// The discriminator's own annotations fill in what the oneOf node lacks.
	if first := node.OneOf[0]; !first.IsBoolean() {
		for _, prop := range first.Properties {
			if prop.Schema.HasConst() {
				applyBase(&meta, prop.Schema)
				meta.Const = nil
				break
			}
		}
	}
	applyBase(&meta, node)

	for _, branch := range node.OneOf {
		if branch.IsBoolean() {
			continue
		}
		discriminator, value, ok := schema.Discriminator(branch)
		if !ok {
			continue
		}
		if cond.Discriminator == "" {
			cond.Discriminator = discriminator
		}
		merged := schema.WithInheritedType(node.Type, branch)
		tree := t.build(merged, parent, meta.Key, meta.Path)
		// A repeated value replaces the earlier branch but keeps its position.
		if idx := cond.branchIndex(value); idx >= 0 {
			cond.Branches[idx].Tree = tree
			continue
		}
		cond.Branches = append(cond.Branches, Branch{Value: value, Tree: tree})
	}
	cond.Meta = meta
	return cond
}

func (t transformer) objectArray(node *schema.Node, meta Meta) Node {
	applyBase(&meta, node)
	return &ObjectArray{
		Meta: meta,
		Item: t.build(node.Items, node, meta.Key, meta.Path),
	}
}

func (t transformer) scalarArray(node *schema.Node, meta Meta) Node {
	applyBase(&meta, node.Items)
	applyBase(&meta, node)
	meta.AcceptFormats = acceptFormats(meta.AcceptFormats)
	return &Item{Meta: meta, Type: "array"}
}

func (t transformer) group(node *schema.Node, meta Meta) Node {
	applyBase(&meta, node)
	children := make([]Node, 0, len(node.Properties))
	for _, prop := range node.Properties {
		children = append(children, t.build(prop.Schema, node, prop.Name, joinPath(meta.Path, prop.Name)))
	}
	sort.SliceStable(children, func(i, j int) bool {
		return orderedBefore(children[i].Metadata().UIOrder, children[j].Metadata().UIOrder)
	})
	return &Group{Meta: meta, Children: children}
}

func (t transformer) item(node *schema.Node, meta Meta) Node {
	applyBase(&meta, node)
	meta.AcceptFormats = acceptFormats(meta.AcceptFormats)

	resolved := node.PrimaryType()
	if len(node.AnyOf) > 0 {
		resolved = ""
		if value := upstreamValue(node); value != nil {
			resolved = value.PrimaryType()
		}
	}
	return &Item{Meta: meta, Type: typeOrNull(resolved)}
}

// orderedBefore places hinted entries first, ascending; unhinted entries
// keep their relative order at the end.
func orderedBefore(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

// applyBase copies the display annotations of src into meta. Values present
// on src replace earlier ones.
func applyBase(meta *Meta, src *schema.Node) {
	if src.IsBoolean() {
		return
	}
	if src.Default != nil {
		meta.Default = src.Default
	}
	if src.Example != nil {
		meta.Example = src.Example
	}
	if len(src.Examples) > 0 {
		meta.Examples = cloneAnySlice(src.Examples)
	}
	if src.Description != "" {
		meta.Description = src.Description
	}
	if src.Pattern != "" {
		meta.Pattern = src.Pattern
	}
	if src.Const != nil {
		meta.Const = src.Const
	}
	if src.Title != "" {
		meta.Title = src.Title
	}
	if src.ShortDescription != "" {
		meta.ShortDescription = src.ShortDescription
	}
	if len(src.UpstreamTypes) > 0 {
		meta.UpstreamTypes = append([]schema.UpstreamType(nil), src.UpstreamTypes...)
	}
	if src.UpstreamType != "" {
		meta.UpstreamType = src.UpstreamType
	}
	if src.DataFormat != "" {
		meta.DataFormat = src.DataFormat
	}
	if len(src.AcceptFormats) > 0 {
		meta.AcceptFormats = append([]string(nil), src.AcceptFormats...)
	}
	if src.CredentialField {
		meta.CredentialField = true
	}
	if src.UIOrder != nil {
		order := *src.UIOrder
		meta.UIOrder = &order
	}
	if len(src.EditOnNodeFields) > 0 {
		meta.EditOnNodeFields = append([]string(nil), src.EditOnNodeFields...)
	}

	switch {
	case src.Items != nil && !src.Items.IsBoolean() && len(src.Items.Enum) > 0:
		meta.Enum = cloneAnySlice(src.Items.Enum)
	case len(src.Enum) == 1 && src.Default != nil && reflect.DeepEqual(src.Enum[0], src.Default):
		meta.Const = src.Default
	case len(src.Enum) > 0:
		meta.Enum = cloneAnySlice(src.Enum)
	}
}

func acceptFormats(formats []string) []string {
	if formats == nil {
		return []string{}
	}
	return formats
}

func typeOrNull(t string) string {
	if t == "" {
		return "null"
	}
	return t
}

func cloneAnySlice(in []any) []any {
	if len(in) == 0 {
		return nil
	}
	return append([]any(nil), in...)
}
