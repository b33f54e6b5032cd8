// Package validation derives configuration validators from component
// specifications and lints the specifications themselves.
package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/goliatone/go-pipeform/pkg/reference"
	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

// Params position the schema node being converted.
type Params struct {
	Parent *schema.Node
	Schema *schema.Node
	// Selected maps discriminator paths to the chosen const value. A nil map
	// selects the first branch of every condition.
	Selected map[string]string
	Key      string
	Path     string
	// ForceOptional relaxes the node even when its parent requires it.
	ForceOptional bool
	Hidden        visibility.Predicate
}

// ForSchema builds the rule for a whole component configuration.
func ForSchema(root *schema.Node, selected map[string]string, hidden visibility.Predicate) Rule {
	return Build(Params{Parent: root, Schema: root, Selected: selected, Hidden: hidden})
}

// Build converts a specification node into a Rule.
func Build(p Params) Rule {
	b := &builder{selected: p.Selected, hidden: p.Hidden, patterns: make(map[string]*regexp.Regexp)}
	return b.build(p.Parent, p.Schema, p.Key, p.Path, p.ForceOptional)
}

type shape int

const (
	shapeUnconstrained shape = iota
	shapeConst
	shapeCondition
	shapeEnum
	shapeArray
	shapeObject
	shapeUpstream
	shapePrimitive
)

func classify(node *schema.Node) shape {
	switch {
	case node.IsBoolean():
		return shapeUnconstrained
	case node.HasConst():
		return shapeConst
	case len(node.OneOf) > 0:
		return shapeCondition
	case len(node.Enum) > 0:
		return shapeEnum
	case node.Type.Is("array"):
		return shapeArray
	case node.Type.Is("object"), len(node.Type) == 0 && len(node.Properties) > 0 && len(node.AnyOf) == 0:
		return shapeObject
	case len(node.AnyOf) > 0:
		return shapeUpstream
	default:
		return shapePrimitive
	}
}

type builder struct {
	selected map[string]string
	hidden   visibility.Predicate
	patterns map[string]*regexp.Regexp
}

func (b *builder) build(parent, node *schema.Node, key, path string, forceOptional bool) Rule {
	if path == "" {
		path = key
	}
	kind := classify(node)
	if kind == shapeUnconstrained {
		return Any()
	}

	hidden := b.hidden.Hidden(visibility.Target{Parent: parent, Schema: node, Key: key, Path: path})
	relaxed := !parent.IsRequired(key) || forceOptional || hidden
	finish := func(rule Rule) Rule {
		if hidden {
			rule = Any()
		}
		if relaxed {
			return Optional(rule)
		}
		return rule
	}

	switch kind {
	case shapeConst:
		return finish(stringRule{})
	case shapeCondition:
		branch := b.selectBranch(node, path)
		return finish(b.build(parent, schema.WithInheritedType(node.Type, branch), key, path, forceOptional))
	case shapeEnum:
		return finish(enumRule{values: append([]any(nil), node.Enum...)})
	case shapeArray:
		if node.Items.IsBoolean() {
			return finish(Any())
		}
		return finish(arrayRule{element: b.build(parent, node.Items, "", path, false)})
	case shapeObject:
		return b.object(node, path, finish)
	case shapeUpstream:
		return finish(b.upstream(node, parent.IsRequired(key)))
	default:
		return finish(b.primitive(node, parent.IsRequired(key)))
	}
}

// selectBranch returns the last branch whose discriminator matches the
// selection, or the first branch when nothing is selected.
func (b *builder) selectBranch(node *schema.Node, path string) *schema.Node {
	var chosen *schema.Node
	for _, branch := range node.OneOf {
		discriminator, value, ok := schema.Discriminator(branch)
		if !ok || b.selected == nil {
			continue
		}
		if b.selected[joinPath(path, discriminator)] == value {
			chosen = branch
		}
	}
	if chosen == nil {
		return node.OneOf[0]
	}
	return chosen
}

func (b *builder) object(node *schema.Node, path string, finish func(Rule) Rule) Rule {
	if len(node.PatternProperties) > 0 && len(node.Properties) == 0 {
		// Free-form objects are edited through a dedicated key/value widget.
		return Any()
	}
	for _, format := range node.AcceptFormats {
		if strings.Contains(format, schema.FormatSemiStructured) {
			return finish(stringRule{})
		}
	}

	obj := objectRule{fields: make([]field, 0, len(node.Properties))}
	for _, prop := range node.Properties {
		if prop.Schema.IsBoolean() {
			continue
		}
		obj.fields = append(obj.fields, field{
			key:  prop.Name,
			rule: b.build(node, prop.Schema, prop.Name, joinPath(path, prop.Name), false),
		})
	}
	return finish(obj)
}

func (b *builder) upstream(node *schema.Node, required bool) Rule {
	value := node.Upstream(schema.UpstreamValue)
	refs := upstreamCheck{
		acceptPrimitive: value != nil,
		acceptReference: node.AcceptsUpstream(schema.UpstreamReference),
		acceptTemplate:  node.AcceptsUpstream(schema.UpstreamTemplate),
	}

	var base Rule
	switch {
	case value == nil:
		base = stringRule{required: required}
	case len(value.Enum) > 0:
		base = enumRule{values: append([]any(nil), value.Enum...)}
	default:
		switch value.PrimaryType() {
		case "string":
			base = stringRule{required: required}
		case "boolean":
			base = booleanRule{}
		case "integer", "number":
			base = stringRule{required: required, numeric: true}
			refs.numeric = true
		default:
			base = Any()
		}
	}
	if value != nil && value.Pattern != "" {
		refs.pattern = b.compile(value.Pattern)
		refs.patternSource = value.Pattern
		refs.patternMessage = value.PatternErrorMessage
	}
	return refine(base, refs.check)
}

func (b *builder) primitive(node *schema.Node, required bool) Rule {
	var base Rule
	switch node.PrimaryType() {
	case "string":
		base = stringRule{required: required}
	case "boolean":
		base = booleanRule{}
	case "integer", "number":
		base = stringRule{required: required, numeric: true}
	default:
		base = Any()
	}
	if node.Pattern == "" {
		return base
	}
	pc := patternCheck{re: b.compile(node.Pattern), source: node.Pattern, message: node.PatternErrorMessage}
	return refine(base, pc.check)
}

// compile caches patterns per build. Patterns RE2 cannot compile are not
// enforced; CheckSpecification rejects them.
func (b *builder) compile(pattern string) *regexp.Regexp {
	if re, ok := b.patterns[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	b.patterns[pattern] = re
	return re
}

type patternCheck struct {
	re      *regexp.Regexp
	source  string
	message string
}

func (p patternCheck) check(path string, value any) Issues {
	str, ok := value.(string)
	if !ok || str == "" || p.re == nil || p.re.MatchString(str) {
		return nil
	}
	msg := p.message
	if msg == "" {
		msg = fmt.Sprintf(MessagePatternFormat, p.source)
	}
	return Issues{{Path: path, Code: CodePattern, Message: msg}}
}

type upstreamCheck struct {
	acceptPrimitive bool
	acceptReference bool
	acceptTemplate  bool
	numeric         bool

	pattern        *regexp.Regexp
	patternSource  string
	patternMessage string
}

func (u upstreamCheck) check(path string, value any) Issues {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}

	issues := patternCheck{re: u.pattern, source: u.patternSource, message: u.patternMessage}.check(path, str)
	count := reference.Count(str)
	add := func(code Code, msg string) {
		issues = append(issues, Issue{Path: path, Code: code, Message: msg})
	}
	if !u.acceptPrimitive && count == 0 {
		add(CodeReferenceOnly, MessageReferenceOnly)
	}
	if count > 0 && !u.acceptReference {
		add(CodeReferenceRejected, MessageReferenceRejected)
	}
	if count > 1 && !u.acceptTemplate {
		add(CodeSingleReference, MessageSingleReference)
	}
	if count == 0 && u.numeric && !isNumeric(str) {
		if u.acceptReference {
			add(CodeNumber, MessageNumberOrReference)
		} else {
			add(CodeNumber, MessageNumber)
		}
	}
	return issues
}

// isNumeric follows the permissive number parsing of the builder UI: blank
// strings count as zero, unsigned hex/octal/binary integers and the spelled
// out infinities are numbers, NaN is not. Go-only literal syntax (digit
// separators, "inf", hex floats) is rejected.
func isNumeric(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	if strings.Contains(trimmed, "_") {
		return false
	}
	switch trimmed {
	case "Infinity", "+Infinity", "-Infinity":
		return true
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		_, err := strconv.ParseUint(lower[2:], map[byte]int{'x': 16, 'o': 8, 'b': 2}[lower[1]], 64)
		return err == nil || errors.Is(err, strconv.ErrRange)
	}
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.Contains(lower, "x") {
		return false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return errors.Is(err, strconv.ErrRange)
	}
	return !math.IsNaN(f)
}
