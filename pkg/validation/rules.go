package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// RuleKind names the shape of a Rule.
type RuleKind string

const (
	KindAny      RuleKind = "any"
	KindString   RuleKind = "string"
	KindBoolean  RuleKind = "boolean"
	KindEnum     RuleKind = "enum"
	KindArray    RuleKind = "array"
	KindObject   RuleKind = "object"
	KindOptional RuleKind = "optional"
	KindRefined  RuleKind = "refined"
)

// Rule validates a configuration value. Rules are immutable and safe for
// concurrent use.
type Rule interface {
	Kind() RuleKind
	Validate(path string, value any) Issues
	fmt.Stringer
}

// Any accepts every value.
func Any() Rule { return anyRule{} }

type anyRule struct{}

func (anyRule) Kind() RuleKind              { return KindAny }
func (anyRule) Validate(string, any) Issues { return nil }
func (anyRule) String() string              { return "any" }

// stringRule accepts strings. numeric rules also accept JSON numbers, which
// stand in for their decimal string form.
type stringRule struct {
	required bool
	numeric  bool
}

func (stringRule) Kind() RuleKind { return KindString }

func (r stringRule) String() string {
	switch {
	case r.numeric && r.required:
		return "numeric-string(min=1)"
	case r.numeric:
		return "numeric-string"
	case r.required:
		return "string(min=1)"
	default:
		return "string"
	}
}

func (r stringRule) Validate(path string, value any) Issues {
	switch typed := value.(type) {
	case nil:
		return Issues{{Path: path, Code: CodeRequired, Message: MessageRequired}}
	case string:
		if r.required && typed == "" {
			return Issues{{Path: path, Code: CodeRequired, Message: MessageRequired}}
		}
		return nil
	}
	if r.numeric {
		if _, ok := numberString(value); ok {
			return nil
		}
	}
	return Issues{invalidType(path, "string", value)}
}

type booleanRule struct{}

func (booleanRule) Kind() RuleKind { return KindBoolean }
func (booleanRule) String() string { return "boolean" }

func (booleanRule) Validate(path string, value any) Issues {
	switch value.(type) {
	case nil:
		return Issues{{Path: path, Code: CodeRequired, Message: MessageRequired}}
	case bool:
		return nil
	default:
		return Issues{invalidType(path, "boolean", value)}
	}
}

type enumRule struct {
	values []any
}

func (enumRule) Kind() RuleKind { return KindEnum }

func (r enumRule) String() string {
	return "enum(" + r.expected() + ")"
}

func (r enumRule) expected() string {
	parts := make([]string, 0, len(r.values))
	for _, v := range r.values {
		parts = append(parts, fmt.Sprintf("'%v'", v))
	}
	return strings.Join(parts, " | ")
}

func (r enumRule) Validate(path string, value any) Issues {
	if value == nil {
		return Issues{{Path: path, Code: CodeRequired, Message: MessageRequired}}
	}
	for _, candidate := range r.values {
		if valuesEqual(candidate, value) {
			return nil
		}
	}
	return Issues{{
		Path:    path,
		Code:    CodeInvalidEnum,
		Message: fmt.Sprintf("Invalid enum value. Expected %s, received '%v'", r.expected(), value),
	}}
}

type arrayRule struct {
	element Rule
}

func (arrayRule) Kind() RuleKind { return KindArray }

func (r arrayRule) String() string {
	return "array(" + r.element.String() + ")"
}

func (r arrayRule) Validate(path string, value any) Issues {
	if value == nil {
		return Issues{{Path: path, Code: CodeRequired, Message: MessageRequired}}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Issues{invalidType(path, "array", value)}
	}
	var issues Issues
	for idx := 0; idx < rv.Len(); idx++ {
		issues = append(issues, r.element.Validate(joinPath(path, strconv.Itoa(idx)), rv.Index(idx).Interface())...)
	}
	return issues
}

type field struct {
	key  string
	rule Rule
}

// objectRule checks the declared fields; undeclared keys are ignored.
type objectRule struct {
	fields []field
}

func (objectRule) Kind() RuleKind { return KindObject }

func (r objectRule) String() string {
	parts := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		parts = append(parts, f.key+":"+f.rule.String())
	}
	return "object{" + strings.Join(parts, ",") + "}"
}

func (r objectRule) Validate(path string, value any) Issues {
	if value == nil {
		return Issues{{Path: path, Code: CodeRequired, Message: MessageRequired}}
	}
	values, ok := value.(map[string]any)
	if !ok {
		return Issues{invalidType(path, "object", value)}
	}
	var issues Issues
	for _, f := range r.fields {
		issues = append(issues, f.rule.Validate(joinPath(path, f.key), values[f.key])...)
	}
	return issues
}

// Field returns the rule registered for key on an object rule.
func Field(rule Rule, key string) (Rule, bool) {
	obj, ok := Unwrap(rule).(objectRule)
	if !ok {
		return nil, false
	}
	for _, f := range obj.fields {
		if f.key == key {
			return f.rule, true
		}
	}
	return nil, false
}

// Element returns the element rule of an array rule.
func Element(rule Rule) (Rule, bool) {
	arr, ok := Unwrap(rule).(arrayRule)
	if !ok {
		return nil, false
	}
	return arr.element, true
}

// Optional lets nil (absent or null) values through.
func Optional(inner Rule) Rule {
	if inner == nil {
		return anyRule{}
	}
	switch inner.(type) {
	case optionalRule, anyRule:
		return inner
	}
	return optionalRule{inner: inner}
}

type optionalRule struct {
	inner Rule
}

func (optionalRule) Kind() RuleKind   { return KindOptional }
func (r optionalRule) String() string { return "optional(" + r.inner.String() + ")" }

func (r optionalRule) Validate(path string, value any) Issues {
	if value == nil {
		return nil
	}
	return r.inner.Validate(path, value)
}

// refinedRule runs extra checks once the inner rule accepted the value's type.
type refinedRule struct {
	inner  Rule
	checks []check
}

type check func(path string, value any) Issues

func (refinedRule) Kind() RuleKind   { return KindRefined }
func (r refinedRule) String() string { return "refined(" + r.inner.String() + ")" }

func (r refinedRule) Validate(path string, value any) Issues {
	issues := r.inner.Validate(path, value)
	if issues.hasCode(CodeInvalidType) || value == nil {
		return issues
	}
	for _, c := range r.checks {
		issues = append(issues, c(path, value)...)
	}
	return issues
}

func refine(inner Rule, checks ...check) Rule {
	if len(checks) == 0 {
		return inner
	}
	return refinedRule{inner: inner, checks: checks}
}

// Unwrap strips optional and refinement wrappers.
func Unwrap(rule Rule) Rule {
	for {
		switch typed := rule.(type) {
		case optionalRule:
			rule = typed.inner
		case refinedRule:
			rule = typed.inner
		default:
			return rule
		}
	}
}

func invalidType(path, expected string, value any) Issue {
	return Issue{
		Path:    path,
		Code:    CodeInvalidType,
		Message: fmt.Sprintf("Expected %s, received %s", expected, typeName(value)),
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case json.Number, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// numberString formats JSON-ish numeric values as the string a form would hold.
func numberString(value any) (string, bool) {
	switch typed := value.(type) {
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(typed), true
	default:
		return "", false
	}
}

func valuesEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	as, aNum := numberString(a)
	bs, bNum := numberString(b)
	switch {
	case aNum && bNum:
		return as == bs
	case aNum:
		if s, ok := b.(string); ok {
			return s == as
		}
	case bNum:
		if s, ok := a.(string); ok {
			return s == bs
		}
	}
	return false
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
