package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

// Severity ranks specification findings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// SchemaIssue is a finding about a component specification.
type SchemaIssue struct {
	Pointer  string   `json:"pointer,omitempty"`
	Field    string   `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SchemaValidationResult summarises CheckSpecification.
type SchemaValidationResult struct {
	Valid  bool          `json:"valid"`
	Issues []SchemaIssue `json:"issues,omitempty"`
}

// CheckSpecification compiles a JSON or YAML component specification as a
// draft-07 JSON Schema, which also rejects patterns the regexp engine cannot
// compile, and warns about constructs the form transforms silently skip.
// Only errors make the result invalid.
func CheckSpecification(raw []byte) SchemaValidationResult {
	result := SchemaValidationResult{Valid: true}

	payload, err := schema.ToJSON(raw)
	if err != nil {
		return invalidResult(err.Error())
	}

	loader := gojsonschema.NewSchemaLoader()
	loader.Draft = gojsonschema.Draft7
	loader.AutoDetect = false
	loader.Validate = true
	if _, err := loader.Compile(gojsonschema.NewBytesLoader(payload)); err != nil {
		return invalidResult(strings.TrimSpace(err.Error()))
	}

	node, err := schema.Decode(payload)
	if err != nil {
		return invalidResult(err.Error())
	}
	lintNode(node, "#", &result)
	return result
}

func invalidResult(message string) SchemaValidationResult {
	return SchemaValidationResult{
		Valid:  false,
		Issues: []SchemaIssue{{Severity: SeverityError, Message: message}},
	}
}

func lintNode(node *schema.Node, pointer string, result *SchemaValidationResult) {
	if node.IsBoolean() {
		return
	}
	warn := func(format string, args ...any) {
		result.Issues = append(result.Issues, SchemaIssue{
			Pointer:  pointer,
			Field:    fieldPathFromPointer(pointer),
			Severity: SeverityWarning,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	for idx, branch := range node.OneOf {
		if branch.IsBoolean() {
			warn("oneOf branch %d is a boolean schema and will be ignored", idx)
			continue
		}
		if _, _, ok := schema.Discriminator(branch); !ok {
			warn("oneOf branch %d has no const discriminator and will be ignored", idx)
		}
	}
	if len(node.AnyOf) > 0 && node.Upstream(schema.UpstreamValue) == nil && !node.AcceptsUpstream(schema.UpstreamReference) {
		warn("anyOf declares neither a value nor a reference upstream branch")
	}

	for _, prop := range node.Properties {
		lintNode(prop.Schema, pointer+"/properties/"+escapePointer(prop.Name), result)
	}
	if node.Items != nil {
		lintNode(node.Items, pointer+"/items", result)
	}
	for idx, branch := range node.OneOf {
		lintNode(branch, pointer+"/oneOf/"+strconv.Itoa(idx), result)
	}
	for idx, branch := range node.AnyOf {
		lintNode(branch, pointer+"/anyOf/"+strconv.Itoa(idx), result)
	}
}

func escapePointer(segment string) string {
	segment = strings.ReplaceAll(segment, "~", "~0")
	return strings.ReplaceAll(segment, "/", "~1")
}

// fieldPathFromPointer maps a schema pointer onto the configuration path it
// describes: "#/properties/a/oneOf/0/properties/b" becomes "a.b".
func fieldPathFromPointer(pointer string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(pointer), "#")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return ""
	}

	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for idx := 0; idx < len(parts); idx++ {
		segment := unescapePointer(parts[idx])
		switch segment {
		case "properties":
			if idx+1 < len(parts) {
				out = append(out, unescapePointer(parts[idx+1]))
				idx++
			}
		case "items":
		case "oneOf", "anyOf", "allOf":
			if idx+1 < len(parts) && isIndex(parts[idx+1]) {
				idx++
			}
		case "$defs":
			if idx+1 < len(parts) {
				idx++
			}
		default:
			if segment != "" {
				out = append(out, segment)
			}
		}
	}
	return strings.Join(out, ".")
}

func unescapePointer(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

func isIndex(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
