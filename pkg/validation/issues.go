package validation

import (
	"sort"
	"strings"
)

// Code classifies a validation issue.
type Code string

const (
	CodeRequired          Code = "required"
	CodeInvalidType       Code = "invalid_type"
	CodeInvalidEnum       Code = "invalid_enum_value"
	CodePattern           Code = "pattern"
	CodeReferenceOnly     Code = "reference_only"
	CodeReferenceRejected Code = "reference_rejected"
	CodeSingleReference   Code = "single_reference"
	CodeNumber            Code = "number"
)

// Messages shown next to form fields.
const (
	MessageRequired          = "This field is required"
	MessagePatternFormat     = "This field doesn't match the pattern %s"
	MessageReferenceOnly     = "This field only accepts reference"
	MessageReferenceRejected = "This field doesn't accept reference `${}`"
	MessageSingleReference   = "This field only accepts single reference"
	MessageNumberOrReference = "This field only accepts number or reference"
	MessageNumber            = "This field only accepts number"
)

// Issue is a single problem with a configuration value.
type Issue struct {
	Path    string `json:"path"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Issues collects problems found while validating a configuration. A nil or
// empty Issues means the value is valid.
type Issues []Issue

func (i Issues) Error() string {
	switch len(i) {
	case 0:
		return "validation: no issues"
	case 1:
		return formatIssue(i[0])
	}
	parts := make([]string, 0, len(i))
	for _, issue := range i {
		parts = append(parts, formatIssue(issue))
	}
	return strings.Join(parts, "; ")
}

func formatIssue(issue Issue) string {
	if issue.Path == "" {
		return issue.Message
	}
	return issue.Path + ": " + issue.Message
}

// Err returns the issues as an error, or nil when there are none.
func (i Issues) Err() error {
	if len(i) == 0 {
		return nil
	}
	return i
}

// ByPath groups messages by field path, keeping their order per field.
func (i Issues) ByPath() map[string][]string {
	if len(i) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for _, issue := range i {
		out[issue.Path] = append(out[issue.Path], issue.Message)
	}
	return out
}

// Paths returns the distinct failing paths, sorted.
func (i Issues) Paths() []string {
	seen := make(map[string]struct{}, len(i))
	out := make([]string, 0, len(i))
	for _, issue := range i {
		if _, ok := seen[issue.Path]; ok {
			continue
		}
		seen[issue.Path] = struct{}{}
		out = append(out, issue.Path)
	}
	sort.Strings(out)
	return out
}

func (i Issues) hasCode(code Code) bool {
	for _, issue := range i {
		if issue.Code == code {
			return true
		}
	}
	return false
}
