// Package reference finds ${...} reference expressions in component
// configurations and derives the pipeline edges they imply.
package reference

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var expressionPattern = regexp.MustCompile(`\$\{([^{}]*)\}`)

// Expression is a single ${...} occurrence inside a string.
type Expression struct {
	// Raw is the full match including the ${ } delimiters.
	Raw string
	// Body is the trimmed text between the delimiters, e.g. "node1.output.text".
	Body string
}

// NodeID returns the referenced component id: the segment before the first dot.
func (e Expression) NodeID() string {
	id, _, _ := strings.Cut(e.Body, ".")
	return id
}

// Field returns the referenced output path after the component id.
func (e Expression) Field() string {
	_, field, _ := strings.Cut(e.Body, ".")
	return field
}

// Find returns every reference expression in s, in order of appearance.
func Find(s string) []Expression {
	matches := expressionPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Expression, 0, len(matches))
	for _, match := range matches {
		out = append(out, Expression{Raw: match[0], Body: strings.TrimSpace(match[1])})
	}
	return out
}

// Count returns the number of reference expressions in s.
func Count(s string) int {
	return len(expressionPattern.FindAllStringIndex(s, -1))
}

// Reference ties an expression found in one component's configuration to the
// component it points at.
type Reference struct {
	// NodeID owns the configuration holding the expression.
	NodeID string `json:"node_id"`
	// ReferencedNodeID is the component the expression reads from.
	ReferencedNodeID string `json:"referenced_node_id"`
	// Expression is the trimmed expression body, e.g. "node1.c".
	Expression string `json:"expression"`
	// Path is the dotted configuration path holding the expression, e.g. "a.b".
	Path string `json:"path"`
}

// FromConfiguration walks a configuration value and returns one Reference per
// non-empty expression found in its string leaves. Map keys are visited in
// sorted order.
func FromConfiguration(config any, nodeID string) []Reference {
	var refs []Reference
	walk(config, "", func(path, value string) {
		for _, expr := range Find(value) {
			if expr.Body == "" {
				continue
			}
			refs = append(refs, Reference{
				NodeID:           nodeID,
				ReferencedNodeID: expr.NodeID(),
				Expression:       expr.Body,
				Path:             path,
			})
		}
	})
	return refs
}

func walk(value any, path string, visit func(path, value string)) {
	switch typed := value.(type) {
	case string:
		visit(path, typed)
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			walk(typed[key], join(path, key), visit)
		}
	case map[string]string:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			visit(join(path, key), typed[key])
		}
	case []any:
		for idx, item := range typed {
			walk(item, join(path, strconv.Itoa(idx)), visit)
		}
	case []string:
		for idx, item := range typed {
			visit(join(path, strconv.Itoa(idx)), item)
		}
	}
}

func join(base, segment string) string {
	if base == "" {
		return segment
	}
	return base + "." + segment
}
