// Package visibility provides the hidden-field predicates injected into the
// form-tree and validator transforms. Hidden is advisory: a hidden field is
// still described by the form tree, it is only skipped by renderers and
// relaxed by validators.
package visibility

import (
	"strings"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

// Target identifies the field being classified.
type Target struct {
	Parent *schema.Node
	Schema *schema.Node
	Key    string
	Path   string
}

// Predicate reports whether the target field is hidden. Predicates must be
// pure: transforms may call them any number of times.
type Predicate func(Target) bool

// Hidden evaluates p, treating a nil predicate as Never.
func (p Predicate) Hidden(target Target) bool {
	if p == nil {
		return false
	}
	return p(target)
}

// Never hides nothing.
func Never(Target) bool { return false }

// Any hides a field when at least one predicate does.
func Any(predicates ...Predicate) Predicate {
	return func(target Target) bool {
		for _, predicate := range predicates {
			if predicate.Hidden(target) {
				return true
			}
		}
		return false
	}
}

// EditOnNode hides the fields a node panel does not edit: when the parent
// lists instillEditOnNodeFields, keys outside that list are hidden.
func EditOnNode() Predicate {
	return func(target Target) bool {
		if target.Parent == nil || len(target.Parent.EditOnNodeFields) == 0 || target.Key == "" {
			return false
		}
		for _, field := range target.Parent.EditOnNodeFields {
			if field == target.Key {
				return false
			}
		}
		return true
	}
}

// Credentials hides fields marked with instillCredentialField, used when the
// credentials live on a separate resource form.
func Credentials() Predicate {
	return func(target Target) bool {
		return target.Schema != nil && target.Schema.CredentialField
	}
}

// Paths hides the listed dotted paths and everything beneath them.
func Paths(paths ...string) Predicate {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if trimmed := strings.Trim(strings.TrimSpace(p), "."); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return func(target Target) bool {
		current := target.Path
		for current != "" {
			if _, ok := set[current]; ok {
				return true
			}
			idx := strings.LastIndexByte(current, '.')
			if idx < 0 {
				break
			}
			current = current[:idx]
		}
		return false
	}
}

// Named resolves the predicate names accepted by the CLI and HTTP API.
func Named(names ...string) (Predicate, []string) {
	var (
		predicates []Predicate
		unknown    []string
	)
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
		case "credentials", "credential":
			predicates = append(predicates, Credentials())
		case "edit-on-node", "node":
			predicates = append(predicates, EditOnNode())
		default:
			unknown = append(unknown, name)
		}
	}
	if len(predicates) == 0 {
		return Never, unknown
	}
	return Any(predicates...), unknown
}
