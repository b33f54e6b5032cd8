// Package widgets picks the input widget a renderer uses for each form item.
package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-pipeform/pkg/formtree"
	"github.com/goliatone/go-pipeform/pkg/schema"
)

// Built-in widget identifiers exposed by the registry.
const (
	WidgetInput       = "input"
	WidgetSelect      = "select"
	WidgetMultiSelect = "multiselect"
	WidgetConfirm     = "confirm"
	WidgetList        = "list"
	WidgetPassword    = "password"
	WidgetTextArea    = "textarea"
)

// Matcher decides whether a widget should handle the supplied item.
type Matcher func(item *formtree.Item) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects widgets for form items based on pinned paths or
// registered matchers. Higher priority wins; ties fall back to registration
// order. An empty registry never resolves a widget.
type Registry struct {
	mu     sync.RWMutex
	rules  []rule
	pinned map[string]string
}

// NewRegistry constructs a registry with the built-in widget matchers
// registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a widget matcher with the provided name and priority. Higher
// priority values take precedence. Callers should avoid duplicate names; the
// latest registration wins during resolution.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Pin forces a widget for the item at path, bypassing matchers.
func (r *Registry) Pin(path, widget string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pinned == nil {
		r.pinned = make(map[string]string)
	}
	r.pinned[path] = strings.TrimSpace(widget)
}

// Resolve returns the widget name for an item. Pinned paths are honoured
// before matcher evaluation.
func (r *Registry) Resolve(item *formtree.Item) (string, bool) {
	if r == nil || item == nil {
		return "", false
	}
	r.mu.RLock()
	if widget := r.pinned[item.Path]; widget != "" {
		r.mu.RUnlock()
		return widget, true
	}
	if len(r.rules) == 0 {
		r.mu.RUnlock()
		return "", false
	}
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(item) {
			return entry.name, true
		}
	}
	return "", false
}

// Widgets resolves every item of the tree, keyed by path. Items without a
// widget are omitted.
func (r *Registry) Widgets(tree formtree.Node) map[string]string {
	out := make(map[string]string)
	formtree.Walk(tree, func(n formtree.Node) bool {
		if item, ok := n.(*formtree.Item); ok {
			if widget, ok := r.Resolve(item); ok {
				out[item.Path] = widget
			}
		}
		return true
	})
	return out
}

// AcceptsSemiStructured reports whether the item takes semi-structured
// (JSON-like) input.
func AcceptsSemiStructured(item *formtree.Item) bool {
	for _, format := range item.AcceptFormats {
		if strings.Contains(format, schema.FormatSemiStructured) {
			return true
		}
	}
	return false
}

func (r *Registry) registerBuiltins() {
	r.Register(WidgetMultiSelect, 90, func(item *formtree.Item) bool {
		return item.Type == "array" && len(item.Enum) > 0
	})

	r.Register(WidgetSelect, 80, func(item *formtree.Item) bool {
		return len(item.Enum) > 0
	})

	r.Register(WidgetConfirm, 70, func(item *formtree.Item) bool {
		return item.Type == "boolean"
	})

	r.Register(WidgetList, 60, func(item *formtree.Item) bool {
		return item.Type == "array"
	})

	r.Register(WidgetPassword, 50, func(item *formtree.Item) bool {
		return item.CredentialField
	})

	r.Register(WidgetTextArea, 40, func(item *formtree.Item) bool {
		return item.Type == "object" || AcceptsSemiStructured(item)
	})
}
