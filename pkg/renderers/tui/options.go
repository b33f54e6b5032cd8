package tui

import (
	"github.com/goliatone/go-pipeform/pkg/validation"
	"github.com/goliatone/go-pipeform/pkg/widgets"
)

// OutputFormat controls how collected values are serialized.
type OutputFormat string

const (
	// OutputFormatJSON emits application/json payloads.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatPrettyText emits one path=value line per leaf.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// Theme captures optional prefixes for messages printed through the driver.
type Theme struct {
	ErrorPrefix string
}

// SubmitTransformer mutates collected values before serialization.
type SubmitTransformer func(map[string]any) (map[string]any, error)

// RuleFactory builds the validator for the values collected so far. The
// selection of condition branches depends on those values, so the rule is
// rebuilt after every prompt round.
type RuleFactory func(values map[string]any) validation.Rule

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutputFormat selects the output serialization format.
func WithOutputFormat(format OutputFormat) Option {
	return func(r *Renderer) {
		if format != "" {
			r.outputFormat = format
		}
	}
}

// WithSubmitTransformer allows callers to mutate collected values prior to
// serialization.
func WithSubmitTransformer(fn SubmitTransformer) Option {
	return func(r *Renderer) {
		r.submitTransformer = fn
	}
}

// WithRuleFactory replaces the validator derived from the form tree.
func WithRuleFactory(factory RuleFactory) Option {
	return func(r *Renderer) {
		r.rules = factory
	}
}

// WithMaxRounds caps how many times invalid fields are re-prompted.
func WithMaxRounds(rounds int) Option {
	return func(r *Renderer) {
		if rounds > 0 {
			r.maxRounds = rounds
		}
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Renderer) {
		r.theme = theme
	}
}

// WithWidgets overrides the registry choosing the prompt for each field.
// Unresolved fields fall back to a plain input.
func WithWidgets(registry *widgets.Registry) Option {
	return func(r *Renderer) {
		if registry != nil {
			r.widgets = registry
		}
	}
}
