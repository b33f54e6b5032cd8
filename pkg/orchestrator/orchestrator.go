package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	internalLoader "github.com/goliatone/go-pipeform/internal/loader"
	internalParser "github.com/goliatone/go-pipeform/internal/openapi/parser"
	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/formtree"
	pkgopenapi "github.com/goliatone/go-pipeform/pkg/openapi"
	"github.com/goliatone/go-pipeform/pkg/reference"
	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/validation"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

var ErrNoSpecification = errors.New("orchestrator: request names no definition or specification")

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLoader injects the document loader used for Request.Source.
func WithLoader(loader schema.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = loader
	}
}

// WithCatalogue injects the catalogue consulted for Request.Definition.
func WithCatalogue(catalogue *definition.Catalogue) Option {
	return func(o *Orchestrator) {
		o.catalogue = catalogue
	}
}

// WithParser injects the OpenAPI parser used by DeriveTrigger.
func WithParser(parser pkgopenapi.Parser) Option {
	return func(o *Orchestrator) {
		o.parser = parser
	}
}

// WithVisibility sets the default hidden predicate. Requests may override it.
func WithVisibility(hidden visibility.Predicate) Option {
	return func(o *Orchestrator) {
		o.hidden = hidden
	}
}

// WithResolveOptions bounds $ref expansion for loaded sources.
func WithResolveOptions(opts schema.ResolveOptions) Option {
	return func(o *Orchestrator) {
		o.resolve = opts
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// Orchestrator derives forms for definitions. Missing dependencies are
// initialised with the built-in implementations.
type Orchestrator struct {
	loader    schema.Loader
	catalogue *definition.Catalogue
	parser    pkgopenapi.Parser
	hidden    visibility.Predicate
	resolve   schema.ResolveOptions
	logger    *slog.Logger
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

func (o *Orchestrator) applyDefaults() {
	if o.loader == nil {
		o.loader = internalLoader.New(schema.LoaderOptions{})
	}
	if o.catalogue == nil {
		o.catalogue = definition.NewCatalogue(definition.WithLogger(o.logger))
	}
	if o.parser == nil {
		o.parser = internalParser.New(internalParser.Options{})
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("module", "orchestrator")
}

// Catalogue returns the catalogue backing Request.Definition lookups.
func (o *Orchestrator) Catalogue() *definition.Catalogue {
	return o.catalogue
}

// Request describes one form derivation. Exactly one of Specification,
// Definition, or Source is consulted, in that order.
type Request struct {
	// Specification bypasses definition lookup entirely.
	Specification *schema.Node

	// Definition names a catalogue entry by id or resource name.
	Definition string

	// Source points at a definitions document. When it holds several
	// definitions, Definition selects one; otherwise the first is used.
	Source schema.Source

	// Resource selects the resource specification instead of the component
	// specification.
	Resource bool

	// Configuration is the current form value. When non-nil it seeds the
	// condition selection and is validated.
	Configuration map[string]any

	// Selected overrides configuration-derived condition selections.
	Selected map[string]string

	// NodeID enables reference extraction for the configuration.
	NodeID string

	// Hidden overrides the orchestrator's default predicate when non-nil.
	Hidden visibility.Predicate
}

// Result carries every artefact of a derivation.
type Result struct {
	Definition *definition.Definition
	Schema     *schema.Node
	Tree       formtree.Node
	Rule       validation.Rule
	Selected   map[string]string
	Issues     validation.Issues
	References []reference.Reference
}

// Valid reports whether the configuration produced no issues.
func (r Result) Valid() bool {
	return len(r.Issues) == 0
}

// Derive loads the specification named by req and derives its form tree,
// selection map, and validator. The configuration, when present, is
// validated and scanned for references.
func (o *Orchestrator) Derive(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	def, spec, err := o.specification(ctx, req)
	if err != nil {
		return Result{}, err
	}

	result := derive(spec, req.Configuration, req.Selected, o.predicate(req.Hidden))
	result.Definition = def
	if req.NodeID != "" && req.Configuration != nil {
		result.References = reference.FromConfiguration(req.Configuration, req.NodeID)
	}

	o.logger.Debug("form derived",
		"definition", definitionID(def),
		"resource", req.Resource,
		"selected", len(result.Selected),
		"issues", len(result.Issues),
	)
	return result, nil
}

// TriggerRequest describes a trigger form derivation from a pipeline's
// OpenAPI document.
type TriggerRequest struct {
	Document    []byte
	OperationID string
	Values      map[string]any
	Selected    map[string]string
}

// DeriveTrigger derives the trigger form of a pipeline.
func (o *Orchestrator) DeriveTrigger(ctx context.Context, req TriggerRequest) (Result, pkgopenapi.Operation, error) {
	spec, op, err := pkgopenapi.TriggerSchema(ctx, o.parser, req.Document, req.OperationID)
	if err != nil {
		return Result{}, op, err
	}
	result := derive(spec, req.Values, req.Selected, o.hidden)
	o.logger.Debug("trigger form derived", "operation", op.ID, "issues", len(result.Issues))
	return result, op, nil
}

func derive(spec *schema.Node, values map[string]any, overrides map[string]string, hidden visibility.Predicate) Result {
	tree := formtree.Transform(spec, formtree.Options{Hidden: hidden})
	selected := formtree.SelectedConditions(tree, values)
	for path, value := range overrides {
		selected[path] = value
	}

	rule := validation.ForSchema(spec, selected, hidden)
	result := Result{Schema: spec, Tree: tree, Rule: rule, Selected: selected}
	if values != nil {
		result.Issues = rule.Validate("", values)
	}
	return result
}

func (o *Orchestrator) predicate(override visibility.Predicate) visibility.Predicate {
	if override != nil {
		return override
	}
	return o.hidden
}

func (o *Orchestrator) specification(ctx context.Context, req Request) (*definition.Definition, *schema.Node, error) {
	if req.Specification != nil {
		return nil, req.Specification, nil
	}

	var def definition.Definition
	switch {
	case req.Source != nil:
		defs, err := definition.Load(ctx, o.loader, req.Source, o.resolve)
		if err != nil {
			return nil, nil, err
		}
		picked, err := pick(defs, req.Definition)
		if err != nil {
			return nil, nil, err
		}
		def = picked
	case req.Definition != "":
		found, err := o.catalogue.Get(req.Definition)
		if err != nil {
			return nil, nil, err
		}
		def = found
	default:
		return nil, nil, ErrNoSpecification
	}

	spec, err := def.Specification(req.Resource)
	if err != nil {
		return nil, nil, err
	}
	return &def, spec, nil
}

func pick(defs []definition.Definition, ref string) (definition.Definition, error) {
	if len(defs) == 0 {
		return definition.Definition{}, fmt.Errorf("%w: source holds no definitions", definition.ErrNotFound)
	}
	if ref == "" {
		return defs[0], nil
	}
	for _, def := range defs {
		if def.ID == ref || def.Name == ref {
			return def, nil
		}
	}
	return definition.Definition{}, fmt.Errorf("%w: %s", definition.ErrNotFound, ref)
}

func definitionID(def *definition.Definition) string {
	if def == nil {
		return ""
	}
	return def.ID
}
