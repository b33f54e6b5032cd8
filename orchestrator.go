package pipeform

import (
	"context"

	"github.com/goliatone/go-pipeform/pkg/orchestrator"
	"github.com/goliatone/go-pipeform/pkg/render"
	"github.com/goliatone/go-pipeform/pkg/render/markdown"
	"github.com/goliatone/go-pipeform/pkg/schema"
)

// Request aliases orchestrator.Request for callers using the root package.
type Request = orchestrator.Request

// Result aliases orchestrator.Result.
type Result = orchestrator.Result

// TriggerRequest aliases orchestrator.TriggerRequest.
type TriggerRequest = orchestrator.TriggerRequest

// RenderOptions describes per-request values and errors renderers can surface.
type RenderOptions = render.RenderOptions

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// DeriveForm loads the definitions document at source, picks the definition
// named by definitionID (the first one when empty), and derives its form. A
// non-nil configuration is validated.
func DeriveForm(ctx context.Context, source schema.Source, definitionID string, configuration map[string]any, options ...orchestrator.Option) (Result, error) {
	return orchestrator.New(options...).Derive(ctx, orchestrator.Request{
		Source:        source,
		Definition:    definitionID,
		Configuration: configuration,
	})
}

// GenerateMarkdown derives the form of a definition and renders it as
// Markdown documentation.
func GenerateMarkdown(ctx context.Context, source schema.Source, definitionID string, options ...orchestrator.Option) ([]byte, error) {
	result, err := DeriveForm(ctx, source, definitionID, nil, options...)
	if err != nil {
		return nil, err
	}
	form := render.Form{Tree: result.Tree}
	if result.Definition != nil {
		form = render.FormFromDefinition(*result.Definition, result.Tree)
	}
	return markdown.New().Render(ctx, form, RenderOptions{})
}
