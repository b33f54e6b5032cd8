package orchestrator

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	internalLoader "github.com/goliatone/go-pipeform/internal/loader"
	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/formtree"
	"github.com/goliatone/go-pipeform/pkg/reference"
	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/testsupport"
	"github.com/goliatone/go-pipeform/pkg/validation"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

const componentSpec = `{
  "type": "object",
  "required": ["input"],
  "properties": {
    "input": {
      "type": "object",
      "oneOf": [
        {
          "required": ["task", "prompt"],
          "properties": {
            "task": {"const": "TASK_TEXT", "title": "Task"},
            "prompt": {
              "type": "string",
              "anyOf": [
                {"type": "string", "instillUpstreamType": "value"},
                {"type": "string", "instillUpstreamType": "reference"}
              ]
            }
          }
        },
        {
          "required": ["task", "image"],
          "properties": {
            "task": {"const": "TASK_IMAGE"},
            "image": {
              "type": "string",
              "anyOf": [{"type": "string", "instillUpstreamType": "reference"}]
            }
          }
        }
      ]
    }
  }
}`

func TestDerive_SelectsBranchFromConfiguration(t *testing.T) {
	o := New()
	config := map[string]any{
		"input": map[string]any{"task": "TASK_IMAGE", "image": "plain"},
	}

	result, err := o.Derive(context.Background(), Request{Specification: testsupport.MustSpec(t, componentSpec), Configuration: config})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if diff := cmp.Diff(map[string]string{"input.task": "TASK_IMAGE"}, result.Selected); diff != "" {
		t.Fatalf("selected mismatch (-want +got):\n%s", diff)
	}
	want := validation.Issues{{Path: "input.image", Code: validation.CodeReferenceOnly, Message: validation.MessageReferenceOnly}}
	if diff := cmp.Diff(want, result.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	if result.Valid() {
		t.Fatalf("expected invalid result")
	}

	cond, ok := formtree.Find(result.Tree, "input")
	if !ok || cond.Kind() != formtree.KindCondition {
		t.Fatalf("expected condition at input, got %#v", cond)
	}
}

func TestDerive_OverridesAndReferences(t *testing.T) {
	o := New()
	config := map[string]any{
		"input": map[string]any{"task": "TASK_IMAGE", "image": "${start.image}"},
	}

	result, err := o.Derive(context.Background(), Request{
		Specification: testsupport.MustSpec(t, componentSpec),
		Configuration: config,
		Selected:      map[string]string{"input.task": "TASK_TEXT"},
		NodeID:        "ai_0",
	})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	// The override switches the validator to the text branch, where the
	// prompt is required.
	want := validation.Issues{{Path: "input.prompt", Code: validation.CodeRequired, Message: validation.MessageRequired}}
	if diff := cmp.Diff(want, result.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}

	wantRefs := []reference.Reference{{NodeID: "ai_0", ReferencedNodeID: "start", Expression: "start.image", Path: "input.image"}}
	if diff := cmp.Diff(wantRefs, result.References); diff != "" {
		t.Fatalf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestDerive_HiddenFieldsAreNotValidated(t *testing.T) {
	o := New(WithVisibility(visibility.Paths("input.image")))
	config := map[string]any{
		"input": map[string]any{"task": "TASK_IMAGE", "image": "plain"},
	}
	result, err := o.Derive(context.Background(), Request{Specification: testsupport.MustSpec(t, componentSpec), Configuration: config})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("expected hidden field to be skipped, got %v", result.Issues)
	}
}

func TestDerive_FromCatalogueAndSource(t *testing.T) {
	files := fstest.MapFS{
		"defs.json": {Data: []byte(`[{"name":"connector-definitions/ai-test","id":"ai-test","title":"Test","spec":{"component_specification":` + componentSpec + `}}]`)},
	}
	loader := internalLoader.NewWithOptions(schema.WithFileSystem(files))

	fromSource, err := New(WithLoader(loader)).Derive(context.Background(), Request{Source: schema.SourceFromFS("defs.json")})
	if err != nil {
		t.Fatalf("Derive from source: %v", err)
	}
	if fromSource.Definition == nil || fromSource.Definition.ID != "ai-test" {
		t.Fatalf("definition not reported: %+v", fromSource.Definition)
	}
	if fromSource.Issues != nil {
		t.Fatalf("nil configuration should not be validated, got %v", fromSource.Issues)
	}

	catalogue := definition.NewCatalogue()
	if err := catalogue.LoadInto(context.Background(), loader, schema.SourceFromFS("defs.json"), schema.ResolveOptions{}); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	o := New(WithCatalogue(catalogue))

	if _, err := o.Derive(context.Background(), Request{Definition: "connector-definitions/ai-test"}); err != nil {
		t.Fatalf("Derive from catalogue: %v", err)
	}
	if _, err := o.Derive(context.Background(), Request{Definition: "ai-test", Resource: true}); err == nil {
		t.Fatalf("expected missing resource specification error")
	}
	if _, err := o.Derive(context.Background(), Request{Definition: "missing"}); !errors.Is(err, definition.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := o.Derive(context.Background(), Request{}); !errors.Is(err, ErrNoSpecification) {
		t.Fatalf("expected ErrNoSpecification, got %v", err)
	}
}

func TestDeriveTrigger(t *testing.T) {
	doc := []byte(`openapi: 3.0.3
info: {title: p, version: v1}
paths:
  /v1beta/pipelines/p/trigger:
    post:
      operationId: Trigger
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                inputs:
                  type: array
                  items:
                    type: object
                    required: [prompt]
                    properties:
                      prompt: {type: string}
      responses:
        "200": {description: OK}
`)
	result, op, err := New().DeriveTrigger(context.Background(), TriggerRequest{Document: doc, Values: map[string]any{}})
	if err != nil {
		t.Fatalf("DeriveTrigger: %v", err)
	}
	if op.ID != "Trigger" {
		t.Fatalf("operation = %q", op.ID)
	}
	want := validation.Issues{{Path: "prompt", Code: validation.CodeRequired, Message: validation.MessageRequired}}
	if diff := cmp.Diff(want, result.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}
