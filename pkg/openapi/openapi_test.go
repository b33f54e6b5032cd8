package openapi

import (
	"errors"
	"testing"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

func TestSelectTrigger_DefaultsToTriggerPath(t *testing.T) {
	ops := []Operation{
		{ID: "list", Method: "GET", Path: "/v1beta/pipelines"},
		{ID: "trigger-b", Method: "POST", Path: "/v1beta/b/trigger"},
		{ID: "trigger-a", Method: "POST", Path: "/v1beta/a/trigger"},
	}
	op, err := SelectTrigger(ops, "")
	if err != nil {
		t.Fatalf("SelectTrigger: %v", err)
	}
	if op.ID != "trigger-a" {
		t.Fatalf("selected %q", op.ID)
	}

	op, err = SelectTrigger(ops, "list")
	if err != nil || op.ID != "list" {
		t.Fatalf("explicit selection failed: %v %q", err, op.ID)
	}

	if _, err := SelectTrigger(nil, ""); !errors.Is(err, ErrNoOperations) {
		t.Fatalf("expected ErrNoOperations, got %v", err)
	}
}

func TestInputSchema(t *testing.T) {
	item := &schema.Node{Type: schema.Type{"object"}}
	body := &schema.Node{
		Type: schema.Type{"object"},
		Properties: schema.Properties{
			{Name: "inputs", Schema: &schema.Node{Type: schema.Type{"array"}, Items: item}},
		},
	}
	got, err := InputSchema(Operation{ID: "t", Request: body})
	if err != nil || got != item {
		t.Fatalf("expected inputs item schema, got %v %v", got, err)
	}

	plain := &schema.Node{Type: schema.Type{"object"}}
	if got, _ := InputSchema(Operation{Request: plain}); got != plain {
		t.Fatalf("expected body schema fallback")
	}

	if _, err := InputSchema(Operation{ID: "t"}); !errors.Is(err, ErrNoRequestSchema) {
		t.Fatalf("expected ErrNoRequestSchema, got %v", err)
	}
}
