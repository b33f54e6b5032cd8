package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	pkgopenapi "github.com/goliatone/go-pipeform/pkg/openapi"
	"github.com/goliatone/go-pipeform/pkg/schema"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", "pipeline.yaml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return raw
}

func TestParser_Operations(t *testing.T) {
	ops, err := New(Options{}).Operations(context.Background(), loadFixture(t))
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}

	var ids []string
	for _, op := range ops {
		ids = append(ids, op.Method+" "+op.ID)
	}
	want := []string{"GET GetUserPipeline", "POST TriggerUserPipeline"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerSchema_InputsItem(t *testing.T) {
	node, op, err := pkgopenapi.TriggerSchema(context.Background(), New(Options{}), loadFixture(t), "")
	if err != nil {
		t.Fatalf("TriggerSchema: %v", err)
	}
	if op.ID != "TriggerUserPipeline" {
		t.Fatalf("selected %q", op.ID)
	}

	if diff := cmp.Diff([]string{"prompt", "temperature"}, node.Properties.Names()); diff != "" {
		t.Fatalf("properties mismatch (-want +got):\n%s", diff)
	}
	if !node.IsRequired("prompt") {
		t.Fatalf("prompt should be required")
	}

	prompt, _ := node.Property("prompt")
	if prompt.UIOrder == nil || *prompt.UIOrder != 0 || prompt.DataFormat != "string" {
		t.Fatalf("prompt extensions not applied: %+v", prompt)
	}
	temperature, _ := node.Property("temperature")
	wantTypes := []schema.UpstreamType{schema.UpstreamValue, schema.UpstreamReference}
	if diff := cmp.Diff(wantTypes, temperature.UpstreamTypes); diff != "" {
		t.Fatalf("upstream types mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerSchema_UnknownOperation(t *testing.T) {
	_, _, err := pkgopenapi.TriggerSchema(context.Background(), New(Options{}), loadFixture(t), "Nope")
	if !errors.Is(err, pkgopenapi.ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
}

func TestOperations_EmptyPayload(t *testing.T) {
	if _, err := New(Options{}).Operations(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
