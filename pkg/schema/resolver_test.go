package schema

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type memoryLoader struct {
	docs  map[string]string
	calls map[string]int
}

func (m *memoryLoader) Load(_ context.Context, src Source) (Document, error) {
	if m.calls != nil {
		m.calls[src.Location()]++
	}
	raw, ok := m.docs[src.Location()]
	if !ok {
		return Document{}, fmt.Errorf("missing document %q", src.Location())
	}
	return NewDocument(src, []byte(raw))
}

func mustResolve(t *testing.T, loader Loader, location, raw string) *Node {
	t.Helper()
	doc, err := NewDocument(SourceFromFS(location), []byte(raw))
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	root, err := doc.Node()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resolved, err := NewResolver(loader, ResolveOptions{}).Resolve(context.Background(), doc, root)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return resolved
}

func TestResolver_LocalDefs(t *testing.T) {
	raw := `{
  "$defs": {"model": {"type": "string", "title": "Model", "enum": ["a", "b"]}},
  "type": "object",
  "properties": {
    "model": {"$ref": "#/$defs/model", "title": "Chat model"},
    "other": {"type": "boolean"}
  }
}`
	resolved := mustResolve(t, nil, "spec.json", raw)
	model, ok := resolved.Property("model")
	if !ok {
		t.Fatalf("model property missing")
	}
	if model.Ref != "" || model.PrimaryType() != "string" || len(model.Enum) != 2 {
		t.Fatalf("ref not inlined: %+v", model)
	}
	if model.Title != "Chat model" {
		t.Fatalf("expected sibling title override, got %q", model.Title)
	}
	if len(resolved.Defs) != 0 {
		t.Fatalf("expected $defs to be dropped from output")
	}
	if got := strings.Join(resolved.Properties.Names(), ","); got != "model,other" {
		t.Fatalf("order lost: %s", got)
	}
}

func TestResolver_ExternalDocumentAndAnchor(t *testing.T) {
	loader := &memoryLoader{
		docs: map[string]string{
			"defs/common.json": `{"$defs":{"key":{"$anchor":"apiKey","type":"string","instillCredentialField":true}}}`,
		},
		calls: map[string]int{},
	}
	raw := `{"type":"object","properties":{
		"a": {"$ref": "defs/common.json#apiKey"},
		"b": {"$ref": "defs/common.json#/$defs/key"}
	}}`
	resolved := mustResolve(t, loader, "spec.json", raw)
	for _, name := range []string{"a", "b"} {
		prop, _ := resolved.Property(name)
		if !prop.CredentialField {
			t.Fatalf("%s: expected credential field from external doc, got %+v", name, prop)
		}
	}
	if loader.calls["defs/common.json"] != 1 {
		t.Fatalf("expected external document to be loaded once, got %d", loader.calls["defs/common.json"])
	}
}

func TestResolver_DetectsCycles(t *testing.T) {
	raw := `{"$defs":{"a":{"$ref":"#/$defs/b"},"b":{"$ref":"#/$defs/a"}},"properties":{"x":{"$ref":"#/$defs/a"}}}`
	doc, _ := NewDocument(SourceFromFS("spec.json"), []byte(raw))
	root, err := doc.Node()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, err = NewResolver(nil, ResolveOptions{}).Resolve(context.Background(), doc, root)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestResolver_RejectsTraversal(t *testing.T) {
	raw := `{"properties":{"x":{"$ref":"../outside.json"}}}`
	doc, _ := NewDocument(SourceFromFS("nested/spec.json"), []byte(raw))
	root, _ := doc.Node()
	loader := &memoryLoader{docs: map[string]string{"outside.json": `{"type":"string"}`}}
	// "nested/../outside.json" cleans to "outside.json" which is still inside the fs root.
	if _, err := NewResolver(loader, ResolveOptions{}).Resolve(context.Background(), doc, root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw = `{"properties":{"x":{"$ref":"../../outside.json"}}}`
	doc, _ = NewDocument(SourceFromFS("nested/spec.json"), []byte(raw))
	root, _ = doc.Node()
	if _, err := NewResolver(loader, ResolveOptions{}).Resolve(context.Background(), doc, root); err == nil {
		t.Fatalf("expected traversal error")
	}
}
