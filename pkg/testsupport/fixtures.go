// Package testsupport holds fixture helpers shared by package tests.
package testsupport

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/formtree"
	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

// MustSpec decodes a JSON or YAML specification fixture.
func MustSpec(t *testing.T, raw string) *schema.Node {
	t.Helper()

	node, err := schema.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode specification: %v", err)
	}
	return node
}

// MustTree decodes a specification fixture and derives its form tree.
func MustTree(t *testing.T, raw string, hidden visibility.Predicate) formtree.Node {
	t.Helper()

	return formtree.Transform(MustSpec(t, raw), formtree.Options{Hidden: hidden})
}

// MustDefinitions loads a definitions document (any shape definition.Decode
// accepts) without resolving references.
func MustDefinitions(t *testing.T, path string) []definition.Definition {
	t.Helper()

	defs, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("load definitions: %v", err)
	}
	return defs
}

// LoadDefinitions returns the definitions of a fixture file, for callers
// managing setup outside of *testing.T.
func LoadDefinitions(path string) ([]definition.Definition, error) {
	if path == "" {
		return nil, errors.New("testsupport: definitions path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read definitions: %w", err)
	}
	defs, err := definition.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("testsupport: decode definitions: %w", err)
	}
	return defs, nil
}

// MustCatalogue stores defs in a fresh catalogue.
func MustCatalogue(t *testing.T, defs ...definition.Definition) *definition.Catalogue {
	t.Helper()

	catalogue := definition.NewCatalogue()
	if err := catalogue.Add(defs...); err != nil {
		t.Fatalf("catalogue: %v", err)
	}
	return catalogue
}

// AssertJSONEqual compares two JSON documents structurally.
func AssertJSONEqual(t *testing.T, want string, got []byte) {
	t.Helper()

	var wantValue, gotValue any
	if err := json.Unmarshal([]byte(want), &wantValue); err != nil {
		t.Fatalf("unmarshal expected JSON: %v", err)
	}
	if err := json.Unmarshal(got, &gotValue); err != nil {
		t.Fatalf("unmarshal actual JSON: %v\n%s", err, got)
	}
	if diff := cmp.Diff(wantValue, gotValue); diff != "" {
		t.Fatalf("JSON mismatch (-want +got):\n%s", diff)
	}
}
