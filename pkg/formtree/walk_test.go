package formtree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const nestedConditionSpec = `{"type":"object","properties":{
	"input":{"type":"object","oneOf":[
		{"properties":{"mode":{"const":"url"},"url":{"type":"string"}}},
		{"properties":{"mode":{"const":"file"},"format":{"type":"object","oneOf":[
			{"properties":{"kind":{"const":"pdf"}}},
			{"properties":{"kind":{"const":"doc"}}}
		]}}}
	]}
}}`

func TestSelectedConditions(t *testing.T) {
	tree := Transform(mustDecode(t, nestedConditionSpec), Options{})

	got := SelectedConditions(tree, map[string]any{
		"input": map[string]any{"mode": "file", "format": map[string]any{"kind": "doc"}},
	})
	want := map[string]string{"input.mode": "file", "input.format.kind": "doc"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}

	got = SelectedConditions(tree, map[string]any{"input": map[string]any{"mode": "bogus"}})
	if len(got) != 0 {
		t.Fatalf("unknown discriminator values must not be selected, got %v", got)
	}
}

func TestSelectedConditions_SkipsObjectArrayItems(t *testing.T) {
	tree := Transform(mustDecode(t, `{"type":"object","properties":{"steps":{"type":"array","items":{
		"type":"object","oneOf":[
			{"properties":{"kind":{"const":"a"}}},
			{"properties":{"kind":{"const":"b"}}}
		]}}}}`), Options{})

	got := SelectedConditions(tree, map[string]any{
		"steps": []any{map[string]any{"kind": "b"}},
	})
	if len(got) != 0 {
		t.Fatalf("array item conditions carry no selection, got %v", got)
	}
}

func TestFindAndPaths(t *testing.T) {
	tree := Transform(mustDecode(t, nestedConditionSpec), Options{})

	node, ok := Find(tree, "input")
	if !ok {
		t.Fatalf("expected to find input")
	}
	if _, isCond := node.(*Condition); !isCond {
		t.Fatalf("outermost node should win, got %T", node)
	}

	want := []string{"input.mode", "input.url", "input.mode", "input.format.kind", "input.format.kind"}
	if diff := cmp.Diff(want, Paths(tree)); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestLookup(t *testing.T) {
	values := map[string]any{"a": []any{map[string]any{"b": "x"}}}
	if got, ok := Lookup(values, "a.0.b"); !ok || got != "x" {
		t.Fatalf("unexpected lookup %v %v", got, ok)
	}
	if _, ok := Lookup(values, "a.1.b"); ok {
		t.Fatalf("out of range lookup should fail")
	}
}
