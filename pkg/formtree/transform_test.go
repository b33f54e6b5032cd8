package formtree

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

func mustDecode(t *testing.T, raw string) *schema.Node {
	t.Helper()
	node, err := schema.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	return node
}

func childKeys(g *Group) []string {
	out := make([]string, 0, len(g.Children))
	for _, child := range g.Children {
		out = append(out, child.Metadata().Key)
	}
	return out
}

func TestTransform_GroupOrderingIsStable(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{
		"b": {"type":"string","instillUIOrder":1},
		"a": {"type":"string"},
		"c": {"type":"string","instillUIOrder":0},
		"d": {"type":"string"},
		"e": {"type":"string","instillUIOrder":1}
	}}`)

	group, ok := Transform(spec, Options{}).(*Group)
	if !ok {
		t.Fatalf("expected group root")
	}
	if diff := cmp.Diff([]string{"c", "b", "e", "a", "d"}, childKeys(group)); diff != "" {
		t.Fatalf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestTransform_RequiredAndPaths(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","required":["setup"],"properties":{
		"setup": {"type":"object","required":["api_key"],"properties":{
			"api_key": {"type":"string","instillCredentialField":true},
			"org": {"type":"string"}
		}}
	}}`)

	root := Transform(spec, Options{}).(*Group)
	setup := root.Children[0].(*Group)
	if !setup.Required || setup.Path != "setup" {
		t.Fatalf("unexpected setup meta: %+v", setup.Meta)
	}
	apiKey := setup.Children[0].(*Item)
	org := setup.Children[1].(*Item)
	if apiKey.Path != "setup.api_key" || !apiKey.Required || !apiKey.CredentialField {
		t.Fatalf("unexpected api_key meta: %+v", apiKey.Meta)
	}
	if org.Required || org.Type != "string" {
		t.Fatalf("unexpected org: %+v", org)
	}
	if org.AcceptFormats == nil {
		t.Fatalf("leaf accept formats should default to an empty list")
	}
}

func TestTransform_BooleanSchemaIsUnrequiredNullLeaf(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","required":["anything"],"properties":{"anything":true}}`)
	root := Transform(spec, Options{}).(*Group)
	want := &Item{Meta: Meta{Key: "anything", Path: "anything"}, Type: "null"}
	if diff := cmp.Diff(want, root.Children[0]); diff != "" {
		t.Fatalf("boolean leaf mismatch (-want +got):\n%s", diff)
	}
}

func TestTransform_UpstreamEnumShortCircuits(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{"model":{
		"title":"Model",
		"instillUpstreamTypes":["value","reference"],
		"anyOf":[
			{"type":["string"],"enum":["gpt-4","gpt-3.5"],"instillUpstreamType":"value","example":"gpt-4"},
			{"type":"string","instillUpstreamType":"reference","pattern":"^\\{.*\\}$"}
		]
	}}}`)
	item := Transform(spec, Options{}).(*Group).Children[0].(*Item)
	if item.Type != "string" {
		t.Fatalf("expected type from value branch, got %q", item.Type)
	}
	if diff := cmp.Diff([]any{"gpt-4", "gpt-3.5"}, item.Enum); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
	if item.Example != "gpt-4" || item.Title != "Model" {
		t.Fatalf("unexpected meta: %+v", item.Meta)
	}
}

func TestTransform_AnyOfWithoutValueBranchIsNullLeaf(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{"ref":{"type":"string","anyOf":[
		{"type":"string","instillUpstreamType":"reference"}
	]}}}`)
	item := Transform(spec, Options{}).(*Group).Children[0].(*Item)
	if item.Type != "null" {
		t.Fatalf("expected null type, got %q", item.Type)
	}
}

func TestTransform_ConditionBranches(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{"input":{
		"type":"object",
		"oneOf":[
			{"properties":{"mode":{"const":"url","title":"Mode","description":"Input mode"},"url":{"type":"string"}},"required":["url"]},
			{"properties":{"note":{"type":"string"}}},
			{"properties":{"mode":{"const":"text"},"text":{"type":"string"}}}
		]
	}}}`)
	cond, ok := Transform(spec, Options{}).(*Group).Children[0].(*Condition)
	if !ok {
		t.Fatalf("expected condition node")
	}
	if diff := cmp.Diff([]string{"url", "text"}, cond.Values()); diff != "" {
		t.Fatalf("branch values mismatch (-want +got):\n%s", diff)
	}
	if cond.Discriminator != "mode" || cond.DiscriminatorPath() != "input.mode" {
		t.Fatalf("unexpected discriminator %q / %q", cond.Discriminator, cond.DiscriminatorPath())
	}
	if cond.Title != "Mode" || cond.Description != "Input mode" || cond.Const != nil {
		t.Fatalf("expected discriminator annotations without const, got %+v", cond.Meta)
	}

	urlBranch, _ := cond.Branch("url")
	group := urlBranch.(*Group)
	if group.Path != "input" {
		t.Fatalf("branch should share the condition path, got %q", group.Path)
	}
	if diff := cmp.Diff([]string{"mode", "url"}, childKeys(group)); diff != "" {
		t.Fatalf("branch children mismatch (-want +got):\n%s", diff)
	}
	if !group.Children[1].Metadata().Required || group.Children[1].Metadata().Path != "input.url" {
		t.Fatalf("unexpected url child: %+v", group.Children[1].Metadata())
	}
}

func TestTransform_DuplicateDiscriminatorKeepsLastBranch(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{"input":{"type":"object","oneOf":[
		{"properties":{"mode":{"const":"url"},"first":{"type":"string"}}},
		{"properties":{"mode":{"const":"text"},"text":{"type":"string"}}},
		{"properties":{"mode":{"const":"url"},"second":{"type":"string"}}}
	]}}}`)
	cond := Transform(spec, Options{}).(*Group).Children[0].(*Condition)
	if diff := cmp.Diff([]string{"url", "text"}, cond.Values()); diff != "" {
		t.Fatalf("branch values mismatch (-want +got):\n%s", diff)
	}
	urlBranch, _ := cond.Branch("url")
	if diff := cmp.Diff([]string{"mode", "second"}, childKeys(urlBranch.(*Group))); diff != "" {
		t.Fatalf("later branch should replace the earlier one (-want +got):\n%s", diff)
	}
}

func TestTransform_Arrays(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{
		"messages":{"type":"array","title":"Messages","items":{"type":"object","required":["role"],"properties":{
			"role":{"type":"string"},"content":{"type":"string"}
		}}},
		"tags":{"type":"array","title":"Tags","items":{"type":"string","enum":["a","b"],"description":"tag"}}
	}}`)
	root := Transform(spec, Options{}).(*Group)

	list, ok := root.Children[0].(*ObjectArray)
	if !ok {
		t.Fatalf("expected object array, got %T", root.Children[0])
	}
	inner := list.Item.(*Group)
	if inner.Path != "messages" || inner.Children[0].Metadata().Path != "messages.role" {
		t.Fatalf("unexpected item paths: %q %q", inner.Path, inner.Children[0].Metadata().Path)
	}
	if !inner.Children[0].Metadata().Required {
		t.Fatalf("item required flags resolve against the item schema")
	}

	tags := root.Children[1].(*Item)
	if tags.Type != "array" || tags.Title != "Tags" || tags.Description != "tag" {
		t.Fatalf("unexpected scalar array leaf: %+v", tags)
	}
	if diff := cmp.Diff([]any{"a", "b"}, tags.Enum); diff != "" {
		t.Fatalf("items enum mismatch (-want +got):\n%s", diff)
	}
}

func TestTransform_SingleEnumWithDefaultBecomesConst(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{"task":{"type":"string","enum":["TASK_CHAT"],"default":"TASK_CHAT"}}}`)
	item := Transform(spec, Options{}).(*Group).Children[0].(*Item)
	if item.Const != "TASK_CHAT" || item.Enum != nil {
		t.Fatalf("expected const collapse, got const=%v enum=%v", item.Const, item.Enum)
	}
}

func TestTransform_SingleEnumWithMismatchedDefaultKeepsEnum(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","properties":{"model":{"type":"string","enum":["gpt-4"],"default":"gpt-3"}}}`)
	item := Transform(spec, Options{}).(*Group).Children[0].(*Item)
	if item.Const != nil {
		t.Fatalf("mismatched default must not collapse, got const=%v", item.Const)
	}
	if diff := cmp.Diff([]any{"gpt-4"}, item.Enum); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
}

func TestTransform_HiddenPredicate(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","instillEditOnNodeFields":["prompt"],"properties":{
		"prompt":{"type":"string"},"temperature":{"type":"number"}
	}}`)
	root := Transform(spec, Options{Hidden: visibility.EditOnNode()}).(*Group)
	if root.Children[0].Metadata().Hidden {
		t.Fatalf("prompt should be visible")
	}
	if !root.Children[1].Metadata().Hidden {
		t.Fatalf("temperature should be hidden")
	}
}

func TestTransform_IsPureAndDeterministic(t *testing.T) {
	raw := `{"type":"object","required":["a"],"properties":{
		"a":{"type":"string","enum":["x"],"default":"x"},
		"b":{"type":"object","oneOf":[{"properties":{"k":{"const":"one"}}},{"properties":{"k":{"const":"two"}}}]},
		"c":{"type":"array","items":{"type":"object","properties":{"z":{"type":"integer"}}}}
	}}`
	spec := mustDecode(t, raw)
	before, _ := json.Marshal(spec)

	first := Transform(spec, Options{Key: "root"})
	second := Transform(spec, Options{Key: "root"})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("transform not deterministic (-first +second):\n%s", diff)
	}

	after, _ := json.Marshal(spec)
	if string(before) != string(after) {
		t.Fatalf("input schema was mutated")
	}

	payload, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal tree: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal tree: %v", err)
	}
	if decoded["kind"] != string(KindGroup) || decoded["path"] != "root" {
		t.Fatalf("unexpected encoded root: %v", decoded)
	}
}
