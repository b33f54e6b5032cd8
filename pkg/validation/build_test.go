package validation

import (
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

func messages(issues Issues) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Path+": "+issue.Message)
	}
	return out
}

const upstreamSpec = `{"type":"object","required":["prompt","count","only_ref","literal"],"properties":{
	"prompt":{"instillUpstreamTypes":["value","reference","template"],"anyOf":[
		{"type":"string","instillUpstreamType":"value"},
		{"type":"string","instillUpstreamType":"reference","pattern":"^\\{.*\\}$"},
		{"type":"string","instillUpstreamType":"template"}
	]},
	"count":{"anyOf":[
		{"type":"integer","instillUpstreamType":"value"},
		{"type":"string","instillUpstreamType":"reference"}
	]},
	"only_ref":{"anyOf":[{"type":"string","instillUpstreamType":"reference"}]},
	"literal":{"anyOf":[{"type":"string","instillUpstreamType":"value","pattern":"^[a-z]+$","instillPatternErrorMessage":"lowercase only"}]},
	"number_only":{"anyOf":[{"type":"number","instillUpstreamType":"value"}]}
}}`

func TestUpstreamRules(t *testing.T) {
	rule := ForSchema(mustDecode(t, upstreamSpec), nil, nil)

	cases := []struct {
		name   string
		config map[string]any
		want   []string
	}{
		{
			name:   "valid literals and references",
			config: map[string]any{"prompt": "hello ${a.b} ${c.d}", "count": "${start.n}", "only_ref": "${a.out}", "literal": "abc", "number_only": "3.5"},
			want:   []string{},
		},
		{
			name:   "required upstream strings",
			config: map[string]any{"prompt": "", "count": "", "only_ref": "", "literal": nil},
			want: []string{
				"prompt: This field is required",
				"count: This field is required",
				"only_ref: This field is required",
				"literal: This field is required",
			},
		},
		{
			name:   "reference policy",
			config: map[string]any{"prompt": "x", "count": "${a.x} ${b.y}", "only_ref": "plain", "literal": "${a.x}"},
			want: []string{
				"count: This field only accepts single reference",
				"only_ref: This field only accepts reference",
				"literal: lowercase only",
				"literal: This field doesn't accept reference `${}`",
			},
		},
		{
			name:   "numbers",
			config: map[string]any{"prompt": "x", "count": "abc", "only_ref": "${a.b}", "literal": "ok", "number_only": "NaN"},
			want: []string{
				"count: This field only accepts number or reference",
				"number_only: This field only accepts number",
			},
		},
		{
			name:   "go literal syntax is not a number",
			config: map[string]any{"prompt": "x", "count": "1_000", "only_ref": "${a.b}", "literal": "ok", "number_only": "0x1p-2"},
			want: []string{
				"count: This field only accepts number or reference",
				"number_only: This field only accepts number",
			},
		},
		{
			name:   "json numbers stand in for numeric strings",
			config: map[string]any{"prompt": "x", "count": float64(12), "only_ref": "${a.b}", "literal": "ok", "number_only": 0.5},
			want:   []string{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := messages(rule.Validate("", tc.config))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("issues mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrimitiveRules(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","required":["name","enabled","size"],"properties":{
		"name":{"type":"string","pattern":"^[a-z]+$"},
		"enabled":{"type":"boolean"},
		"size":{"type":"integer"},
		"mode":{"type":"string","enum":["fast","slow"]},
		"note":{"type":"string"}
	}}`)
	rule := ForSchema(spec, nil, nil)

	got := messages(rule.Validate("", map[string]any{"name": "ABC", "enabled": "yes", "size": "", "mode": "medium"}))
	want := []string{
		"name: This field doesn't match the pattern ^[a-z]+$",
		"enabled: Expected boolean, received string",
		"size: This field is required",
		"mode: Invalid enum value. Expected 'fast' | 'slow', received 'medium'",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}

	if issues := rule.Validate("", map[string]any{"name": "abc", "enabled": false, "size": "4"}); len(issues) != 0 {
		t.Fatalf("expected valid config, got %v", issues)
	}
	if issues := rule.Validate("", map[string]any{"name": nil, "enabled": true, "size": "1"}); len(issues) != 1 || issues[0].Message != MessageRequired {
		t.Fatalf("null on a required string should report required, got %v", issues)
	}
}

const conditionSpec = `{"type":"object","required":["input"],"properties":{
	"input":{"type":"object","oneOf":[
		{"required":["url"],"properties":{"mode":{"const":"url"},"url":{"type":"string"}}},
		{"required":["text"],"properties":{"mode":{"const":"text"},"text":{"type":"string"}}}
	]}
}}`

func TestConditionSelection(t *testing.T) {
	spec := mustDecode(t, conditionSpec)

	first := ForSchema(spec, nil, nil)
	issues := first.Validate("", map[string]any{"input": map[string]any{"mode": "url"}})
	if diff := cmp.Diff([]string{"input.url: This field is required"}, messages(issues)); diff != "" {
		t.Fatalf("nil selection should use the first branch (-want +got):\n%s", diff)
	}

	text := ForSchema(spec, map[string]string{"input.mode": "text"}, nil)
	issues = text.Validate("", map[string]any{"input": map[string]any{"mode": "text"}})
	if diff := cmp.Diff([]string{"input.text: This field is required"}, messages(issues)); diff != "" {
		t.Fatalf("selected branch mismatch (-want +got):\n%s", diff)
	}

	unknown := ForSchema(spec, map[string]string{"input.mode": "bogus"}, nil)
	if got := unknown.String(); got != first.String() {
		t.Fatalf("unmatched selection should fall back to the first branch\nwant %s\ngot  %s", first, got)
	}
}

func TestConditionSelection_DuplicateValueUsesLastBranch(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","required":["input"],"properties":{
	"input":{"type":"object","oneOf":[
		{"required":["first"],"properties":{"mode":{"const":"url"},"first":{"type":"string"}}},
		{"required":["second"],"properties":{"mode":{"const":"url"},"second":{"type":"string"}}}
	]}
}}`)
	rule := ForSchema(spec, map[string]string{"input.mode": "url"}, nil)
	issues := rule.Validate("", map[string]any{"input": map[string]any{"mode": "url"}})
	if diff := cmp.Diff([]string{"input.second: This field is required"}, messages(issues)); diff != "" {
		t.Fatalf("duplicate discriminator mismatch (-want +got):\n%s", diff)
	}
}

func TestArraysObjectsAndFreeForm(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","required":["messages","extra","json"],"properties":{
		"messages":{"type":"array","items":{"type":"object","required":["role"],"properties":{"role":{"type":"string"}}}},
		"extra":{"type":"object","patternProperties":{"^.*$":{"type":"string"}}},
		"json":{"type":"object","instillAcceptFormats":["semi-structured/object"],"properties":{"a":{"type":"string"}}}
	}}`)
	rule := ForSchema(spec, nil, nil)

	config := map[string]any{
		"messages": []any{map[string]any{"role": "user"}, map[string]any{"role": ""}, nil},
		"extra":    map[string]any{"anything": 1},
		"json":     `{"a":"b"}`,
	}
	want := []string{"messages.1.role: This field is required"}
	if diff := cmp.Diff(want, messages(rule.Validate("", config))); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}

	if got := messages(rule.Validate("", map[string]any{"messages": "x", "extra": nil, "json": 3})); len(got) != 2 {
		t.Fatalf("expected type issues for messages and json, got %v", got)
	}
}

func TestHiddenAndForceOptional(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","required":["api_key","model"],"properties":{
		"api_key":{"type":"string","instillCredentialField":true},
		"model":{"type":"string"}
	}}`)

	hidden := ForSchema(spec, nil, visibility.Credentials())
	issues := hidden.Validate("", map[string]any{"api_key": 42})
	if diff := cmp.Diff([]string{"model: This field is required"}, messages(issues)); diff != "" {
		t.Fatalf("hidden credential should accept anything (-want +got):\n%s", diff)
	}
	apiKey, _ := Field(hidden, "api_key")
	if apiKey.Kind() != KindAny {
		t.Fatalf("expected hidden field to be any, got %s", apiKey)
	}

	model, _ := spec.Property("model")
	relaxed := Build(Params{Parent: spec, Schema: model, Key: "model", ForceOptional: true})
	if issues := relaxed.Validate("model", nil); len(issues) != 0 {
		t.Fatalf("force optional should accept nil, got %v", issues)
	}
	if relaxed.Kind() != KindOptional {
		t.Fatalf("expected optional wrapper, got %s", relaxed.Kind())
	}
}

func TestRuleStructureMirrorsSchema(t *testing.T) {
	spec := mustDecode(t, `{"type":"object","required":["a"],"properties":{
		"a":{"type":"string"},
		"b":{"type":"array","items":{"type":"object","properties":{"c":{"type":"boolean"}}}},
		"d":{"const":"x"},
		"e":true
	}}`)
	got := ForSchema(spec, nil, nil).String()
	want := "optional(object{a:string(min=1),b:optional(array(optional(object{c:optional(boolean)}))),d:optional(string)})"
	if got != want {
		t.Fatalf("unexpected structure\nwant %s\ngot  %s", want, got)
	}
}

func TestIsNumeric(t *testing.T) {
	for input, want := range map[string]bool{
		"12": true, " 1.5 ": true, "1e3": true, "0x1F": true, "0b101": true, "0o17": true,
		"-Infinity": true, "Infinity": true, "+Infinity": true, "   ": true, "1e400": true,
		"abc": false, "NaN": false, "1_000": false, "12px": false, "inf": false,
		"infinity": false, "+Inf": false, "0x1p-2": false, "0x1.8p1": false, "-0x1F": false,
	} {
		if got := isNumeric(input); got != want {
			t.Fatalf("isNumeric(%q) = %v, want %v", input, got, want)
		}
	}
}
