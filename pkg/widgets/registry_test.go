package widgets

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-pipeform/pkg/formtree"
	"github.com/goliatone/go-pipeform/pkg/schema"
)

func item(path, typ string) *formtree.Item {
	return &formtree.Item{Meta: formtree.Meta{Key: path, Path: path}, Type: typ}
}

func TestResolve_PinnedWidgetWins(t *testing.T) {
	reg := NewRegistry()
	reg.Pin("flag", "custom-toggle")

	if got, ok := reg.Resolve(item("flag", "boolean")); !ok || got != "custom-toggle" {
		t.Fatalf("expected pinned widget to win, got %q (ok=%v)", got, ok)
	}
}

func TestResolve_Builtins(t *testing.T) {
	reg := NewRegistry()

	enumList := item("tags", "array")
	enumList.Enum = []any{"a", "b"}
	enum := item("task", "string")
	enum.Enum = []any{"a"}
	secret := item("api_key", "string")
	secret.CredentialField = true
	semi := item("payload", "string")
	semi.AcceptFormats = []string{"*/*", schema.FormatSemiStructured + "/object"}
	secretEnum := item("region", "string")
	secretEnum.CredentialField = true
	secretEnum.Enum = []any{"eu", "us"}

	cases := []struct {
		name   string
		item   *formtree.Item
		expect string
	}{
		{name: "enum list multiselect", item: enumList, expect: WidgetMultiSelect},
		{name: "enum select", item: enum, expect: WidgetSelect},
		{name: "enum beats credential", item: secretEnum, expect: WidgetSelect},
		{name: "boolean confirm", item: item("flag", "boolean"), expect: WidgetConfirm},
		{name: "scalar list", item: item("stops", "array"), expect: WidgetList},
		{name: "credential password", item: secret, expect: WidgetPassword},
		{name: "object textarea", item: item("extra", "object"), expect: WidgetTextArea},
		{name: "semi-structured textarea", item: semi, expect: WidgetTextArea},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := reg.Resolve(tc.item)
			if !ok || got != tc.expect {
				t.Fatalf("expected %q, got %q (ok=%v)", tc.expect, got, ok)
			}
		})
	}

	if got, ok := reg.Resolve(item("prompt", "string")); ok {
		t.Fatalf("plain string should not resolve a widget, got %q", got)
	}
}

func TestRegister_PriorityAndOrder(t *testing.T) {
	reg := &Registry{}
	always := func(*formtree.Item) bool { return true }
	reg.Register("low", 1, always)
	reg.Register("first-high", 5, always)
	reg.Register("second-high", 5, always)
	reg.Register("", 10, always)
	reg.Register("nil", 10, nil)

	if got, _ := reg.Resolve(item("x", "string")); got != "first-high" {
		t.Fatalf("expected first-high, got %q", got)
	}

	var empty *Registry
	if _, ok := empty.Resolve(item("x", "string")); ok {
		t.Fatalf("nil registry should not resolve")
	}
}

func TestWidgets_WalksTree(t *testing.T) {
	tree := &formtree.Group{
		Children: []formtree.Node{
			item("flag", "boolean"),
			item("prompt", "string"),
			&formtree.ObjectArray{
				Meta: formtree.Meta{Path: "headers"},
				Item: &formtree.Group{Children: []formtree.Node{item("headers.value", "object")}},
			},
		},
	}

	want := map[string]string{"flag": WidgetConfirm, "headers.value": WidgetTextArea}
	if diff := cmp.Diff(want, NewRegistry().Widgets(tree)); diff != "" {
		t.Fatalf("widgets mismatch (-want +got):\n%s", diff)
	}
}
