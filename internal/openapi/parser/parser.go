// Package parser implements openapi.Parser with kin-openapi.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	pkgopenapi "github.com/goliatone/go-pipeform/pkg/openapi"
	"github.com/goliatone/go-pipeform/pkg/schema"
)

// Options tune document loading.
type Options struct {
	// AllowExternalRefs lets kin-openapi follow refs into other documents.
	AllowExternalRefs bool
}

// Parser implements pkgopenapi.Parser.
type Parser struct {
	options Options
}

var _ pkgopenapi.Parser = (*Parser)(nil)

// New constructs a Parser with the given options.
func New(options Options) *Parser {
	return &Parser{options: options}
}

// Operations returns every operation in the document, sorted by path and
// method.
func (p *Parser) Operations(ctx context.Context, raw []byte) ([]pkgopenapi.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi parser: document payload is empty")
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = p.options.AllowExternalRefs

	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi parser: load document: %w", err)
	}
	if spec.Paths == nil || spec.Paths.Len() == 0 {
		return nil, pkgopenapi.ErrNoOperations
	}

	paths := spec.Paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	var out []pkgopenapi.Operation
	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		methods := item.Operations()
		names := make([]string, 0, len(methods))
		for method := range methods {
			names = append(names, method)
		}
		sort.Strings(names)
		for _, method := range names {
			operation := methods[method]
			if operation == nil {
				continue
			}
			out = append(out, collectOperation(strings.ToUpper(method), path, operation))
		}
	}
	if len(out) == 0 {
		return nil, pkgopenapi.ErrNoOperations
	}
	return out, nil
}

func collectOperation(method, path string, operation *openapi3.Operation) pkgopenapi.Operation {
	opID := operation.OperationID
	if opID == "" {
		opID = strings.ToLower(method) + ":" + path
	}
	return pkgopenapi.Operation{
		ID:      opID,
		Method:  method,
		Path:    path,
		Summary: operation.Summary,
		Request: requestSchema(operation.RequestBody),
	}
}

func requestSchema(body *openapi3.RequestBodyRef) *schema.Node {
	if body == nil || body.Value == nil {
		return nil
	}
	mt := body.Value.Content.Get("application/json")
	if mt == nil {
		return nil
	}
	return convertSchema(mt.Schema, map[*openapi3.Schema]bool{})
}

// convertSchema copies the JSON Schema subset the form transforms read.
// Properties come out sorted by name; instillUIOrder decides form order.
func convertSchema(ref *openapi3.SchemaRef, active map[*openapi3.Schema]bool) *schema.Node {
	if ref == nil || ref.Value == nil {
		return nil
	}
	src := ref.Value
	if active[src] {
		// recursive schema; stop with an unconstrained node
		return &schema.Node{}
	}
	active[src] = true
	defer delete(active, src)

	node := &schema.Node{
		Title:       src.Title,
		Description: src.Description,
		Default:     src.Default,
		Example:     src.Example,
		Pattern:     src.Pattern,
		Format:      src.Format,
	}
	if src.Type != nil {
		node.Type = schema.Type(append([]string(nil), src.Type.Slice()...))
	}
	if len(src.Enum) > 0 {
		node.Enum = append([]any(nil), src.Enum...)
	}
	if len(src.Required) > 0 {
		node.Required = append([]string(nil), src.Required...)
	}
	if len(src.Properties) > 0 {
		names := make([]string, 0, len(src.Properties))
		for name := range src.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if child := convertSchema(src.Properties[name], active); child != nil {
				node.Properties = append(node.Properties, schema.Property{Name: name, Schema: child})
			}
		}
	}
	if src.Items != nil {
		node.Items = convertSchema(src.Items, active)
	}
	node.OneOf = convertList(src.OneOf, active)
	node.AnyOf = convertList(src.AnyOf, active)
	mergeAllOf(node, src.AllOf, active)
	applyExtensions(node, src.Extensions)
	return node
}

func convertList(refs openapi3.SchemaRefs, active map[*openapi3.Schema]bool) []*schema.Node {
	if len(refs) == 0 {
		return nil
	}
	out := make([]*schema.Node, 0, len(refs))
	for _, ref := range refs {
		if child := convertSchema(ref, active); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// mergeAllOf folds allOf members into node: properties and required names
// are appended, scalar keywords only fill gaps.
func mergeAllOf(node *schema.Node, refs openapi3.SchemaRefs, active map[*openapi3.Schema]bool) {
	for _, member := range convertList(refs, active) {
		if len(node.Type) == 0 {
			node.Type = member.Type
		}
		if node.Title == "" {
			node.Title = member.Title
		}
		if node.Description == "" {
			node.Description = member.Description
		}
		for _, prop := range member.Properties {
			if _, exists := node.Properties.Get(prop.Name); !exists {
				node.Properties = append(node.Properties, prop)
			}
		}
		node.Required = append(node.Required, member.Required...)
	}
}

var instillKeywords = []string{
	"const",
	"instillUpstreamType",
	"instillUpstreamTypes",
	"instillAcceptFormats",
	"instillFormat",
	"instillUIOrder",
	"instillCredentialField",
	"instillShortDescription",
	"instillEditOnNodeFields",
	"instillPatternErrorMessage",
}

// applyExtensions copies builder keywords kin-openapi keeps as extensions,
// with or without an "x-" prefix.
func applyExtensions(node *schema.Node, extensions map[string]any) {
	if len(extensions) == 0 {
		return
	}
	picked := make(map[string]any)
	for _, key := range instillKeywords {
		if value, ok := extensions[key]; ok {
			picked[key] = value
		} else if value, ok := extensions["x-"+key]; ok {
			picked[key] = value
		}
	}
	if len(picked) == 0 {
		return
	}
	payload, err := json.Marshal(picked)
	if err != nil {
		return
	}
	var ext schema.Node
	if err := json.Unmarshal(payload, &ext); err != nil {
		return
	}
	if ext.Const != nil {
		node.Const = ext.Const
	}
	node.UpstreamType = ext.UpstreamType
	node.UpstreamTypes = ext.UpstreamTypes
	node.AcceptFormats = ext.AcceptFormats
	node.DataFormat = ext.DataFormat
	node.UIOrder = ext.UIOrder
	node.CredentialField = ext.CredentialField
	node.ShortDescription = ext.ShortDescription
	node.EditOnNodeFields = ext.EditOnNodeFields
	node.PatternErrorMessage = ext.PatternErrorMessage
}
