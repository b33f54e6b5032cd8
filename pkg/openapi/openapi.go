package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

var (
	ErrNoOperations      = errors.New("openapi: document does not contain any operations")
	ErrOperationNotFound = errors.New("openapi: operation not found")
	ErrNoRequestSchema   = errors.New("openapi: operation has no json request body")
)

// Operation is a single HTTP operation with its JSON request body schema.
type Operation struct {
	ID      string
	Method  string
	Path    string
	Summary string
	Request *schema.Node
}

// IsTrigger reports whether the operation looks like a pipeline trigger.
func (o Operation) IsTrigger() bool {
	return o.Method == "POST" && strings.HasSuffix(o.Path, "/trigger")
}

// Parser turns a raw OpenAPI document into operations.
type Parser interface {
	Operations(ctx context.Context, raw []byte) ([]Operation, error)
}

// SelectTrigger returns the operation with operationID, or the first trigger
// operation by path when operationID is empty.
func SelectTrigger(ops []Operation, operationID string) (Operation, error) {
	if len(ops) == 0 {
		return Operation{}, ErrNoOperations
	}
	if operationID != "" {
		for _, op := range ops {
			if op.ID == operationID {
				return op, nil
			}
		}
		return Operation{}, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}

	sorted := append([]Operation(nil), ops...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	for _, op := range sorted {
		if op.IsTrigger() {
			return op, nil
		}
	}
	return Operation{}, fmt.Errorf("%w: no POST .../trigger operation", ErrOperationNotFound)
}

// InputSchema returns the schema of one trigger input: the item schema of
// the request body's "inputs" array, or the body itself when it has none.
func InputSchema(op Operation) (*schema.Node, error) {
	if op.Request == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRequestSchema, op.ID)
	}
	inputs, ok := op.Request.Property("inputs")
	if ok && inputs != nil && inputs.Type.Is("array") && inputs.Items != nil && !inputs.Items.IsBoolean() {
		return inputs.Items, nil
	}
	return op.Request, nil
}

// TriggerSchema parses raw with parser and returns the input schema of the
// selected trigger operation.
func TriggerSchema(ctx context.Context, parser Parser, raw []byte, operationID string) (*schema.Node, Operation, error) {
	if parser == nil {
		return nil, Operation{}, errors.New("openapi: parser is nil")
	}
	ops, err := parser.Operations(ctx, raw)
	if err != nil {
		return nil, Operation{}, err
	}
	op, err := SelectTrigger(ops, operationID)
	if err != nil {
		return nil, Operation{}, err
	}
	node, err := InputSchema(op)
	if err != nil {
		return nil, op, err
	}
	return node, op, nil
}
