package pipeform

import (
	internalLoader "github.com/goliatone/go-pipeform/internal/loader"
	internalParser "github.com/goliatone/go-pipeform/internal/openapi/parser"
	pkgopenapi "github.com/goliatone/go-pipeform/pkg/openapi"
	"github.com/goliatone/go-pipeform/pkg/schema"
)

// NewLoader constructs a loader using the internal implementation while keeping
// the concrete type hidden from consumers.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	return internalLoader.NewWithOptions(options...)
}

// NewParser constructs an OpenAPI parser backed by the internal
// implementation. External $refs stay disabled unless allowExternalRefs is set.
func NewParser(allowExternalRefs bool) pkgopenapi.Parser {
	return internalParser.New(internalParser.Options{AllowExternalRefs: allowExternalRefs})
}
