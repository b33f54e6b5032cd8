package render

import (
	"context"

	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/formtree"
)

// Form is what renderers consume: a derived form tree plus the definition
// metadata it came from.
type Form struct {
	ID               string
	Title            string
	Description      string
	DocumentationURL string
	Tree             formtree.Node
}

// FormFromDefinition pairs a definition's metadata with a derived tree.
func FormFromDefinition(def definition.Definition, tree formtree.Node) Form {
	form := Form{
		ID:               def.ID,
		Title:            def.Title,
		DocumentationURL: def.DocumentationURL,
		Tree:             tree,
	}
	if tree != nil {
		form.Description = tree.Metadata().Description
	}
	return form
}

// Renderer converts a Form into a byte representation (JSON, Markdown, etc.).
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, form Form, options RenderOptions) ([]byte, error)
}
