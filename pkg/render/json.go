package render

import (
	"context"
	"encoding/json"
)

// JSONRenderer writes the form tree plus any errors and values as JSON.
type JSONRenderer struct{}

func NewJSONRenderer() JSONRenderer {
	return JSONRenderer{}
}

func (JSONRenderer) Name() string        { return "json" }
func (JSONRenderer) ContentType() string { return "application/json" }

type jsonDocument struct {
	ID               string              `json:"id,omitempty"`
	Title            string              `json:"title,omitempty"`
	DocumentationURL string              `json:"documentation_url,omitempty"`
	Tree             any                 `json:"tree"`
	Values           map[string]any      `json:"values,omitempty"`
	Errors           map[string][]string `json:"errors,omitempty"`
}

func (JSONRenderer) Render(ctx context.Context, form Form, options RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := jsonDocument{
		ID:               form.ID,
		Title:            form.Title,
		DocumentationURL: form.DocumentationURL,
		Tree:             form.Tree,
		Values:           options.Values,
		Errors:           options.Errors,
	}
	if options.Indent == "" {
		return json.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", options.Indent)
}
