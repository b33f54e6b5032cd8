package pipeform

import "github.com/goliatone/go-pipeform/pkg/render/markdown"

// EmbeddedTemplate exposes the built-in Markdown documentation template so
// callers can extend it without importing the renderer package directly.
func EmbeddedTemplate() string {
	return markdown.DefaultTemplate()
}
