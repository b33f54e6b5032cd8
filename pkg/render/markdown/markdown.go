// Package markdown renders a derived form tree as Markdown reference
// documentation: one table for the always-present fields and one per
// condition branch.
package markdown

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-pipeform/pkg/formtree"
	"github.com/goliatone/go-pipeform/pkg/render"
)

//go:embed templates/form.md.tpl
var defaultTemplate string

// Renderer implements render.Renderer for Markdown output.
type Renderer struct {
	source string

	once     sync.Once
	tpl      *pongo2.Template
	tplErr   error
	sanitize *bluemonday.Policy
}

var _ render.Renderer = (*Renderer)(nil)

// Option customises the renderer.
type Option func(*Renderer)

// WithTemplate replaces the built-in pongo2 template. The template receives
// "form" and "sections".
func WithTemplate(source string) Option {
	return func(r *Renderer) {
		if strings.TrimSpace(source) != "" {
			r.source = source
		}
	}
}

// DefaultTemplate returns the built-in pongo2 template, for callers extending
// it through WithTemplate.
func DefaultTemplate() string {
	return defaultTemplate
}

// New constructs a Markdown renderer.
func New(options ...Option) *Renderer {
	r := &Renderer{source: defaultTemplate, sanitize: bluemonday.StrictPolicy()}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Renderer) Name() string        { return "markdown" }
func (r *Renderer) ContentType() string { return "text/markdown; charset=utf-8" }

// Section is one documentation table.
type Section struct {
	Heading string
	Rows    []Row
}

// Row documents a single field.
type Row struct {
	Path        string
	Type        string
	Required    bool
	Accepts     string
	Description string
}

func (r *Renderer) Render(ctx context.Context, form render.Form, _ render.RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.once.Do(func() {
		r.tpl, r.tplErr = pongo2.FromString(r.source)
	})
	if r.tplErr != nil {
		return nil, fmt.Errorf("markdown: parse template: %w", r.tplErr)
	}

	title := form.Title
	if title == "" {
		title = form.ID
	}
	out, err := r.tpl.Execute(pongo2.Context{
		"form": map[string]any{
			"ID":               form.ID,
			"Title":            r.clean(title),
			"Description":      r.clean(form.Description),
			"DocumentationURL": form.DocumentationURL,
		},
		"sections": r.Sections(form.Tree),
	})
	if err != nil {
		return nil, fmt.Errorf("markdown: execute template: %w", err)
	}
	return []byte(out), nil
}

// Sections flattens tree into documentation tables. Hidden fields are
// skipped.
func (r *Renderer) Sections(tree formtree.Node) []Section {
	root := Section{Heading: "Configuration"}
	var branches []Section
	r.collect(tree, &root, &branches, false)
	return append([]Section{root}, branches...)
}

func (r *Renderer) collect(n formtree.Node, current *Section, branches *[]Section, inBranch bool) {
	if n == nil || n.Metadata().Hidden {
		return
	}
	switch typed := n.(type) {
	case *formtree.Group:
		for _, child := range typed.Children {
			r.collect(child, current, branches, inBranch)
		}
	case *formtree.Item:
		// The discriminator is documented on its condition.
		if inBranch && typed.Const != nil {
			return
		}
		current.Rows = append(current.Rows, r.row(&typed.Meta, typed.Type))
	case *formtree.ObjectArray:
		current.Rows = append(current.Rows, r.row(&typed.Meta, "array of objects"))
		r.collect(typed.Item, current, branches, inBranch)
	case *formtree.Condition:
		row := r.row(&typed.Meta, "enum")
		row.Path = typed.DiscriminatorPath()
		row.Accepts = quoteAll(typed.Values())
		current.Rows = append(current.Rows, row)
		for _, branch := range typed.Branches {
			section := Section{Heading: fmt.Sprintf("`%s` = `%s`", typed.DiscriminatorPath(), branch.Value)}
			r.collect(branch.Tree, &section, branches, true)
			*branches = append(*branches, section)
		}
	}
}

func (r *Renderer) row(meta *formtree.Meta, typ string) Row {
	description := meta.Description
	if description == "" {
		description = meta.ShortDescription
	}
	if title := strings.TrimSpace(meta.Title); title != "" {
		if description == "" {
			description = title
		} else {
			description = "**" + title + "**: " + description
		}
	}

	accepts := make([]string, 0, len(meta.UpstreamTypes))
	for _, kind := range meta.UpstreamTypes {
		accepts = append(accepts, string(kind))
	}
	acceptText := strings.Join(accepts, ", ")
	if len(meta.Enum) > 0 {
		values := make([]string, 0, len(meta.Enum))
		for _, value := range meta.Enum {
			values = append(values, fmt.Sprint(value))
		}
		acceptText = quoteAll(values)
	}
	if meta.CredentialField {
		acceptText = strings.TrimSpace(acceptText + " (secret)")
	}

	return Row{
		Path:        meta.Path,
		Type:        typ,
		Required:    meta.Required,
		Accepts:     cell(acceptText),
		Description: cell(r.clean(description)),
	}
}

// clean strips markup from schema text; descriptions come from third-party
// definitions.
func (r *Renderer) clean(text string) string {
	return strings.TrimSpace(r.sanitize.Sanitize(text))
}

func quoteAll(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, "`"+value+"`")
	}
	return strings.Join(quoted, ", ")
}

func cell(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "|", `\|`)
}
