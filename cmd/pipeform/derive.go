package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	cli "github.com/urfave/cli/v3"

	"github.com/goliatone/go-pipeform/pkg/formtree"
	"github.com/goliatone/go-pipeform/pkg/render"
	"github.com/goliatone/go-pipeform/pkg/render/markdown"
	"github.com/goliatone/go-pipeform/pkg/validation"
)

func NewTreeCommand() *cli.Command {
	return &cli.Command{
		Name:  "tree",
		Usage: "Print the form tree and condition selection of a definition",
		Flags: definitionFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			req, err := deriveRequest(command)
			if err != nil {
				return err
			}
			result, err := newOrchestrator(command).Derive(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(output(command), struct {
				Definition string              `json:"definition,omitempty"`
				Selected   map[string]string   `json:"selected,omitempty"`
				Tree       formtree.Node       `json:"tree"`
				Errors     map[string][]string `json:"errors,omitempty"`
			}{
				Definition: result.Definition.ID,
				Selected:   result.Selected,
				Tree:       result.Tree,
				Errors:     result.Issues.ByPath(),
			})
		},
	}
}

func NewValidateCommand() *cli.Command {
	flags := append(definitionFlags(), &cli.StringFlag{
		Name:  "format",
		Usage: "Report format (text, json)",
		Value: "text",
	})
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a configuration against a definition",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			req, err := deriveRequest(command)
			if err != nil {
				return err
			}
			if req.Configuration == nil {
				req.Configuration = map[string]any{}
			}
			result, err := newOrchestrator(command).Derive(ctx, req)
			if err != nil {
				return err
			}

			w := output(command)
			if command.String("format") == "json" {
				mapping := render.MapIssues(result.Tree, result.Issues)
				if err := writeJSON(w, map[string]any{
					"valid":       result.Valid(),
					"selected":    result.Selected,
					"issues":      result.Issues,
					"errors":      mapping.Fields,
					"form_errors": mapping.Form,
					"references":  result.References,
				}); err != nil {
					return err
				}
			} else {
				writeIssues(command, result.Issues)
			}
			if !result.Valid() {
				return ErrInvalidConfiguration
			}
			return nil
		},
	}
}

func writeIssues(command *cli.Command, issues validation.Issues) {
	w := output(command)
	if len(issues) == 0 {
		fmt.Fprintln(w, "configuration is valid")
		return
	}
	byPath := issues.ByPath()
	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		label := path
		if label == "" {
			label = "(root)"
		}
		for _, msg := range byPath[path] {
			fmt.Fprintf(w, "%s: %s\n", label, msg)
		}
	}
}

func NewDocsCommand() *cli.Command {
	flags := append(definitionFlags(), &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file (stdout if empty)",
	})
	return &cli.Command{
		Name:  "docs",
		Usage: "Render Markdown documentation for a definition",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			req, err := deriveRequest(command)
			if err != nil {
				return err
			}
			result, err := newOrchestrator(command).Derive(ctx, req)
			if err != nil {
				return err
			}
			if result.Definition == nil {
				return errors.New("docs: no definition derived")
			}
			out, err := markdown.New().Render(ctx, render.FormFromDefinition(*result.Definition, result.Tree), render.RenderOptions{})
			if err != nil {
				return err
			}
			return writeOutput(command, out)
		},
	}
}
