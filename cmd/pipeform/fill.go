package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/goliatone/go-pipeform/internal/server"
	"github.com/goliatone/go-pipeform/pkg/orchestrator"
	"github.com/goliatone/go-pipeform/pkg/pipeline"
	"github.com/goliatone/go-pipeform/pkg/render"
	"github.com/goliatone/go-pipeform/pkg/renderers/tui"
)

// newFiller builds the terminal renderer from the shared fill flags.
func newFiller(command *cli.Command) *tui.Renderer {
	opts := []tui.Option{
		tui.WithOutputFormat(tui.OutputFormat(command.String("output-format"))),
		tui.WithMaxRounds(int(command.Int("max-rounds"))),
	}
	if command.Bool("normalize") {
		opts = append(opts, tui.WithSubmitTransformer(func(values map[string]any) (map[string]any, error) {
			return pipeline.NormalizeSubmission(values), nil
		}))
	}
	return tui.New(opts...)
}

func fillFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "output-format",
			Usage: "Output format (json, pretty)",
			Value: string(tui.OutputFormatJSON),
		},
		&cli.IntFlag{
			Name:  "max-rounds",
			Usage: "Re-prompt rounds before giving up on invalid answers",
			Value: 3,
		},
		&cli.BoolFlag{
			Name:  "normalize",
			Usage: "Stringify numbers and drop empty values before printing",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file (stdout if empty)",
		},
	}
}

func NewFillCommand() *cli.Command {
	return &cli.Command{
		Name:  "fill",
		Usage: "Fill a component configuration interactively",
		Flags: append(definitionFlags(), fillFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			req, err := deriveRequest(command)
			if err != nil {
				return err
			}
			prefill := req.Configuration
			// The prefill only seeds the prompts; validation happens after
			// collection.
			req.Configuration = nil
			result, err := newOrchestrator(command).Derive(ctx, req)
			if err != nil {
				return err
			}

			form := render.Form{Tree: result.Tree}
			if result.Definition != nil {
				form = render.FormFromDefinition(*result.Definition, result.Tree)
			}
			out, err := newFiller(command).Render(ctx, form, render.RenderOptions{Values: prefill})
			if err != nil {
				return err
			}
			return writeOutput(command, out)
		},
	}
}

func NewTriggerFormCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "openapi",
			Usage:    "Pipeline OpenAPI document (JSON or YAML)",
			Required: true,
			Sources:  cli.EnvVars("PIPEFORM_OPENAPI"),
		},
		&cli.StringFlag{
			Name:  "operation",
			Usage: "Operation id (first POST .../trigger operation if empty)",
		},
		&cli.StringFlag{
			Name:  "values",
			Usage: "Trigger input values (JSON or YAML)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output (json, markdown, tui)",
			Value: "json",
		},
	}
	return &cli.Command{
		Name:  "trigger-form",
		Usage: "Derive the trigger form of a pipeline from its OpenAPI document",
		Flags: append(flags, fillFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			raw, err := os.ReadFile(command.String("openapi"))
			if err != nil {
				return fmt.Errorf("read openapi document: %w", err)
			}
			var values map[string]any
			if path := command.String("values"); path != "" {
				if values, err = readConfiguration(path); err != nil {
					return err
				}
			}

			format := command.String("format")
			req := orchestrator.TriggerRequest{Document: raw, OperationID: command.String("operation")}
			if format != "tui" {
				req.Values = values
			}
			result, op, err := newOrchestrator(command).DeriveTrigger(ctx, req)
			if err != nil {
				return err
			}
			form := render.Form{ID: op.ID, Title: op.Summary, Tree: result.Tree}

			var renderer render.Renderer
			if format == "tui" {
				renderer = newFiller(command)
			} else if renderer, err = server.DefaultRenderers().Get(format); err != nil {
				return err
			}

			opts := render.RenderOptions{Values: values, Indent: "  "}
			if len(result.Issues) > 0 {
				opts.Errors = render.MapIssues(result.Tree, result.Issues).Fields
			}
			out, err := renderer.Render(ctx, form, opts)
			if err != nil {
				return err
			}
			return writeOutput(command, out)
		},
	}
}
