package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/goliatone/go-pipeform/internal/server"
	"github.com/goliatone/go-pipeform/internal/watch"
	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/orchestrator"
	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve definition forms, validation, and metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address",
				Value:   ":8080",
				Sources: cli.EnvVars("PIPEFORM_ADDR"),
			},
			&cli.StringFlag{
				Name:    "definitions",
				Aliases: []string{"d"},
				Usage:   "Definitions document loaded into the catalogue",
				Sources: cli.EnvVars("PIPEFORM_DEFINITIONS"),
			},
			&cli.BoolFlag{
				Name:    "watch",
				Usage:   "Reload the definitions file when it changes",
				Sources: cli.EnvVars("PIPEFORM_WATCH"),
			},
			&cli.BoolFlag{
				Name:    "hide-credentials",
				Usage:   "Hide credential fields unless a request names its own predicates",
				Sources: cli.EnvVars("PIPEFORM_HIDE_CREDENTIALS"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			location := command.String("definitions")
			catalogue, err := loadCatalogue(ctx, command, location)
			if err != nil {
				return err
			}
			if command.Bool("watch") && location != "" {
				if err := watchDefinitions(ctx, command, catalogue, location); err != nil {
					return err
				}
			}
			opts := []orchestrator.Option{
				orchestrator.WithLoader(newLoader(command)),
				orchestrator.WithCatalogue(catalogue),
			}
			if command.Bool("hide-credentials") {
				opts = append(opts, orchestrator.WithVisibility(visibility.Credentials()))
			}
			return server.New(orchestrator.New(opts...)).Start(ctx, command.String("addr"))
		},
	}
}

func watchDefinitions(ctx context.Context, command *cli.Command, catalogue *definition.Catalogue, location string) error {
	src, err := schema.ParseSource(location)
	if err != nil {
		return err
	}
	if src.Kind() != schema.SourceKindFile {
		return errors.New("serve: --watch needs a local definitions file")
	}
	loader := newLoader(command)
	return watch.File(ctx, src.Location(), 200*time.Millisecond, func() {
		if err := catalogue.Reload(ctx, loader, src, schema.ResolveOptions{}); err != nil {
			slog.Warn("definitions reload failed", "source", location, "error", err)
		}
	})
}
