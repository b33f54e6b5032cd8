package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/goliatone/go-pipeform/pkg/pipeline"
	"github.com/goliatone/go-pipeform/pkg/reference"
)

func NewReferencesCommand() *cli.Command {
	return &cli.Command{
		Name:  "references",
		Usage: "List the references of a configuration or recipe and the edges they imply",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "recipe",
				Usage: "Pipeline recipe (JSON or YAML)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Single component configuration (JSON or YAML)",
			},
			&cli.StringFlag{
				Name:  "node-id",
				Usage: "Id of the component owning --config",
			},
			&cli.StringSliceFlag{
				Name:  "nodes",
				Usage: "Components present on the pipeline (edges are composed towards them)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			var (
				refs  []reference.Reference
				edges []reference.Edge
			)
			switch {
			case command.String("recipe") != "":
				raw, err := os.ReadFile(command.String("recipe"))
				if err != nil {
					return fmt.Errorf("read recipe: %w", err)
				}
				recipe, err := pipeline.DecodeRecipe(raw)
				if err != nil {
					return err
				}
				session := pipeline.NewSession()
				if err := session.LoadRecipe(recipe); err != nil {
					return err
				}
				refs, edges = session.References(), session.Edges()
			case command.String("config") != "":
				nodeID := command.String("node-id")
				if nodeID == "" {
					return errors.New("references: --node-id is required with --config")
				}
				config, err := readConfiguration(command.String("config"))
				if err != nil {
					return err
				}
				refs = reference.FromConfiguration(config, nodeID)
				edges = reference.ComposeEdges(refs, command.StringSlice("nodes"))
			default:
				return errors.New("references: one of --recipe or --config is required")
			}

			if refs == nil {
				refs = []reference.Reference{}
			}
			if edges == nil {
				edges = []reference.Edge{}
			}
			return writeJSON(output(command), map[string]any{
				"references": refs,
				"edges":      edges,
			})
		},
	}
}
