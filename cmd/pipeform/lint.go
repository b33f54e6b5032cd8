package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/goliatone/go-pipeform/pkg/validation"
)

var ErrLintFailed = errors.New("specification lint failed")

func NewLintCommand() *cli.Command {
	return &cli.Command{
		Name:      "lint",
		Usage:     "Check component specifications for schema errors and unsupported constructs",
		ArgsUsage: "SPEC [SPEC...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Treat warnings as failures",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			paths := command.Args().Slice()
			if len(paths) == 0 {
				return errors.New("lint: at least one specification file is required")
			}

			w := output(command)
			failed := false
			for _, path := range paths {
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("lint: %w", err)
				}
				result := validation.CheckSpecification(raw)
				if !result.Valid {
					failed = true
				}
				if len(result.Issues) == 0 {
					fmt.Fprintf(w, "%s: ok\n", path)
					continue
				}
				for _, issue := range result.Issues {
					if issue.Severity == validation.SeverityWarning && command.Bool("strict") {
						failed = true
					}
					location := issue.Pointer
					if location == "" {
						location = issue.Field
					}
					if location == "" {
						location = "/"
					}
					fmt.Fprintf(w, "%s: %s %s: %s\n", path, issue.Severity, location, issue.Message)
				}
			}
			if failed {
				return ErrLintFailed
			}
			return nil
		},
	}
}
