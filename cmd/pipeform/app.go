package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"

	internalLoader "github.com/goliatone/go-pipeform/internal/loader"
	"github.com/goliatone/go-pipeform/internal/log"
	"github.com/goliatone/go-pipeform/pkg/definition"
	"github.com/goliatone/go-pipeform/pkg/orchestrator"
	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/visibility"
)

var ErrInvalidConfiguration = errors.New("configuration is invalid")

// NewApp builds the pipeform command tree.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:                  "pipeform",
		Usage:                 "Derive, validate, and fill pipeline component forms",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("PIPEFORM_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("PIPEFORM_LOG_FORMAT"),
			},
			&cli.BoolFlag{
				Name:    "allow-http",
				Usage:   "Allow loading documents from http(s) URLs",
				Sources: cli.EnvVars("PIPEFORM_ALLOW_HTTP"),
			},
			&cli.DurationFlag{
				Name:    "http-timeout",
				Usage:   "Timeout for remote documents",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("PIPEFORM_HTTP_TIMEOUT"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			NewTreeCommand(),
			NewValidateCommand(),
			NewReferencesCommand(),
			NewFillCommand(),
			NewDocsCommand(),
			NewLintCommand(),
			NewTriggerFormCommand(),
			NewServeCommand(),
		},
	}
}

// definitionFlags are shared by every command deriving a definition form.
func definitionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "definitions",
			Aliases:  []string{"d"},
			Usage:    "Definitions document (file path or URL, JSON or YAML)",
			Required: true,
			Sources:  cli.EnvVars("PIPEFORM_DEFINITIONS"),
		},
		&cli.StringFlag{
			Name:  "id",
			Usage: "Definition id or resource name (first definition if empty)",
		},
		&cli.BoolFlag{
			Name:  "resource",
			Usage: "Use the resource specification instead of the component specification",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration document (JSON or YAML)",
		},
		&cli.StringSliceFlag{
			Name:  "select",
			Usage: "Condition selection override as path=value",
		},
		&cli.StringSliceFlag{
			Name:    "hidden",
			Usage:   "Visibility predicates hiding fields (credentials, edit-on-node)",
			Sources: cli.EnvVars("PIPEFORM_HIDDEN"),
		},
		&cli.StringFlag{
			Name:  "node-id",
			Usage: "Component id; enables reference extraction",
		},
	}
}

func newLoader(command *cli.Command) schema.Loader {
	var opts []schema.LoaderOption
	if command.Bool("allow-http") {
		opts = append(opts, schema.WithHTTP(command.Duration("http-timeout")))
	}
	return internalLoader.NewWithOptions(opts...)
}

func newOrchestrator(command *cli.Command) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.WithLoader(newLoader(command)))
}

// deriveRequest assembles an orchestrator request from definitionFlags.
func deriveRequest(command *cli.Command) (orchestrator.Request, error) {
	src, err := schema.ParseSource(command.String("definitions"))
	if err != nil {
		return orchestrator.Request{}, err
	}
	req := orchestrator.Request{
		Source:     src,
		Definition: command.String("id"),
		Resource:   command.Bool("resource"),
		NodeID:     command.String("node-id"),
	}

	if path := command.String("config"); path != "" {
		config, err := readConfiguration(path)
		if err != nil {
			return req, err
		}
		req.Configuration = config
	}

	selected, err := parseSelections(command.StringSlice("select"))
	if err != nil {
		return req, err
	}
	req.Selected = selected

	if names := command.StringSlice("hidden"); len(names) > 0 {
		hidden, unknown := visibility.Named(names...)
		if len(unknown) > 0 {
			return req, fmt.Errorf("unknown visibility predicate: %s", strings.Join(unknown, ", "))
		}
		req.Hidden = hidden
	}
	return req, nil
}

func readConfiguration(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	payload, err := schema.ToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", path, err)
	}
	var config map[string]any
	if err := json.Unmarshal(payload, &config); err != nil {
		return nil, fmt.Errorf("configuration %s must be an object: %w", path, err)
	}
	return config, nil
}

func parseSelections(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		path, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("invalid selection %q, expected path=value", pair)
		}
		out[strings.TrimSpace(path)] = strings.TrimSpace(value)
	}
	return out, nil
}

func output(command *cli.Command) io.Writer {
	if w := command.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// writeOutput writes to the file named by the "output" flag, or to the
// command writer.
func writeOutput(command *cli.Command, data []byte) error {
	if path := command.String("output"); path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	_, err := output(command).Write(data)
	return err
}

func loadCatalogue(ctx context.Context, command *cli.Command, location string) (*definition.Catalogue, error) {
	catalogue := definition.NewCatalogue()
	if location == "" {
		return catalogue, nil
	}
	src, err := schema.ParseSource(location)
	if err != nil {
		return nil, err
	}
	if err := catalogue.LoadInto(ctx, newLoader(command), src, schema.ResolveOptions{}); err != nil {
		return nil, err
	}
	return catalogue, nil
}
