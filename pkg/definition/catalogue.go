package definition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

var ErrNotFound = errors.New("definition: not found")

// Catalogue indexes definitions by id and name. It is safe for concurrent
// use.
type Catalogue struct {
	mu     sync.RWMutex
	defs   []Definition
	index  map[string]int
	logger *slog.Logger
}

// Option customises a Catalogue.
type Option func(*Catalogue)

// WithLogger sets the catalogue logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalogue) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCatalogue returns an empty catalogue.
func NewCatalogue(opts ...Option) *Catalogue {
	c := &Catalogue{index: make(map[string]int), logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "definition")
	return c
}

// Add validates and stores definitions. A definition with a known id
// replaces the stored one.
func (c *Catalogue) Add(defs ...Definition) error {
	for _, def := range defs {
		if err := Validate(def); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, def := range defs {
		if idx, ok := c.index[def.ID]; ok {
			c.defs[idx] = def
			c.logger.Debug("definition replaced", "id", def.ID)
			continue
		}
		c.index[def.ID] = len(c.defs)
		c.index[def.Name] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return nil
}

// Get returns a definition by id or by resource name.
func (c *Catalogue) Get(ref string) (Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx, ok := c.index[strings.TrimSpace(ref)]; ok {
		return c.defs[idx], nil
	}
	return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// List returns the definitions matching typeFilter, sorted by id.
func (c *Catalogue) List(typeFilter string) []Definition {
	c.mu.RLock()
	out := make([]Definition, 0, len(c.defs))
	for _, def := range c.defs {
		if def.MatchesType(typeFilter) {
			out = append(out, def)
		}
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replace validates defs and swaps them in for the stored definitions. The
// catalogue is left untouched when any definition is invalid.
func (c *Catalogue) Replace(defs ...Definition) error {
	for _, def := range defs {
		if err := Validate(def); err != nil {
			return err
		}
	}

	stored := make([]Definition, 0, len(defs))
	index := make(map[string]int, 2*len(defs))
	for _, def := range defs {
		if idx, ok := index[def.ID]; ok {
			stored[idx] = def
			continue
		}
		index[def.ID] = len(stored)
		index[def.Name] = len(stored)
		stored = append(stored, def)
	}

	c.mu.Lock()
	c.defs, c.index = stored, index
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored definitions.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Load reads a definitions document, resolves $refs in its specifications,
// and validates every definition.
func Load(ctx context.Context, loader schema.Loader, src schema.Source, opts schema.ResolveOptions) ([]Definition, error) {
	if loader == nil {
		return nil, errors.New("definition: loader is nil")
	}
	doc, err := loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("definition: load %s: %w", src.Location(), err)
	}
	defs, err := Decode(doc.Raw())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Location(), err)
	}

	resolver := schema.NewResolver(loader, opts)
	for idx := range defs {
		def := &defs[idx]
		if def.Spec.Component != nil {
			if def.Spec.Component, err = resolver.Resolve(ctx, doc, def.Spec.Component); err != nil {
				return nil, fmt.Errorf("definition: %s component specification: %w", def.ID, err)
			}
		}
		if def.Spec.Resource != nil {
			if def.Spec.Resource, err = resolver.Resolve(ctx, doc, def.Spec.Resource); err != nil {
				return nil, fmt.Errorf("definition: %s resource specification: %w", def.ID, err)
			}
		}
		if err := Validate(*def); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// LoadInto loads src and adds its definitions to the catalogue.
func (c *Catalogue) LoadInto(ctx context.Context, loader schema.Loader, src schema.Source, opts schema.ResolveOptions) error {
	defs, err := Load(ctx, loader, src, opts)
	if err != nil {
		return err
	}
	if err := c.Add(defs...); err != nil {
		return err
	}
	c.logger.Info("definitions loaded", "source", src.Location(), "count", len(defs))
	return nil
}

// Reload loads src and replaces the catalogue contents with its definitions.
func (c *Catalogue) Reload(ctx context.Context, loader schema.Loader, src schema.Source, opts schema.ResolveOptions) error {
	defs, err := Load(ctx, loader, src, opts)
	if err != nil {
		return err
	}
	if err := c.Replace(defs...); err != nil {
		return err
	}
	c.logger.Info("definitions reloaded", "source", src.Location(), "count", len(defs))
	return nil
}
