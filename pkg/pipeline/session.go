// Package pipeline holds the builder session: the components placed on a
// pipeline, the edges their references imply, and the recipe they serialize
// to. A Session is an explicit value owned by its caller; it is not safe for
// concurrent use.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-pipeform/pkg/reference"
)

var (
	ErrNodeNotFound = errors.New("pipeline: node not found")
	ErrNoSelection  = errors.New("pipeline: no node selected")
	ErrDuplicateID  = errors.New("pipeline: duplicate node id")
)

// NodeType distinguishes the kinds of builder nodes.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeConnector NodeType = "connector"
	NodeTypeOperator  NodeType = "operator"
)

// DefinitionNameKey is stripped from submitted configurations; the definition
// is tracked on the component itself.
const DefinitionNameKey = "connector_definition_name"

// Component is the configurable payload of a node.
type Component struct {
	ID             string         `json:"id" yaml:"id"`
	DefinitionName string         `json:"definition_name,omitempty" yaml:"definition_name,omitempty"`
	Configuration  map[string]any `json:"configuration,omitempty" yaml:"configuration,omitempty"`
}

// Node is a component placed on the pipeline canvas.
type Node struct {
	ID        string    `json:"id"`
	Type      NodeType  `json:"type"`
	Component Component `json:"component"`
}

// Session is the builder state for one pipeline.
type Session struct {
	pipelineID string
	nodes      []Node
	edges      []reference.Edge
	selected   string
	dirty      bool
	logger     *slog.Logger
	newID      func(prefix string) string
}

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPipelineID names the pipeline being edited.
func WithPipelineID(id string) Option {
	return func(s *Session) {
		s.pipelineID = id
	}
}

// WithIDGenerator overrides node id generation.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSession returns an empty session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		logger: slog.Default(),
		newID:  randomID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "pipeline", "pipeline_id", s.pipelineID)
	return s
}

func randomID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String()[:8])
}

// PipelineID returns the pipeline id.
func (s *Session) PipelineID() string { return s.pipelineID }

// Dirty reports whether the recipe changed since the last MarkSaved.
func (s *Session) Dirty() bool { return s.dirty }

// MarkSaved clears the dirty flag once the recipe has been persisted.
func (s *Session) MarkSaved() { s.dirty = false }

// Nodes returns a copy of the nodes.
func (s *Session) Nodes() []Node {
	return append([]Node(nil), s.nodes...)
}

// Edges returns a copy of the edges.
func (s *Session) Edges() []reference.Edge {
	return append([]reference.Edge(nil), s.edges...)
}

// Node returns the node with the given id.
func (s *Session) Node(id string) (Node, bool) {
	for _, node := range s.nodes {
		if node.ID == id {
			return node, true
		}
	}
	return Node{}, false
}

// AddNode places a new component and returns it. The id is derived from the
// last segment of the definition name.
func (s *Session) AddNode(nodeType NodeType, definitionName string, configuration map[string]any) Node {
	prefix := string(nodeType)
	if definitionName != "" {
		prefix = definitionName[strings.LastIndex(definitionName, "/")+1:]
	}
	id := s.newID(strings.ReplaceAll(prefix, "-", "_"))
	node := Node{
		ID:   id,
		Type: nodeType,
		Component: Component{
			ID:             id,
			DefinitionName: definitionName,
			Configuration:  configuration,
		},
	}
	s.nodes = append(s.nodes, node)
	s.dirty = true
	s.logger.Debug("node added", "node_id", id, "definition", definitionName)
	return node
}

// RemoveNode deletes a node and recomputes the edges.
func (s *Session) RemoveNode(id string) error {
	idx := s.index(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.nodes = append(s.nodes[:idx], s.nodes[idx+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	s.RecomputeEdges()
	s.dirty = true
	return nil
}

// UpdateNodes replaces the node list with fn(current).
func (s *Session) UpdateNodes(fn func([]Node) []Node) {
	s.nodes = fn(s.Nodes())
}

// UpdateEdges replaces the edge list with fn(current).
func (s *Session) UpdateEdges(fn func([]reference.Edge) []reference.Edge) {
	s.edges = fn(s.Edges())
}

// Select marks the node whose configuration panel is open.
func (s *Session) Select(id string) error {
	if s.index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.selected = id
	return nil
}

// Selected returns the selected node id.
func (s *Session) Selected() (string, bool) {
	return s.selected, s.selected != ""
}

// ClearSelection closes the configuration panel.
func (s *Session) ClearSelection() { s.selected = "" }

// SubmitConfiguration stores a submitted form on the selected node: numbers
// become strings, nil and empty strings are dropped, the definition-name key
// is removed. Edges are then recomputed from every node's configuration, the
// selection is cleared and the recipe is marked dirty.
func (s *Session) SubmitConfiguration(data map[string]any) error {
	if s.selected == "" {
		return ErrNoSelection
	}
	idx := s.index(s.selected)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, s.selected)
	}

	configuration := NormalizeSubmission(data)
	delete(configuration, DefinitionNameKey)
	s.nodes[idx].Component.Configuration = configuration

	edges := s.RecomputeEdges()
	s.logger.Info("configuration submitted", "node_id", s.selected, "edges", len(edges))
	s.selected = ""
	s.dirty = true
	return nil
}

// References returns every reference found in the node configurations.
func (s *Session) References() []reference.Reference {
	var refs []reference.Reference
	for _, node := range s.nodes {
		if node.Component.Configuration == nil {
			continue
		}
		refs = append(refs, reference.FromConfiguration(node.Component.Configuration, node.ID)...)
	}
	return refs
}

// RecomputeEdges derives the edges from the current configurations.
func (s *Session) RecomputeEdges() []reference.Edge {
	ids := make([]string, 0, len(s.nodes))
	for _, node := range s.nodes {
		ids = append(ids, node.ID)
	}
	s.edges = reference.ComposeEdges(s.References(), ids)
	return s.Edges()
}

func (s *Session) index(id string) int {
	for idx, node := range s.nodes {
		if node.ID == id {
			return idx
		}
	}
	return -1
}
