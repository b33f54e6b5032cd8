package schema

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultMaxDocuments = 64
	defaultMaxRefDepth  = 32
)

// ResolveOptions bounds $ref expansion.
type ResolveOptions struct {
	// AllowHTTPRefs toggles references to http(s) documents.
	AllowHTTPRefs bool
	// AllowPathTraversal permits relative refs to leave the root document's
	// directory.
	AllowPathTraversal bool
	// MaxDocuments caps the number of distinct documents loaded.
	MaxDocuments int
	// MaxRefDepth caps nested $ref chains.
	MaxRefDepth int
}

// Resolver inlines $ref targets so the transforms only ever see concrete
// nodes. Definitions shipped by the remote service are already resolved;
// locally authored ones usually are not.
type Resolver struct {
	loader Loader
	opts   ResolveOptions
}

// NewResolver returns a Resolver. loader may be nil when only local refs are
// expected.
func NewResolver(loader Loader, opts ResolveOptions) *Resolver {
	if opts.MaxDocuments <= 0 {
		opts.MaxDocuments = defaultMaxDocuments
	}
	if opts.MaxRefDepth <= 0 {
		opts.MaxRefDepth = defaultMaxRefDepth
	}
	return &Resolver{loader: loader, opts: opts}
}

type refDocument struct {
	key     string
	kind    SourceKind
	base    string
	root    *Node
	anchors map[string]*Node
}

type refSession struct {
	loader  Loader
	opts    ResolveOptions
	docs    map[string]*refDocument
	rootDir string
	stack   []string
}

// Resolve returns a copy of root with every $ref replaced by its target.
// doc identifies where root was loaded from and anchors relative refs.
func (r *Resolver) Resolve(ctx context.Context, doc Document, root *Node) (*Node, error) {
	if r == nil {
		return nil, errors.New("schema resolver: resolver is nil")
	}
	if root == nil {
		return nil, errors.New("schema resolver: root is nil")
	}
	src := doc.Source()
	if src == nil {
		src = SourceFromFS("inline.json")
	}

	session := &refSession{loader: r.loader, opts: r.opts, docs: make(map[string]*refDocument)}
	key, base, err := canonicalLocation(src)
	if err != nil {
		return nil, err
	}
	session.rootDir = base
	rootDoc := &refDocument{key: key, kind: src.Kind(), base: base, root: root, anchors: indexAnchors(root, nil)}
	session.docs[key] = rootDoc

	return session.resolve(ctx, rootDoc, root)
}

func (s *refSession) resolve(ctx context.Context, doc *refDocument, node *Node) (*Node, error) {
	if node.IsBoolean() {
		return node, nil
	}
	if ref := strings.TrimSpace(node.Ref); ref != "" {
		key, target, targetDoc, err := s.lookup(ctx, doc, ref)
		if err != nil {
			return nil, err
		}
		if len(s.stack) >= s.opts.MaxRefDepth {
			return nil, fmt.Errorf("schema resolver: ref depth exceeds %d", s.opts.MaxRefDepth)
		}
		for _, entry := range s.stack {
			if entry == key {
				return nil, fmt.Errorf("schema resolver: ref cycle detected at %s", ref)
			}
		}
		s.stack = append(s.stack, key)
		resolved, err := s.resolve(ctx, targetDoc, overlayRefSiblings(target, node))
		s.stack = s.stack[:len(s.stack)-1]
		return resolved, err
	}

	out := node.Clone()
	out.Defs = nil
	if len(node.Properties) > 0 {
		out.Properties = make(Properties, 0, len(node.Properties))
		for _, prop := range node.Properties {
			child, err := s.resolve(ctx, doc, prop.Schema)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", prop.Name, err)
			}
			out.Properties = append(out.Properties, Property{Name: prop.Name, Schema: child})
		}
	}
	if len(node.PatternProperties) > 0 {
		out.PatternProperties = make(map[string]*Node, len(node.PatternProperties))
		for pattern, child := range node.PatternProperties {
			resolved, err := s.resolve(ctx, doc, child)
			if err != nil {
				return nil, err
			}
			out.PatternProperties[pattern] = resolved
		}
	}
	if node.Items != nil {
		items, err := s.resolve(ctx, doc, node.Items)
		if err != nil {
			return nil, err
		}
		out.Items = items
	}
	var err error
	if out.OneOf, err = s.resolveList(ctx, doc, node.OneOf); err != nil {
		return nil, err
	}
	if out.AnyOf, err = s.resolveList(ctx, doc, node.AnyOf); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *refSession) resolveList(ctx context.Context, doc *refDocument, list []*Node) ([]*Node, error) {
	if len(list) == 0 {
		return list, nil
	}
	out := make([]*Node, 0, len(list))
	for _, entry := range list {
		resolved, err := s.resolve(ctx, doc, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// overlayRefSiblings lets the referencing node override annotations of the
// target; validation keywords beside $ref are ignored.
func overlayRefSiblings(target, ref *Node) *Node {
	merged := target.Clone()
	if merged == nil || merged.Boolean != nil {
		return merged
	}
	if ref.Title != "" {
		merged.Title = ref.Title
	}
	if ref.Description != "" {
		merged.Description = ref.Description
	}
	if ref.Default != nil {
		merged.Default = ref.Default
	}
	if ref.ShortDescription != "" {
		merged.ShortDescription = ref.ShortDescription
	}
	if ref.UIOrder != nil {
		merged.UIOrder = ref.UIOrder
	}
	return merged
}

func (s *refSession) lookup(ctx context.Context, doc *refDocument, ref string) (string, *Node, *refDocument, error) {
	location, fragment, _ := strings.Cut(ref, "#")
	target := doc
	if location != "" {
		loaded, err := s.load(ctx, doc, location)
		if err != nil {
			return "", nil, nil, err
		}
		target = loaded
	}
	node, err := target.fragment(fragment)
	if err != nil {
		return "", nil, nil, fmt.Errorf("schema resolver: %s: %w", ref, err)
	}
	return target.key + "#" + fragment, node, target, nil
}

func (d *refDocument) fragment(fragment string) (*Node, error) {
	if fragment == "" {
		return d.root, nil
	}
	if !strings.HasPrefix(fragment, "/") {
		node, ok := d.anchors[fragment]
		if !ok {
			return nil, fmt.Errorf("anchor %q not found", fragment)
		}
		return node, nil
	}
	return walkPointer(d.root, fragment)
}

func walkPointer(root *Node, pointer string) (*Node, error) {
	segments := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	current := root
	for i := 0; i < len(segments); i++ {
		if current.IsBoolean() {
			return nil, fmt.Errorf("pointer %q crosses a boolean schema", pointer)
		}
		segment := unescapePointer(segments[i])
		switch segment {
		case "items":
			current = current.Items
			if current == nil {
				return nil, fmt.Errorf("pointer %q: no items", pointer)
			}
			continue
		case "$defs", "definitions", "properties", "patternProperties", "oneOf", "anyOf":
		default:
			return nil, fmt.Errorf("pointer %q: unsupported segment %q", pointer, segment)
		}
		if i+1 >= len(segments) {
			return nil, fmt.Errorf("pointer %q is incomplete", pointer)
		}
		i++
		name := unescapePointer(segments[i])
		var (
			next *Node
			ok   bool
		)
		switch segment {
		case "$defs", "definitions":
			next, ok = current.Defs.Get(name)
		case "properties":
			next, ok = current.Properties.Get(name)
		case "patternProperties":
			next, ok = current.PatternProperties[name]
		case "oneOf", "anyOf":
			list := current.OneOf
			if segment == "anyOf" {
				list = current.AnyOf
			}
			idx, err := strconv.Atoi(name)
			if err == nil && idx >= 0 && idx < len(list) {
				next, ok = list[idx], true
			}
		}
		if !ok || next == nil {
			return nil, fmt.Errorf("pointer %q not found", pointer)
		}
		current = next
	}
	return current, nil
}

func unescapePointer(segment string) string {
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

func indexAnchors(node *Node, anchors map[string]*Node) map[string]*Node {
	if anchors == nil {
		anchors = make(map[string]*Node)
	}
	if node.IsBoolean() {
		return anchors
	}
	if name := strings.TrimSpace(node.Anchor); name != "" {
		if _, exists := anchors[name]; !exists {
			anchors[name] = node
		}
	}
	for _, prop := range node.Defs {
		indexAnchors(prop.Schema, anchors)
	}
	for _, prop := range node.Properties {
		indexAnchors(prop.Schema, anchors)
	}
	if node.Items != nil {
		indexAnchors(node.Items, anchors)
	}
	for _, branch := range node.OneOf {
		indexAnchors(branch, anchors)
	}
	for _, branch := range node.AnyOf {
		indexAnchors(branch, anchors)
	}
	return anchors
}

func (s *refSession) load(ctx context.Context, from *refDocument, location string) (*refDocument, error) {
	src, err := s.relativeSource(from, location)
	if err != nil {
		return nil, err
	}
	key, base, err := canonicalLocation(src)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.docs[key]; ok {
		return cached, nil
	}
	if len(s.docs) >= s.opts.MaxDocuments {
		return nil, fmt.Errorf("schema resolver: exceeded max documents (%d)", s.opts.MaxDocuments)
	}
	if s.loader == nil {
		return nil, fmt.Errorf("schema resolver: no loader for external ref %q", location)
	}

	doc, err := s.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	root, err := doc.Node()
	if err != nil {
		return nil, err
	}
	loaded := &refDocument{key: key, kind: src.Kind(), base: base, root: root, anchors: indexAnchors(root, nil)}
	s.docs[key] = loaded
	return loaded, nil
}

func (s *refSession) relativeSource(from *refDocument, location string) (Source, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("schema resolver: invalid ref %q", location)
	}
	switch {
	case parsed.Scheme == "http" || parsed.Scheme == "https":
		if !s.opts.AllowHTTPRefs {
			return nil, fmt.Errorf("schema resolver: http refs disabled (%s)", location)
		}
		return SourceFromURL(parsed.String())
	case parsed.Scheme == "file":
		return SourceFromFile(parsed.Path), nil
	case parsed.Scheme != "":
		return nil, fmt.Errorf("schema resolver: unsupported ref scheme %q", parsed.Scheme)
	}

	switch from.kind {
	case SourceKindFile:
		candidate := filepath.Clean(filepath.Join(from.base, parsed.Path))
		if filepath.IsAbs(parsed.Path) {
			candidate = filepath.Clean(parsed.Path)
		}
		if !s.opts.AllowPathTraversal {
			rel, err := filepath.Rel(s.rootDir, candidate)
			if err != nil || strings.HasPrefix(rel, "..") {
				return nil, fmt.Errorf("schema resolver: ref path escapes root (%s)", location)
			}
		}
		return SourceFromFile(candidate), nil
	case SourceKindFS:
		candidate := strings.TrimPrefix(path.Clean(path.Join(from.base, parsed.Path)), "/")
		if !s.opts.AllowPathTraversal && strings.HasPrefix(candidate, "..") {
			return nil, fmt.Errorf("schema resolver: ref path escapes root (%s)", location)
		}
		return SourceFromFS(candidate), nil
	case SourceKindURL:
		if !s.opts.AllowHTTPRefs {
			return nil, fmt.Errorf("schema resolver: http refs disabled (%s)", location)
		}
		base, err := url.Parse(from.key[len("url:"):])
		if err != nil {
			return nil, err
		}
		return SourceFromURL(base.ResolveReference(parsed).String())
	default:
		return nil, errors.New("schema resolver: unsupported source kind")
	}
}

func canonicalLocation(src Source) (key, base string, err error) {
	location := src.Location()
	switch src.Kind() {
	case SourceKindFile:
		abs, err := filepath.Abs(location)
		if err != nil {
			return "", "", err
		}
		return "file:" + abs, filepath.Dir(abs), nil
	case SourceKindFS:
		cleaned := path.Clean(strings.TrimPrefix(location, "/"))
		return "fs:" + cleaned, path.Dir(cleaned), nil
	case SourceKindURL:
		return "url:" + location, path.Dir(location), nil
	default:
		return "", "", errors.New("schema resolver: unsupported source kind")
	}
}
