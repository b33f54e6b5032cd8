// Package tui fills a component configuration interactively in a terminal,
// walking the derived form tree and re-prompting fields the validator
// rejects.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-pipeform/pkg/formtree"
	"github.com/goliatone/go-pipeform/pkg/render"
	"github.com/goliatone/go-pipeform/pkg/schema"
	"github.com/goliatone/go-pipeform/pkg/validation"
	"github.com/goliatone/go-pipeform/pkg/visibility"
	"github.com/goliatone/go-pipeform/pkg/widgets"
)

const defaultMaxRounds = 3

// Renderer implements render.Renderer for terminal-driven sessions.
type Renderer struct {
	driver            PromptDriver
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	rules             RuleFactory
	maxRounds         int
	theme             Theme
	widgets           *widgets.Registry
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) *Renderer {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		maxRounds:    defaultMaxRounds,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	if r.widgets == nil {
		r.widgets = widgets.NewRegistry()
	}
	return r
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	if r.outputFormat == OutputFormatPrettyText {
		return "text/plain"
	}
	return "application/json"
}

// Render prompts for every visible field of form.Tree, validates the result,
// and re-prompts offending fields until the configuration is valid or the
// round limit is reached.
func (r *Renderer) Render(ctx context.Context, form render.Form, opts render.RenderOptions) ([]byte, error) {
	values, err := r.Fill(ctx, form.Tree, opts.Values)
	if err != nil {
		return nil, err
	}
	if r.submitTransformer != nil {
		values, err = r.submitTransformer(values)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	return r.serialize(values)
}

// Fill runs the prompt session and returns the collected configuration.
func (r *Renderer) Fill(ctx context.Context, tree formtree.Node, prefill map[string]any) (map[string]any, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if tree == nil {
		return nil, errors.New("tui: form tree is nil")
	}

	s := &session{renderer: r, state: NewState(prefill, nil), prompted: make(map[string]*formtree.Item)}
	if err := s.prompt(ctx, tree, ""); err != nil {
		return nil, err
	}

	factory := r.rules
	if factory == nil {
		factory = TreeRules(tree)
	}

	for round := 0; ; round++ {
		issues := factory(s.state.Values()).Validate("", s.state.Values())
		if len(issues) == 0 {
			return s.state.Values(), nil
		}
		if round >= r.maxRounds {
			return s.state.Values(), fmt.Errorf("%w: %v", ErrUnresolved, issues)
		}
		s.state.SetErrors(issues.ByPath())
		if err := s.reprompt(ctx, issues); err != nil {
			return nil, err
		}
	}
}

// TreeRules derives the validator from the schema behind tree. Hidden fields
// of the tree stay relaxed.
func TreeRules(tree formtree.Node) RuleFactory {
	var hidden []string
	formtree.Walk(tree, func(n formtree.Node) bool {
		if n.Metadata().Hidden {
			hidden = append(hidden, n.Metadata().Path)
			return false
		}
		return true
	})
	predicate := visibility.Paths(hidden...)
	root := tree.Metadata().Schema

	return func(values map[string]any) validation.Rule {
		if root == nil {
			return validation.Any()
		}
		return validation.ForSchema(root, formtree.SelectedConditions(tree, values), predicate)
	}
}

type session struct {
	renderer *Renderer
	state    *State
	prompted map[string]*formtree.Item
}

func (s *session) prompt(ctx context.Context, n formtree.Node, valuePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Metadata().Hidden {
		return nil
	}
	switch typed := n.(type) {
	case *formtree.Group:
		for _, child := range typed.Children {
			if err := s.prompt(ctx, child, joinPath(valuePath, child.Metadata().Key)); err != nil {
				return err
			}
		}
		return nil
	case *formtree.Condition:
		return s.promptCondition(ctx, typed, valuePath)
	case *formtree.ObjectArray:
		return s.promptObjectArray(ctx, typed, valuePath)
	case *formtree.Item:
		if valuePath == "" {
			return nil
		}
		s.prompted[valuePath] = typed
		return s.promptItem(ctx, typed, valuePath)
	}
	return nil
}

func (s *session) promptCondition(ctx context.Context, cond *formtree.Condition, valuePath string) error {
	options := cond.Values()
	if len(options) == 0 {
		return nil
	}
	discriminatorPath := joinPath(valuePath, cond.Discriminator)
	defaultIdx := 0
	if current, ok := s.state.GetValue(discriminatorPath); ok {
		if idx := indexOf(options, fmt.Sprint(current)); idx >= 0 {
			defaultIdx = idx
		}
	}

	idx, err := s.renderer.driver.Select(ctx, SelectConfig{
		Message:      label(&cond.Meta),
		Options:      options,
		DefaultIndex: defaultIdx,
		Help:         help(&cond.Meta, nil),
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(options) {
		idx = defaultIdx
	}
	if err := s.state.SetValue(discriminatorPath, options[idx]); err != nil {
		return err
	}
	branch, _ := cond.Branch(options[idx])
	return s.prompt(ctx, branch, valuePath)
}

func (s *session) promptObjectArray(ctx context.Context, arr *formtree.ObjectArray, valuePath string) error {
	existing, _ := s.state.GetValue(valuePath)
	items, _ := existing.([]any)

	for idx := range items {
		if err := s.prompt(ctx, arr.Item, joinPath(valuePath, strconv.Itoa(idx))); err != nil {
			return err
		}
	}
	for {
		add, err := s.renderer.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Add %s item?", label(&arr.Meta)),
			Default: arr.Required && len(items) == 0,
			Help:    help(&arr.Meta, nil),
		})
		if err != nil {
			return err
		}
		if !add {
			break
		}
		itemPath := joinPath(valuePath, strconv.Itoa(len(items)))
		if err := s.state.SetValue(itemPath, map[string]any{}); err != nil {
			return err
		}
		if err := s.prompt(ctx, arr.Item, itemPath); err != nil {
			return err
		}
		existing, _ = s.state.GetValue(valuePath)
		items, _ = existing.([]any)
	}
	if items == nil && arr.Required {
		return s.state.SetValue(valuePath, []any{})
	}
	return nil
}

func (s *session) promptItem(ctx context.Context, item *formtree.Item, valuePath string) error {
	if item.Const != nil {
		return s.state.SetValue(valuePath, item.Const)
	}

	driver := s.renderer.driver
	meta := &item.Meta
	current, hasCurrent := s.state.GetValue(valuePath)
	helpText := help(meta, s.state.ErrorsFor(valuePath))

	widget, _ := s.renderer.widgets.Resolve(item)
	switch widget {
	case widgets.WidgetMultiSelect:
		options := stringify(item.Enum)
		idxs, err := driver.MultiSelect(ctx, SelectConfig{
			Message:  label(meta),
			Options:  options,
			Defaults: indicesOf(options, stringify(asList(current))),
			Help:     helpText,
		})
		if err != nil {
			return err
		}
		return s.state.SetValue(valuePath, toAnySlice(defaultsFromIndices(options, idxs)))

	case widgets.WidgetSelect:
		options := stringify(item.Enum)
		defaultIdx := -1
		if hasCurrent {
			defaultIdx = indexOf(options, fmt.Sprint(current))
		} else if item.Default != nil {
			defaultIdx = indexOf(options, fmt.Sprint(item.Default))
		}
		if !item.Required {
			// (skip) is the default when nothing is selected yet.
			options = append([]string{skipOption}, options...)
			defaultIdx++
		}
		idx, err := driver.Select(ctx, SelectConfig{Message: label(meta), Options: options, DefaultIndex: defaultIdx, Help: helpText})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(options) || options[idx] == skipOption {
			s.state.Delete(valuePath)
			return nil
		}
		return s.state.SetValue(valuePath, enumValue(item.Enum, options[idx]))

	case widgets.WidgetConfirm:
		def, _ := current.(bool)
		if !hasCurrent {
			def, _ = item.Default.(bool)
		}
		answer, err := driver.Confirm(ctx, ConfirmConfig{Message: label(meta), Default: def, Help: helpText})
		if err != nil {
			return err
		}
		return s.state.SetValue(valuePath, answer)

	case widgets.WidgetList:
		return s.promptList(ctx, item, valuePath, helpText)
	}

	def := ""
	if hasCurrent && current != nil {
		def = textValue(current)
	} else if item.Default != nil {
		def = textValue(item.Default)
	}
	cfg := InputConfig{Message: label(meta), Default: def, Help: helpText, Validator: fieldValidator(item, valuePath)}

	var (
		answer string
		err    error
	)
	switch widget {
	case widgets.WidgetPassword:
		answer, err = driver.Password(ctx, cfg)
	case widgets.WidgetTextArea:
		answer, err = driver.TextArea(ctx, TextAreaConfig{Message: cfg.Message, Default: cfg.Default, Help: cfg.Help, Validator: cfg.Validator})
	default:
		answer, err = driver.Input(ctx, cfg)
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(answer) == "" && !item.Required {
		s.state.Delete(valuePath)
		return nil
	}
	value, err := parseAnswer(item, answer)
	if err != nil {
		// Keep the raw text; the validator reports the type mismatch.
		value = answer
	}
	return s.state.SetValue(valuePath, value)
}

// parseAnswer decodes JSON answers for free-form object fields. Everything
// else is stored as typed, numbers included.
func parseAnswer(item *formtree.Item, answer string) (any, error) {
	if item.Type != "object" || widgets.AcceptsSemiStructured(item) {
		return answer, nil
	}
	var value any
	if err := json.Unmarshal([]byte(answer), &value); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	return value, nil
}

// promptList collects a scalar list one entry at a time; an empty answer
// ends the list.
func (s *session) promptList(ctx context.Context, item *formtree.Item, valuePath, helpText string) error {
	current, _ := s.state.GetValue(valuePath)
	existing := stringify(asList(current))
	var out []any
	for idx := 0; ; idx++ {
		def := ""
		if idx < len(existing) {
			def = existing[idx]
		}
		answer, err := s.renderer.driver.Input(ctx, InputConfig{
			Message: fmt.Sprintf("%s [%d] (empty to finish)", label(&item.Meta), idx+1),
			Default: def,
			Help:    helpText,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(answer) == "" {
			break
		}
		out = append(out, answer)
	}
	if len(out) == 0 && !item.Required {
		s.state.Delete(valuePath)
		return nil
	}
	if out == nil {
		out = []any{}
	}
	return s.state.SetValue(valuePath, out)
}

// reprompt reports every issue and asks again for the fields they belong
// to. Issues without a prompted field are only reported.
func (s *session) reprompt(ctx context.Context, issues validation.Issues) error {
	driver := s.renderer.driver
	byPath := issues.ByPath()
	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		name := path
		if name == "" {
			name = "configuration"
		}
		for _, message := range byPath[path] {
			if err := driver.Info(ctx, s.renderer.theme.ErrorPrefix+name+": "+message); err != nil {
				return err
			}
		}
		if item, itemPath, ok := s.fieldFor(path); ok {
			if err := s.promptItem(ctx, item, itemPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// fieldFor maps an issue path to the prompted field it belongs to, walking
// up for issues raised below a leaf (list entries).
func (s *session) fieldFor(path string) (*formtree.Item, string, bool) {
	for current := path; current != ""; {
		if item, ok := s.prompted[current]; ok {
			return item, current, true
		}
		idx := strings.LastIndexByte(current, '.')
		if idx < 0 {
			break
		}
		current = current[:idx]
	}
	return nil, "", false
}

const skipOption = "(skip)"

// fieldValidator checks a single answer with the field's own rule so that
// terminal drivers can reject it before moving on.
func fieldValidator(item *formtree.Item, valuePath string) func(string) error {
	if item.Schema == nil {
		return nil
	}
	parent := &schema.Node{}
	if item.Required {
		parent.Required = []string{item.Key}
	}
	rule := validation.Build(validation.Params{Parent: parent, Schema: item.Schema, Key: item.Key, Path: valuePath})
	return func(answer string) error {
		var value any
		if answer != "" || item.Required {
			parsed, err := parseAnswer(item, answer)
			if err != nil {
				return err
			}
			value = parsed
		}
		if issues := rule.Validate(valuePath, value); len(issues) > 0 {
			return errors.New(issues[0].Message)
		}
		return nil
	}
}

func label(meta *formtree.Meta) string {
	if meta.Title != "" {
		return meta.Title
	}
	if meta.Key != "" {
		return meta.Key
	}
	return meta.Path
}

func help(meta *formtree.Meta, errs []string) string {
	text := meta.ShortDescription
	if text == "" {
		text = meta.Description
	}
	if len(errs) > 0 {
		prefix := strings.Join(errs, "; ")
		if text == "" {
			return prefix
		}
		return prefix + "\n" + text
	}
	return text
}

func stringify(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func enumValue(enum []any, selected string) any {
	for _, candidate := range enum {
		if fmt.Sprint(candidate) == selected {
			return candidate
		}
	}
	return selected
}

func asList(value any) []any {
	list, _ := value.([]any)
	return list
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func textValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case map[string]any, []any:
		raw, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return fmt.Sprint(typed)
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	if key == "" {
		return base
	}
	return base + "." + key
}

func (r *Renderer) serialize(values map[string]any) ([]byte, error) {
	if r.outputFormat == OutputFormatPrettyText {
		return []byte(prettyPrint(values)), nil
	}
	return json.MarshalIndent(values, "", "  ")
}

func prettyPrint(values map[string]any) string {
	var b strings.Builder
	writePretty(&b, "", values)
	return b.String()
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			writePretty(b, joinPath(prefix, key), v[key])
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%v\n", prefix, v)
		}
	}
}
