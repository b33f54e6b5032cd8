package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-pipeform/pkg/formtree"
)

// State tracks the configuration being collected plus the messages attached
// to each value path.
type State struct {
	values map[string]any
	errors map[string][]string
}

// NewState seeds the state with a deep copy of prefill and errs.
func NewState(prefill map[string]any, errs map[string][]string) *State {
	values, _ := deepCopy(prefill).(map[string]any)
	if values == nil {
		values = make(map[string]any)
	}
	out := &State{values: values, errors: make(map[string][]string, len(errs))}
	for path, messages := range errs {
		out.errors[path] = append([]string(nil), messages...)
	}
	return out
}

// Values returns the collected configuration.
func (s *State) Values() map[string]any {
	return s.values
}

// ErrorsFor returns the messages attached to a value path.
func (s *State) ErrorsFor(path string) []string {
	return s.errors[path]
}

// SetErrors replaces every message with the given set.
func (s *State) SetErrors(errs map[string][]string) {
	s.errors = make(map[string][]string, len(errs))
	for path, messages := range errs {
		s.errors[path] = messages
	}
}

// GetValue resolves a dotted path; numeric segments index into lists.
func (s *State) GetValue(path string) (any, bool) {
	return formtree.Lookup(s.values, path)
}

// SetValue writes value at path, creating intermediate maps and lists.
func (s *State) SetValue(path string, value any) error {
	if path == "" {
		return fmt.Errorf("tui: empty value path")
	}
	updated, err := setIn(s.values, strings.Split(path, "."), value)
	if err != nil {
		return fmt.Errorf("tui: set %s: %w", path, err)
	}
	s.values = updated.(map[string]any)
	return nil
}

// Delete removes the value at path when its container is a map.
func (s *State) Delete(path string) {
	parent, key := s.values, path
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		container, ok := s.GetValue(path[:idx])
		if !ok {
			return
		}
		if parent, ok = container.(map[string]any); !ok {
			return
		}
		key = path[idx+1:]
	}
	delete(parent, key)
}

// setIn returns container with value stored under segments. Containers are
// created from the shape of the next segment: numeric means list.
func setIn(container any, segments []string, value any) (any, error) {
	if len(segments) == 0 {
		return value, nil
	}
	segment := segments[0]

	if idx, err := strconv.Atoi(segment); err == nil {
		if idx < 0 {
			return nil, fmt.Errorf("negative index %d", idx)
		}
		list, _ := container.([]any)
		if container != nil && list == nil {
			return nil, fmt.Errorf("segment %q indexes a non-list", segment)
		}
		for len(list) <= idx {
			list = append(list, nil)
		}
		child, err := setIn(list[idx], segments[1:], value)
		if err != nil {
			return nil, err
		}
		list[idx] = child
		return list, nil
	}

	obj, _ := container.(map[string]any)
	if container != nil && obj == nil {
		return nil, fmt.Errorf("segment %q keys a non-object", segment)
	}
	if obj == nil {
		obj = make(map[string]any)
	}
	child, err := setIn(obj[segment], segments[1:], value)
	if err != nil {
		return nil, err
	}
	obj[segment] = child
	return obj, nil
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	default:
		return typed
	}
}
