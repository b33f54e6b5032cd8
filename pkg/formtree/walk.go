package formtree

import (
	"strconv"
	"strings"
)

// Walk visits the tree depth-first. Returning false from fn skips the
// children of the visited node. Every condition branch is visited.
func Walk(root Node, fn func(Node) bool) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	switch typed := root.(type) {
	case *Group:
		for _, child := range typed.Children {
			Walk(child, fn)
		}
	case *ObjectArray:
		Walk(typed.Item, fn)
	case *Condition:
		for _, branch := range typed.Branches {
			Walk(branch.Tree, fn)
		}
	}
}

// Find returns the first leaf or container whose path equals path. Condition
// and object-array wrappers share their path with their first inner node; the
// outermost one wins.
func Find(root Node, path string) (Node, bool) {
	var found Node
	Walk(root, func(n Node) bool {
		if found != nil {
			return false
		}
		if n.Metadata().Path == path {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Paths returns the path of every leaf item, in tree order.
func Paths(root Node) []string {
	var out []string
	Walk(root, func(n Node) bool {
		if item, ok := n.(*Item); ok && item.Path != "" {
			out = append(out, item.Path)
		}
		return true
	})
	return out
}

// SelectedConditions derives the discriminator selection map from a
// configuration: for each condition reachable through the selected branches,
// the map holds discriminator path → value when the configured value names
// one of the branches.
func SelectedConditions(root Node, values map[string]any) map[string]string {
	selected := make(map[string]string)
	collectSelected(root, values, selected)
	return selected
}

func collectSelected(n Node, values map[string]any, selected map[string]string) {
	switch typed := n.(type) {
	case *Group:
		for _, child := range typed.Children {
			collectSelected(child, values, selected)
		}
	case *Condition:
		if len(typed.Branches) == 0 {
			return
		}
		active := typed.Branches[0].Tree
		if raw, ok := Lookup(values, typed.DiscriminatorPath()); ok {
			if value, isString := raw.(string); isString {
				if tree, known := typed.Branch(value); known {
					selected[typed.DiscriminatorPath()] = value
					active = tree
				}
			}
		}
		collectSelected(active, values, selected)
	}
}

// Lookup reads a dotted path from nested maps and slices.
func Lookup(values map[string]any, path string) (any, bool) {
	if values == nil || path == "" {
		return nil, false
	}
	var current any = values
	for _, segment := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
