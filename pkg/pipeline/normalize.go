package pipeline

import (
	"encoding/json"
	"strconv"
)

// NormalizeSubmission prepares submitted form data for storage: numeric
// leaves become strings and nil or empty-string entries are dropped.
func NormalizeSubmission(data map[string]any) map[string]any {
	out, _ := DropEmpty(StringifyNumbers(data)).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// StringifyNumbers returns a copy of value with every numeric leaf replaced
// by its decimal string.
func StringifyNumbers(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = StringifyNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			out[idx] = StringifyNumbers(item)
		}
		return out
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case json.Number:
		return typed.String()
	default:
		return value
	}
}

// DropEmpty returns a copy of value without nil or empty-string map entries.
// Slice elements are kept in place, with empties replaced by nil.
func DropEmpty(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			if isEmpty(item) {
				continue
			}
			out[key] = DropEmpty(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			if isEmpty(item) {
				continue
			}
			out[idx] = DropEmpty(item)
		}
		return out
	default:
		return value
	}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	str, ok := value.(string)
	return ok && str == ""
}
