package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ToJSON returns raw unchanged when it already is JSON; YAML input is
// converted to JSON with mapping key order preserved.
func ToJSON(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("schema: document is empty")
	}
	if json.Valid(trimmed) {
		return trimmed, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse yaml: %w", err)
	}
	var buf bytes.Buffer
	if err := writeYAMLAsJSON(&buf, &doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeYAMLAsJSON(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeYAMLAsJSON(buf, node.Content[0])
	case yaml.AliasNode:
		return writeYAMLAsJSON(buf, node.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeYAMLAsJSON(buf, node.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, child := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLAsJSON(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		return writeScalar(buf, node)
	default:
		return fmt.Errorf("schema: unsupported yaml node kind %d at line %d", node.Kind, node.Line)
	}
}

func writeScalar(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.Tag {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool":
		value, err := strconv.ParseBool(node.Value)
		if err != nil {
			var decoded bool
			if err := node.Decode(&decoded); err != nil {
				return err
			}
			value = decoded
		}
		buf.WriteString(strconv.FormatBool(value))
		return nil
	case "!!int", "!!float":
		var decoded any
		if err := node.Decode(&decoded); err != nil {
			return err
		}
		out, err := json.Marshal(decoded)
		if err != nil {
			return fmt.Errorf("schema: yaml number at line %d: %w", node.Line, err)
		}
		buf.Write(out)
		return nil
	default:
		out, err := json.Marshal(node.Value)
		if err != nil {
			return err
		}
		buf.Write(out)
		return nil
	}
}
