package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"harvest/internal/faults"
)

// Format selects the textual encoding of a serialized envelope.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", faults.Wrap(faults.ErrConfiguration, "codec", "format", fmt.Sprintf("unsupported value %q", value), nil)
	}
}

// Marshal renders a serialized tree as UTF-8 text.
func Marshal(tree any, format Format, indent bool) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		if indent {
			return json.MarshalIndent(tree, "", "  ")
		}
		return json.Marshal(tree)
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, faults.Wrap(faults.ErrConfiguration, "codec", "marshal", fmt.Sprintf("unsupported format %q", format), nil)
	}
}

// Unmarshal parses text produced by Marshal back into a serialized tree.
// JSON numbers are kept as json.Number so integer identifiers survive.
func Unmarshal(data []byte, format Format) (any, error) {
	var tree any
	switch format {
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&tree); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, faults.Wrap(faults.ErrConfiguration, "codec", "unmarshal", fmt.Sprintf("unsupported format %q", format), nil)
	}
	return tree, nil
}

// DetectFormat guesses the format of an export from its file name.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}
