package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samdwyer/tilerealm/internal/apperr"
)

// Format is the on-disk encoding of a stored file.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "txt"
	FormatYAML Format = "yaml"
)

// ParseFormat returns the Format for an extension, with or without the
// leading dot.
func ParseFormat(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return FormatJSON, nil
	case "txt":
		return FormatText, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("storage: extension %q: %w", ext, apperr.ErrUnsupportedType)
	}
}

// Ext returns the extension including the leading dot.
func (f Format) Ext() string { return "." + string(f) }

// IsObject reports whether files of this format hold key-value parameters.
func (f Format) IsObject() bool { return f == FormatJSON || f == FormatYAML }

// Empty returns the contents of a freshly created file.
func (f Format) Empty() any {
	if f == FormatText {
		return ""
	}
	return map[string]any{}
}

// SplitName splits "options.json" into "options" and FormatJSON. The split
// happens at the first dot, so "save.v2.json" is not a valid name.
func SplitName(name string) (string, Format, error) {
	base, ext, ok := strings.Cut(name, ".")
	if !ok || base == "" {
		return "", "", fmt.Errorf("storage: name %q has no extension: %w", name, apperr.ErrUnsupportedType)
	}
	format, err := ParseFormat(ext)
	if err != nil {
		return "", "", err
	}
	return base, format, nil
}

// HasKnownExt reports whether name ends in a supported extension.
func HasKnownExt(name string) bool {
	_, _, err := SplitName(name)
	return err == nil
}

// Decode parses raw file contents. JSON and YAML objects decode to
// map[string]any, text decodes to string.
func Decode(format Format, data []byte) (any, error) {
	switch format {
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return map[string]any{}, nil
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("storage: parse json: %w", err)
		}
		return v, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("storage: parse yaml: %w", err)
		}
		if v == nil {
			return map[string]any{}, nil
		}
		return v, nil
	case FormatText:
		return string(data), nil
	default:
		return nil, fmt.Errorf("storage: decode %q: %w", format, apperr.ErrUnsupportedType)
	}
}

// Encode serializes v for the given format. JSON is indented with four
// spaces.
func Encode(format Format, v any) ([]byte, error) {
	switch format {
	case FormatJSON:
		if v == nil {
			v = map[string]any{}
		}
		data, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("storage: encode json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		if v == nil {
			v = map[string]any{}
		}
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("storage: encode yaml: %w", err)
		}
		return data, nil
	case FormatText:
		switch s := v.(type) {
		case nil:
			return nil, nil
		case string:
			return []byte(s), nil
		case []byte:
			return s, nil
		default:
			return nil, fmt.Errorf("storage: text content must be a string, got %T: %w", v, apperr.ErrInvalidArgument)
		}
	default:
		return nil, fmt.Errorf("storage: encode %q: %w", format, apperr.ErrUnsupportedType)
	}
}

// Convert re-encodes a generic decoded value into T, e.g. a []any holding
// two numbers into [2]int.
func Convert[T any](v any) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("storage: convert: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("storage: convert to %T: %w", out, err)
	}
	return out, nil
}
