package format

import (
	"bytes"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct{}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}

// YAMLFormatter writes YAML output using the payload's JSON field names.
type YAMLFormatter struct{}

// Write converts payload through its JSON form so json tags and omitempty
// carry over, then encodes it as YAML.
func (f YAMLFormatter) Write(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlValue(generic)); err != nil {
		return err
	}
	return enc.Close()
}

// yamlValue turns json.Number leaves back into ints or floats.
func yamlValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		for k, child := range value {
			value[k] = yamlValue(child)
		}
		return value
	case []any:
		for i, child := range value {
			value[i] = yamlValue(child)
		}
		return value
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return n
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	default:
		return v
	}
}

// ForFlags picks YAML when yamlOutput is set, JSON otherwise.
func ForFlags(yamlOutput bool) Formatter {
	if yamlOutput {
		return YAMLFormatter{}
	}
	return JSONFormatter{}
}
