// Package definition parses definition documents and validates them against
// the embedded JSON schema.
package definition

import (
	"bytes"
	"fmt"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.DefinitionLoader for YAML (and therefore JSON) documents.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load decodes content into a JSON-compatible document.
func (l *Loader) Load(content []byte, origin string) (*ports.RawDefinition, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrDefinitionParse, "empty document"), "origin", origin)
	}

	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrDefinitionParse, err.Error()), "origin", origin)
	}

	obj, ok := normalize(doc).(map[string]any)
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrDefinitionParse, "document is not a mapping"), "origin", origin)
	}

	return &ports.RawDefinition{
		Document: obj,
		Content:  content,
		Origin:   origin,
	}, nil
}

// normalize converts decoded YAML into types JSON can represent.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = normalize(item)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case []any:
		a := make([]any, len(val))
		for i, item := range val {
			a[i] = normalize(item)
		}
		return a
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
