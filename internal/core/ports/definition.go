package ports

import "go.trai.ch/forge/internal/core/domain"

//go:generate mockgen -source=definition.go -destination=mocks/mock_definition.go -package=mocks

// RawDefinition is a parsed but not yet validated definition document.
type RawDefinition struct {
	// Document is the decoded, JSON-compatible object.
	Document map[string]any
	// Content is the exact bytes that were parsed.
	Content []byte
	// Origin describes where the content came from, for error messages.
	Origin string
}

// DefinitionLoader parses raw definition content.
type DefinitionLoader interface {
	// Load parses content into a raw definition.
	Load(content []byte, origin string) (*RawDefinition, error)
}

// DefinitionValidator checks a raw definition against the definition schema.
type DefinitionValidator interface {
	// Validate returns the typed definition or a schema error.
	Validate(raw *RawDefinition) (*domain.Definition, error)
}
