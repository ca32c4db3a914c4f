package ollama

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema is returned by Chat before any request is sent when the
// format schema cannot be enforced.
var ErrInvalidSchema = errors.New("invalid format schema")

// Schema is the JSON schema sent as the chat format. Only flat objects of
// scalars and typed arrays are accepted; an array without an item type would
// let the model return mixed values.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes one field of a Schema.
type SchemaProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
}

// Validate checks that s is an object whose required fields exist and whose
// array fields declare their item type.
func (s *Schema) Validate() error {
	if s.Type != "object" {
		return fmt.Errorf("%w: top-level type %q, want object", ErrInvalidSchema, s.Type)
	}
	for name, p := range s.Properties {
		if err := p.validate(name); err != nil {
			return err
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("%w: required field %q has no property", ErrInvalidSchema, name)
		}
	}
	return nil
}

func (p SchemaProperty) validate(path string) error {
	switch p.Type {
	case "string", "number", "integer", "boolean":
		if p.Items != nil {
			return fmt.Errorf("%w: %s: items set on %s", ErrInvalidSchema, path, p.Type)
		}
		return nil
	case "array":
		if p.Items == nil {
			return fmt.Errorf("%w: %s: array without items", ErrInvalidSchema, path)
		}
		return p.Items.validate(path + "[]")
	default:
		return fmt.Errorf("%w: %s: unsupported type %q", ErrInvalidSchema, path, p.Type)
	}
}
