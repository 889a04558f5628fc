package chatstream

import (
	"encoding/json"
)

// Schema validates structured output. Validate receives the content decoded as
// generic JSON and returns the value to expose as Message.Parsed.
type Schema interface {
	Name() string
	Validate(value any) (any, error)
}

// SchemaFunc adapts a validation function to the Schema interface.
func SchemaFunc(name string, validate func(value any) (any, error)) Schema {
	return schemaFunc{name: name, validate: validate}
}

type schemaFunc struct {
	name     string
	validate func(value any) (any, error)
}

func (s schemaFunc) Name() string                    { return s.name }
func (s schemaFunc) Validate(value any) (any, error) { return s.validate(value) }

// parseContent decodes the final content of a choice against the schema.
// Failures are soft and yield nil.
func parseContent(content string, schema Schema) any {
	if schema == nil {
		return nil
	}

	var candidate any
	if err := json.Unmarshal([]byte(content), &candidate); err != nil {
		return nil
	}

	parsed, err := schema.Validate(candidate)
	if err != nil {
		return nil
	}
	return parsed
}

// ParsedAs returns the structured output of the message as a T.
// It reports false when the message has no parsed value of that type.
func ParsedAs[T any](message Message) (T, bool) {
	switch parsed := message.Parsed.(type) {
	case T:
		return parsed, true
	case *T:
		if parsed != nil {
			return *parsed, true
		}
	}
	var zero T
	return zero, false
}
