package chatstream

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/xeipuuv/gojsonschema"

	"github.com/shivanshkc/llmstream/pkg/api"
)

// JSONSchema is a Schema backed by a JSON Schema document. Valid values are
// decoded into a T.
type JSONSchema[T any] struct {
	name     string
	raw      json.RawMessage
	compiled *gojsonschema.Schema
}

// NewJSONSchema compiles the given JSON Schema document.
func NewJSONSchema[T any](name string, schema []byte) (*JSONSchema[T], error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %q: %w", name, err)
	}
	return &JSONSchema[T]{name: name, raw: slices.Clone(schema), compiled: compiled}, nil
}

func (s *JSONSchema[T]) Name() string { return s.name }

// Raw returns the schema document.
func (s *JSONSchema[T]) Raw() json.RawMessage { return s.raw }

// ResponseFormat returns the request option asking the model for output matching this schema.
func (s *JSONSchema[T]) ResponseFormat() *api.ResponseFormat {
	return &api.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: &api.JSONSchemaFormat{Name: s.name, Schema: s.raw, Strict: true},
	}
}

// Validate implements Schema. On success the returned value is a T.
func (s *JSONSchema[T]) Validate(value any) (any, error) {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, fmt.Errorf("failed to validate against schema %q: %w", s.name, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &ValidationError{Schema: s.name, Problems: problems}
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var typed T
	if err := json.Unmarshal(encoded, &typed); err != nil {
		return nil, &ValidationError{Schema: s.name, Problems: []string{err.Error()}}
	}
	return typed, nil
}
