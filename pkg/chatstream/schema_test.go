package chatstream_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/llmstream/pkg/chatstream"
)

func TestJSONSchema_Validate(t *testing.T) {
	schema := newLocationSchema(t)

	testCases := []struct {
		name          string
		input         string
		expectedValue any
		expectInvalid bool
	}{
		{name: "Valid", input: `{"city":"Oslo","units":"c"}`, expectedValue: location{City: "Oslo", Units: "c"}},
		{name: "Missing Field", input: `{"city":"Oslo"}`, expectInvalid: true},
		{name: "Wrong Types", input: `{"city":1,"units":true}`, expectInvalid: true},
		{name: "Extra Field", input: `{"city":"Oslo","units":"f","wind":3}`, expectInvalid: true},
		{name: "Not An Object", input: `["Oslo"]`, expectInvalid: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var input any
			require.NoError(t, json.Unmarshal([]byte(tc.input), &input))

			value, err := schema.Validate(input)
			if !tc.expectInvalid {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedValue, value)
				return
			}

			var validationErr *chatstream.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, "location", validationErr.Schema)
			assert.NotEmpty(t, validationErr.Problems)
			assert.Nil(t, value)
		})
	}
}

func TestJSONSchema_ResponseFormat(t *testing.T) {
	schema := newLocationSchema(t)

	format := schema.ResponseFormat()
	assert.Equal(t, "json_schema", format.Type)
	require.NotNil(t, format.JSONSchema)
	assert.Equal(t, "location", format.JSONSchema.Name)
	assert.True(t, format.JSONSchema.Strict)
	assert.JSONEq(t, locationSchema, string(format.JSONSchema.Schema))
	assert.Equal(t, "location", schema.Name())
}

func TestNewJSONSchema_Invalid(t *testing.T) {
	_, err := chatstream.NewJSONSchema[location]("broken", []byte(`{"type": "nonsense"}`))
	assert.Error(t, err)

	_, err = chatstream.NewJSONSchema[location]("broken", []byte(`{"type":`))
	assert.Error(t, err)
}

func TestSchemaFunc(t *testing.T) {
	schema := chatstream.SchemaFunc("upper", func(value any) (any, error) {
		text, ok := value.(string)
		if !ok {
			return nil, &chatstream.ValidationError{Schema: "upper", Problems: []string{"not a string"}}
		}
		return len(text), nil
	})

	body := transcript(t,
		chunkOf(roleChoice(0)),
		chunkOf(contentChoice(0, `"hello"`)),
		chunkOf(finishChoice(0, "stop")),
	)
	stream := newStream(body, chatstream.WithSchema(schema))

	completion, err := stream.FinalChatCompletion(context.Background())
	require.NoError(t, err)

	length, ok := chatstream.ParsedAs[int](completion.Choices[0].Message)
	assert.True(t, ok)
	assert.Equal(t, 5, length)
	assert.Equal(t, "upper", schema.Name())
}
