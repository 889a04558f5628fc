package api_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/httpx"
)

func TestDecodeChunk(t *testing.T) {
	t.Run("Content Delta", func(t *testing.T) {
		received := time.Now()
		frame := httpx.ServerSentEvent{
			Index:     7,
			Timestamp: received,
			Value:     `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1727346143,"model":"gpt-4o-2024-08-06","choices":[{"index":0,"delta":{"role":"assistant","content":" test "},"finish_reason":null}]}`,
		}

		chunk, err := api.DecodeChunk(frame)
		require.NoError(t, err)
		assert.Equal(t, "chatcmpl-1", chunk.ID)
		assert.Equal(t, "gpt-4o-2024-08-06", chunk.Model)
		assert.Equal(t, 7, chunk.Index())
		assert.Equal(t, received, chunk.Timestamp())

		require.Len(t, chunk.Choices, 1)
		choice := chunk.Choices[0]
		assert.Equal(t, api.RoleAssistant, choice.Delta.Role)
		require.NotNil(t, choice.Delta.Content)
		assert.Equal(t, " test ", *choice.Delta.Content)
		assert.Nil(t, choice.Delta.Refusal)
		assert.Nil(t, choice.FinishReason)
		assert.Nil(t, choice.Logprobs)
	})

	t.Run("Empty Content Is Not Absent Content", func(t *testing.T) {
		chunk, err := api.DecodeChunk(httpx.ServerSentEvent{Value: `{"choices":[{"index":0,"delta":{"content":"","refusal":null}}]}`})
		require.NoError(t, err)
		require.NotNil(t, chunk.Choices[0].Delta.Content)
		assert.Equal(t, "", *chunk.Choices[0].Delta.Content)
		assert.Nil(t, chunk.Choices[0].Delta.Refusal)
	})

	t.Run("Logprobs, Tool Calls and Audio", func(t *testing.T) {
		chunk, err := api.DecodeChunk(httpx.ServerSentEvent{Value: `{"choices":[{"index":1,
			"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"ci"}}],
			         "audio":{"id":"audio_1","data":"AAAA","transcript":"Hi","expires_at":1704805200}},
			"logprobs":{"content":[{"token":"Hi","logprob":-0.01,"bytes":[72,105],"top_logprobs":[{"token":"Hello","logprob":-4.2,"bytes":null}]}],"refusal":null},
			"finish_reason":"tool_calls"}]}`})
		require.NoError(t, err)

		choice := chunk.Choices[0]
		assert.Equal(t, 1, choice.Index)
		require.NotNil(t, choice.FinishReason)
		assert.Equal(t, api.FinishReasonToolCalls, *choice.FinishReason)

		require.Len(t, choice.Delta.ToolCalls, 1)
		assert.Equal(t, "get_weather", choice.Delta.ToolCalls[0].Function.Name)
		assert.Equal(t, `{"ci`, choice.Delta.ToolCalls[0].Function.Arguments)

		require.NotNil(t, choice.Delta.Audio)
		require.NotNil(t, choice.Delta.Audio.ExpiresAt)
		assert.Equal(t, int64(1704805200), *choice.Delta.Audio.ExpiresAt)

		require.NotNil(t, choice.Logprobs)
		require.Len(t, choice.Logprobs.Content, 1)
		assert.Equal(t, []int{72, 105}, choice.Logprobs.Content[0].Bytes)
		assert.Nil(t, choice.Logprobs.Content[0].TopLogprobs[0].Bytes)
		assert.Nil(t, choice.Logprobs.Refusal)
	})

	t.Run("Usage Only Chunk", func(t *testing.T) {
		chunk, err := api.DecodeChunk(httpx.ServerSentEvent{Value: `{"choices":[],"usage":{"prompt_tokens":17,"completion_tokens":10,"total_tokens":27}}`})
		require.NoError(t, err)
		assert.Empty(t, chunk.Choices)
		require.NotNil(t, chunk.Usage)
		assert.Equal(t, 27, chunk.Usage.TotalTokens)
	})

	t.Run("Server Error Envelope", func(t *testing.T) {
		_, err := api.DecodeChunk(httpx.ServerSentEvent{Value: `{"error":{"message":"overloaded","type":"server_error"}}`})
		var streamErr *api.StreamError
		require.ErrorAs(t, err, &streamErr)
		assert.Equal(t, "overloaded", streamErr.Message)
		assert.Contains(t, err.Error(), "server_error: overloaded")
	})
}

func TestDecodeChunk_Malformed(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		contains string
	}{
		{name: "Truncated JSON", value: `{"choices":`, contains: "unexpected end of JSON input"},
		{name: "Not JSON", value: `{invalid-json}`, contains: "invalid character"},
		{name: "Plain Text", value: `hello`, contains: "not valid JSON"},
		{name: "JSON Array", value: `[1,2]`, contains: api.ErrNotAnObject.Error()},
		{name: "JSON Null", value: `null`, contains: api.ErrNotAnObject.Error()},
		{name: "Wrong Field Type", value: `{"choices":"nope"}`, contains: "cannot unmarshal"},
		{name: "Negative Choice Index", value: `{"choices":[{"index":-1,"delta":{}}]}`, contains: "negative choice index"},
		{name: "Negative Tool Call Index", value: `{"choices":[{"index":0,"delta":{"tool_calls":[{"index":-2,"function":{}}]}}]}`, contains: "negative tool call index"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := api.DecodeChunk(httpx.ServerSentEvent{Index: 3, Value: tc.value})

			var decodeErr *api.DecodeError
			require.True(t, errors.As(err, &decodeErr), "Expected a *DecodeError, got: %v", err)
			assert.Equal(t, 3, decodeErr.Index)
			assert.Equal(t, tc.value, decodeErr.Frame)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}
