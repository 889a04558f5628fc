package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shivanshkc/llmstream/pkg/httpx"
)

// ErrNotAnObject is the cause of a DecodeError for payloads that are valid JSON but not a JSON object.
var ErrNotAnObject = errors.New("payload is not a JSON object")

// DecodeError is returned by DecodeChunk for frames that are not well-formed chunks.
type DecodeError struct {
	// Index is the index of the offending frame.
	Index int
	// Frame is the raw payload that failed to decode.
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode chunk at frame %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StreamError is an error object sent by the server in place of a chunk.
type StreamError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

func (e *StreamError) Error() string {
	if e.Type == "" {
		return "server sent an error: " + e.Message
	}
	return fmt.Sprintf("server sent an error: %s: %s", e.Type, e.Message)
}

// DecodeChunk converts the payload of the given Server-Sent Event into a
// ChatCompletionChunk. It is pure: the frame is only read.
//
// Frames carrying a transport error must be handled by the caller, they are
// not chunks. A payload that is an error envelope ({"error": {...}}) is
// returned as a *StreamError.
func DecodeChunk(frame httpx.ServerSentEvent) (ChatCompletionChunk, error) {
	payload := bytes.TrimSpace([]byte(frame.Value))
	if len(payload) == 0 || payload[0] != '{' {
		if !json.Valid(payload) {
			return ChatCompletionChunk{}, newDecodeError(frame, errors.New("payload is not valid JSON"))
		}
		return ChatCompletionChunk{}, newDecodeError(frame, ErrNotAnObject)
	}

	var envelope struct {
		ChatCompletionChunk
		Error *StreamError `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ChatCompletionChunk{}, newDecodeError(frame, err)
	}
	if envelope.Error != nil {
		return ChatCompletionChunk{}, envelope.Error
	}

	chunk := envelope.ChatCompletionChunk
	for _, choice := range chunk.Choices {
		if choice.Index < 0 {
			return ChatCompletionChunk{}, newDecodeError(frame, fmt.Errorf("negative choice index: %d", choice.Index))
		}
		for _, call := range choice.Delta.ToolCalls {
			if call.Index < 0 {
				return ChatCompletionChunk{}, newDecodeError(frame, fmt.Errorf("negative tool call index: %d", call.Index))
			}
		}
	}

	chunk.index = frame.Index
	chunk.timestamp = frame.Timestamp
	return chunk, nil
}

func newDecodeError(frame httpx.ServerSentEvent, err error) *DecodeError {
	return &DecodeError{Index: frame.Index, Frame: frame.Value, Err: err}
}
