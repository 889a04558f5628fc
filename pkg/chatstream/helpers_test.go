package chatstream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/chatstream"
	"github.com/shivanshkc/llmstream/pkg/httpx"
)

// newStream creates a Stream reading the given SSE body.
func newStream(body string, opts ...chatstream.Option) *chatstream.Stream {
	source := httpx.ReadServerSentEvents(context.Background(), io.NopCloser(strings.NewReader(body)))
	return chatstream.New(source, opts...)
}

// transcript encodes the chunks as an SSE body terminated by the done marker.
func transcript(t *testing.T, chunks ...api.ChatCompletionChunk) string {
	t.Helper()

	var builder strings.Builder
	for _, chunk := range chunks {
		data, err := json.Marshal(chunk)
		require.NoError(t, err)
		_, _ = fmt.Fprintf(&builder, "data: %s\n\n", data)
	}
	builder.WriteString("data: [DONE]\n\n")
	return builder.String()
}

func ptr[T any](value T) *T { return &value }

func chunkOf(choices ...api.ChunkChoice) api.ChatCompletionChunk {
	return api.ChatCompletionChunk{
		ID:      "chatcmpl-test",
		Object:  "chat.completion.chunk",
		Created: 1727346142,
		Model:   "gpt-4o-2024-08-06",
		Choices: choices,
	}
}

func roleChoice(index int) api.ChunkChoice {
	return api.ChunkChoice{Index: index, Delta: api.Delta{Role: api.RoleAssistant, Content: ptr("")}}
}

func contentChoice(index int, fragment string) api.ChunkChoice {
	return api.ChunkChoice{Index: index, Delta: api.Delta{Content: ptr(fragment)}}
}

// contentTokenChoice carries a content fragment together with its logprob entry.
func contentTokenChoice(index int, token string) api.ChunkChoice {
	choice := contentChoice(index, token)
	choice.Logprobs = &api.ChoiceLogprobs{Content: []api.LogProbEntry{entryOf(token)}}
	return choice
}

func refusalTokenChoice(index int, token string) api.ChunkChoice {
	return api.ChunkChoice{
		Index:    index,
		Delta:    api.Delta{Refusal: ptr(token)},
		Logprobs: &api.ChoiceLogprobs{Refusal: []api.LogProbEntry{entryOf(token)}},
	}
}

func finishChoice(index int, reason string) api.ChunkChoice {
	return api.ChunkChoice{Index: index, FinishReason: ptr(reason)}
}

func entryOf(token string) api.LogProbEntry {
	encoded := make([]int, 0, len(token))
	for _, b := range []byte(token) {
		encoded = append(encoded, int(b))
	}
	return api.LogProbEntry{
		Token:       token,
		Logprob:     -0.25,
		Bytes:       encoded,
		TopLogprobs: []api.TopLogProb{},
	}
}

var allEvents = []chatstream.EventName{
	chatstream.EventChunk,
	chatstream.EventContentDelta,
	chatstream.EventContentDone,
	chatstream.EventRefusalDelta,
	chatstream.EventRefusalDone,
	chatstream.EventLogprobsContentDelta,
	chatstream.EventLogprobsContentDone,
	chatstream.EventLogprobsRefusalDelta,
	chatstream.EventLogprobsRefusalDone,
	chatstream.EventToolCallArgumentsDelta,
	chatstream.EventToolCallArgumentsDone,
	chatstream.EventMessage,
	chatstream.EventFinalChatCompletion,
	chatstream.EventError,
	chatstream.EventEnd,
}

// recorder collects every event emitted by a stream, in order.
type recorder struct {
	events []chatstream.Event
}

func record(subscriber chatstream.Subscriber) *recorder {
	rec := &recorder{}
	for _, name := range allEvents {
		subscriber.On(name, func(ev chatstream.Event) error {
			rec.events = append(rec.events, ev)
			return nil
		})
	}
	return rec
}

func (r *recorder) names() []chatstream.EventName {
	names := make([]chatstream.EventName, 0, len(r.events))
	for _, ev := range r.events {
		names = append(names, ev.EventName())
	}
	return names
}

// ofType returns the recorded events of type E.
func ofType[E chatstream.Event](r *recorder) []E {
	var out []E
	for _, ev := range r.events {
		if typed, ok := ev.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}
