// Package chatstream accumulates a streamed chat completion.
//
// A Stream reads Server-Sent Events from a single pull cursor, decodes them into
// chunks and folds every choice delta into a per-choice snapshot. Consumers can
// subscribe to events, iterate over the raw chunks, or just wait for the final
// completion; all three observe the same consumption of the source.
//
//	stream := chatstream.New(events, chatstream.WithSchema(schema))
//	chatstream.On(stream, func(ev chatstream.ContentDeltaEvent) error {
//		fmt.Print(ev.Delta)
//		return nil
//	})
//	completion, err := stream.FinalChatCompletion(ctx)
package chatstream

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/httpx"
	"github.com/shivanshkc/llmstream/pkg/streams"
)

// ObjectChatCompletion is the object type of a FinalCompletion.
const ObjectChatCompletion = "chat.completion"

// Option configures a Stream.
type Option func(*Stream)

// WithSchema enables structured output parsing of finished choices.
func WithSchema(schema Schema) Option {
	return func(s *Stream) { s.schema = schema }
}

// Stream is the accumulator of a single chat completion response.
//
// It is not safe for concurrent use. Handlers run synchronously inside the
// call that pulled the chunk.
type Stream struct {
	source  *streams.Stream[httpx.ServerSentEvent]
	schema  Schema
	emitter Emitter

	choices  map[int]*choiceAccumulator
	metadata FinalCompletion

	chunkCount int
	violations []error

	// done is set once the source is exhausted or failed.
	done bool
	// err is the terminal error, returned by every call once set.
	err error
	// final is built once, when the source is exhausted.
	final *FinalCompletion
}

// New creates a Stream reading the given frames. Nothing is read until the
// Stream is pulled.
func New(source *streams.Stream[httpx.ServerSentEvent], opts ...Option) *Stream {
	stream := &Stream{source: source, choices: map[int]*choiceAccumulator{}}
	for _, opt := range opts {
		opt(stream)
	}
	return stream
}

// On implements Subscriber.
func (s *Stream) On(name EventName, handler Handler) (off func()) {
	return s.emitter.On(name, handler)
}

// NextContext reads, applies and returns the next chunk. It returns false once
// the source is exhausted.
//
// Any error is terminal: it is emitted as an ErrorEvent, and returned again by
// every later call.
func (s *Stream) NextContext(ctx context.Context) (api.ChatCompletionChunk, bool, error) {
	if s.err != nil {
		return api.ChatCompletionChunk{}, false, s.err
	}
	if s.done {
		return api.ChatCompletionChunk{}, false, nil
	}

	frame, ok, err := s.source.NextContext(ctx)
	if err != nil {
		return api.ChatCompletionChunk{}, false, s.fail(err)
	}
	if !ok {
		return api.ChatCompletionChunk{}, false, s.complete()
	}
	if frame.Error != nil {
		return api.ChatCompletionChunk{}, false, s.fail(fmt.Errorf("failed to read stream: %w", frame.Error))
	}

	chunk, err := api.DecodeChunk(frame)
	if err != nil {
		return api.ChatCompletionChunk{}, false, s.fail(err)
	}

	if err := s.apply(chunk); err != nil {
		return api.ChatCompletionChunk{}, false, s.fail(err)
	}
	return chunk, true, nil
}

// Chunks returns the remaining chunks as a sequence. Breaking out of the loop
// leaves the rest of the stream for a later call.
//
//	for chunk, err := range stream.Chunks(ctx) {
//		...
//	}
func (s *Stream) Chunks(ctx context.Context) iter.Seq2[api.ChatCompletionChunk, error] {
	return func(yield func(api.ChatCompletionChunk, error) bool) {
		for {
			chunk, ok, err := s.NextContext(ctx)
			if err != nil {
				yield(chunk, err)
				return
			}
			if !ok || !yield(chunk, nil) {
				return
			}
		}
	}
}

// FinalChatCompletion drives the stream to its end and returns the final
// completion. The result is memoized: every call returns the same value.
//
// It returns ErrEmptyStream if the source ended without any chunk.
func (s *Stream) FinalChatCompletion(ctx context.Context) (*FinalCompletion, error) {
	for !s.done {
		if _, _, err := s.NextContext(ctx); err != nil {
			return nil, err
		}
	}

	switch {
	case s.err != nil:
		return nil, s.err
	case s.final == nil:
		return nil, ErrEmptyStream
	}
	return s.final, nil
}

// CurrentSnapshot returns a copy of the state accumulated so far.
func (s *Stream) CurrentSnapshot() FinalCompletion {
	snapshot := s.metadata
	snapshot.Object = ObjectChatCompletion
	snapshot.Usage = clonePtr(s.metadata.Usage)
	snapshot.Choices = s.snapshotChoices()
	return snapshot
}

// Violations returns the protocol violations seen so far. They are logged and
// otherwise ignored.
func (s *Stream) Violations() []error {
	return slices.Clone(s.violations)
}

// apply folds the chunk into the choices and emits its events. The chunk event
// is emitted after every choice was applied, so a failing handler never leaves
// a chunk half applied.
func (s *Stream) apply(chunk api.ChatCompletionChunk) error {
	s.chunkCount++
	s.mergeMetadata(chunk)

	choices := slices.SortedStableFunc(slices.Values(chunk.Choices), func(a, b api.ChunkChoice) int {
		return cmp.Compare(a.Index, b.Index)
	})

	var derived []Event
	for _, choice := range choices {
		accumulator, ok := s.choices[choice.Index]
		if !ok {
			accumulator = newChoiceAccumulator(choice.Index)
			s.choices[choice.Index] = accumulator
		}

		events, violation := accumulator.apply(choice, s.schema)
		if errors.Is(violation, ErrUnexpectedChunkAfterFinish) {
			violation = &ChunkAfterFinishError{ChoiceIndex: choice.Index, ChunkIndex: chunk.Index()}
		}
		if violation != nil {
			s.violations = append(s.violations, violation)
			ancli.Warnf("ignoring protocol violation: %v\n", violation)
		}
		derived = append(derived, events...)
	}

	if err := s.emitter.Emit(ChunkEvent{Chunk: chunk}); err != nil {
		return err
	}
	for _, event := range derived {
		if err := s.emitter.Emit(event); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) mergeMetadata(chunk api.ChatCompletionChunk) {
	if s.metadata.ID == "" {
		s.metadata.ID = chunk.ID
	}
	if s.metadata.Model == "" {
		s.metadata.Model = chunk.Model
	}
	if s.metadata.Created == 0 {
		s.metadata.Created = chunk.Created
	}
	if chunk.SystemFingerprint != "" {
		s.metadata.SystemFingerprint = chunk.SystemFingerprint
	}
	if chunk.ServiceTier != "" {
		s.metadata.ServiceTier = chunk.ServiceTier
	}
	if chunk.Usage != nil {
		s.metadata.Usage = clonePtr(chunk.Usage)
	}
}

// complete builds the final completion once the source is exhausted.
func (s *Stream) complete() error {
	s.done = true

	if s.chunkCount == 0 {
		return s.end()
	}

	for _, index := range slices.Sorted(maps.Keys(s.choices)) {
		accumulator := s.choices[index]
		if accumulator.frozen {
			continue
		}
		ancli.Warnf("stream ended before choice %d finished\n", index)
		if violation := accumulator.freeze(); violation != nil {
			s.violations = append(s.violations, violation)
		}
	}

	final := s.CurrentSnapshot()
	s.final = &final

	if err := s.emitter.Emit(FinalChatCompletionEvent{Completion: s.final}); err != nil {
		return s.fail(err)
	}
	return s.end()
}

func (s *Stream) end() error {
	if err := s.emitter.Emit(EndEvent{}); err != nil {
		s.err = err
		return err
	}
	return nil
}

// fail makes the error terminal and notifies the error handlers.
func (s *Stream) fail(err error) error {
	s.done = true
	s.err = err
	s.emitter.broadcast(ErrorEvent{Err: err})
	s.emitter.broadcast(EndEvent{})
	return err
}

func (s *Stream) snapshotChoices() []ChoiceSnapshot {
	choices := make([]ChoiceSnapshot, 0, len(s.choices))
	for _, index := range slices.Sorted(maps.Keys(s.choices)) {
		choices = append(choices, s.choices[index].current())
	}
	return choices
}
