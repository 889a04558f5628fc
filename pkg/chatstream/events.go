package chatstream

import (
	"slices"

	"github.com/shivanshkc/llmstream/pkg/api"
)

// EventName identifies an event channel.
type EventName string

const (
	EventChunk                  EventName = "chunk"
	EventContentDelta           EventName = "content.delta"
	EventContentDone            EventName = "content.done"
	EventRefusalDelta           EventName = "refusal.delta"
	EventRefusalDone            EventName = "refusal.done"
	EventLogprobsContentDelta   EventName = "logprobs.content.delta"
	EventLogprobsContentDone    EventName = "logprobs.content.done"
	EventLogprobsRefusalDelta   EventName = "logprobs.refusal.delta"
	EventLogprobsRefusalDone    EventName = "logprobs.refusal.done"
	EventToolCallArgumentsDelta EventName = "tool_calls.function.arguments.delta"
	EventToolCallArgumentsDone  EventName = "tool_calls.function.arguments.done"
	EventMessage                EventName = "message"
	EventFinalChatCompletion    EventName = "finalChatCompletion"
	EventError                  EventName = "error"
	EventEnd                    EventName = "end"
)

// Event is the payload delivered to handlers. The concrete type is determined
// by the event name, for example EventContentDelta always carries a ContentDeltaEvent.
type Event interface {
	EventName() EventName
}

// ChunkEvent fires for every decoded chunk, before any event derived from it.
type ChunkEvent struct {
	Chunk api.ChatCompletionChunk
}

// ContentDeltaEvent fires when a non-empty content fragment is applied.
type ContentDeltaEvent struct {
	Index    int
	Delta    string
	Snapshot string
}

// ContentDoneEvent fires when a choice that produced content finishes.
// Parsed is the structured output, nil if there is no schema or the content does not match it.
type ContentDoneEvent struct {
	Index   int
	Content string
	Parsed  any
}

type RefusalDeltaEvent struct {
	Index    int
	Delta    string
	Snapshot string
}

type RefusalDoneEvent struct {
	Index   int
	Refusal string
}

// LogprobsContentDeltaEvent carries the content logprob entries of one chunk and all entries so far.
type LogprobsContentDeltaEvent struct {
	Index    int
	Content  []api.LogProbEntry
	Snapshot []api.LogProbEntry
}

// LogprobsContentDoneEvent carries the complete content logprob list of a finished
// choice. It fires for every choice that did not refuse, with an empty list when
// no logprobs were received.
type LogprobsContentDoneEvent struct {
	Index   int
	Content []api.LogProbEntry
}

type LogprobsRefusalDeltaEvent struct {
	Index    int
	Refusal  []api.LogProbEntry
	Snapshot []api.LogProbEntry
}

// LogprobsRefusalDoneEvent carries the complete refusal logprob list of a refused choice.
type LogprobsRefusalDoneEvent struct {
	Index   int
	Refusal []api.LogProbEntry
}

// ToolCallArgumentsDeltaEvent fires when an argument fragment is appended to a tool call.
type ToolCallArgumentsDeltaEvent struct {
	Index          int
	ToolIndex      int
	Name           string
	Arguments      string
	ArgumentsDelta string
}

// ToolCallArgumentsDoneEvent fires once per tool call when its choice finishes.
type ToolCallArgumentsDoneEvent struct {
	Index     int
	ToolIndex int
	Name      string
	Arguments string
}

// MessageEvent fires when a choice finishes, with a copy of its final message.
type MessageEvent struct {
	Index   int
	Message Message
}

// FinalChatCompletionEvent fires once the source is exhausted, with the memoized final completion.
type FinalChatCompletionEvent struct {
	Completion *FinalCompletion
}

// ErrorEvent fires once for a terminal failure, with the same error the blocking calls return.
type ErrorEvent struct {
	Err error
}

// EndEvent is always the last event of a stream.
type EndEvent struct{}

func (ChunkEvent) EventName() EventName                  { return EventChunk }
func (ContentDeltaEvent) EventName() EventName           { return EventContentDelta }
func (ContentDoneEvent) EventName() EventName            { return EventContentDone }
func (RefusalDeltaEvent) EventName() EventName           { return EventRefusalDelta }
func (RefusalDoneEvent) EventName() EventName            { return EventRefusalDone }
func (LogprobsContentDeltaEvent) EventName() EventName   { return EventLogprobsContentDelta }
func (LogprobsContentDoneEvent) EventName() EventName    { return EventLogprobsContentDone }
func (LogprobsRefusalDeltaEvent) EventName() EventName   { return EventLogprobsRefusalDelta }
func (LogprobsRefusalDoneEvent) EventName() EventName    { return EventLogprobsRefusalDone }
func (ToolCallArgumentsDeltaEvent) EventName() EventName { return EventToolCallArgumentsDelta }
func (ToolCallArgumentsDoneEvent) EventName() EventName  { return EventToolCallArgumentsDone }
func (MessageEvent) EventName() EventName                { return EventMessage }
func (FinalChatCompletionEvent) EventName() EventName    { return EventFinalChatCompletion }
func (ErrorEvent) EventName() EventName                  { return EventError }
func (EndEvent) EventName() EventName                    { return EventEnd }

// Handler handles an event. A non-nil error stops the stream and is returned
// to the caller driving it.
type Handler func(Event) error

// Subscriber registers handlers. The returned function removes the handler,
// it may be called more than once and from inside any handler.
type Subscriber interface {
	On(name EventName, handler Handler) (off func())
}

// On registers a typed handler. The event name is derived from E:
//
//	off := chatstream.On(stream, func(ev chatstream.ContentDeltaEvent) error {
//		fmt.Print(ev.Delta)
//		return nil
//	})
func On[E Event](subscriber Subscriber, handler func(E) error) (off func()) {
	var zero E
	return subscriber.On(zero.EventName(), func(ev Event) error {
		typed, ok := ev.(E)
		if !ok {
			return nil
		}
		return handler(typed)
	})
}

type subscription struct {
	handler Handler
	active  bool
}

// Emitter dispatches events synchronously, in registration order, to the
// handlers of their channel. There is no buffering and no replay: a handler
// only sees events emitted after it was registered.
//
// The zero value is ready to use. An Emitter is not safe for concurrent use.
type Emitter struct {
	handlers map[EventName][]*subscription
}

// On implements Subscriber.
func (e *Emitter) On(name EventName, handler Handler) (off func()) {
	if e.handlers == nil {
		e.handlers = map[EventName][]*subscription{}
	}

	sub := &subscription{handler: handler, active: true}
	e.handlers[name] = append(e.handlers[name], sub)

	return func() {
		if !sub.active {
			return
		}
		sub.active = false
		// A new slice is built so that a dispatch in progress keeps its own view.
		e.handlers[name] = slices.DeleteFunc(slices.Clone(e.handlers[name]), func(s *subscription) bool {
			return s == sub
		})
	}
}

// Emit delivers the event to every active handler of its channel and stops at the first error.
func (e *Emitter) Emit(event Event) error {
	// Handlers registered during this dispatch are not part of it,
	// handlers removed during it are skipped.
	for _, sub := range e.handlers[event.EventName()] {
		if !sub.active {
			continue
		}
		if err := sub.handler(event); err != nil {
			return err
		}
	}
	return nil
}

// broadcast delivers the event to every active handler, ignoring their errors.
func (e *Emitter) broadcast(event Event) {
	for _, sub := range e.handlers[event.EventName()] {
		if sub.active {
			_ = sub.handler(event)
		}
	}
}

// HandlerCount returns the number of active handlers for the given channel.
func (e *Emitter) HandlerCount(name EventName) int {
	return len(e.handlers[name])
}
