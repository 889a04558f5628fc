package chatstream

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shivanshkc/llmstream/pkg/api"
)

// choiceAccumulator folds the deltas of a single choice index into its snapshot.
//
// String fields are collected in builders and published into the snapshot
// after every delta, so the snapshot is always a complete view of the choice.
type choiceAccumulator struct {
	snapshot ChoiceSnapshot

	// nil builders mean the field was never sent.
	content    *strings.Builder
	refusal    *strings.Builder
	audioData  strings.Builder
	transcript strings.Builder

	// toolPositions maps a tool call index to its position in the message tool calls.
	toolPositions map[int]int

	frozen bool
}

func newChoiceAccumulator(index int) *choiceAccumulator {
	return &choiceAccumulator{
		snapshot: ChoiceSnapshot{
			Index:   index,
			Message: Message{Role: api.RoleAssistant, ToolCalls: []ToolCall{}},
		},
		toolPositions: map[int]int{},
	}
}

// apply merges the choice delta into the snapshot and returns the events it
// produced, in emission order. A non-nil violation is never terminal.
func (a *choiceAccumulator) apply(choice api.ChunkChoice, schema Schema) (events []Event, violation error) {
	if a.frozen {
		return nil, ErrUnexpectedChunkAfterFinish
	}

	index := a.snapshot.Index
	delta := choice.Delta

	if delta.Role != "" {
		a.snapshot.Message.Role = delta.Role
	}

	if delta.Content != nil {
		a.content = appendFragment(a.content, *delta.Content)
		if *delta.Content != "" {
			events = append(events, ContentDeltaEvent{Index: index, Delta: *delta.Content, Snapshot: a.content.String()})
		}
	}

	if delta.Refusal != nil {
		a.refusal = appendFragment(a.refusal, *delta.Refusal)
		if *delta.Refusal != "" {
			events = append(events, RefusalDeltaEvent{Index: index, Delta: *delta.Refusal, Snapshot: a.refusal.String()})
		}
	}

	if choice.Logprobs != nil {
		events = append(events, a.applyLogprobs(*choice.Logprobs)...)
	}

	for _, call := range delta.ToolCalls {
		if event := a.applyToolCall(call); event != nil {
			events = append(events, event)
		}
	}

	if delta.Audio != nil {
		a.applyAudio(*delta.Audio)
	}

	a.publish()

	if choice.FinishReason != nil {
		doneEvents, err := a.finish(*choice.FinishReason, schema)
		events = append(events, doneEvents...)
		violation = err
	}

	return events, violation
}

func (a *choiceAccumulator) applyLogprobs(logprobs api.ChoiceLogprobs) []Event {
	if a.snapshot.Logprobs == nil {
		a.snapshot.Logprobs = &Logprobs{}
	}
	index, current := a.snapshot.Index, a.snapshot.Logprobs

	var events []Event
	if logprobs.Content != nil {
		current.Content = append(orEmpty(current.Content), logprobs.Content...)
		if len(logprobs.Content) > 0 {
			events = append(events, LogprobsContentDeltaEvent{
				Index:    index,
				Content:  logprobs.Content,
				Snapshot: slices.Clip(current.Content),
			})
		}
	}

	if logprobs.Refusal != nil {
		current.Refusal = append(orEmpty(current.Refusal), logprobs.Refusal...)
		if len(logprobs.Refusal) > 0 {
			events = append(events, LogprobsRefusalDeltaEvent{
				Index:    index,
				Refusal:  logprobs.Refusal,
				Snapshot: slices.Clip(current.Refusal),
			})
		}
	}

	return events
}

// applyToolCall merges a tool call fragment by its index. Calls keep the order
// in which their index was first seen.
func (a *choiceAccumulator) applyToolCall(delta api.ToolCallDelta) Event {
	position, ok := a.toolPositions[delta.Index]
	if !ok {
		position = len(a.snapshot.Message.ToolCalls)
		a.toolPositions[delta.Index] = position
		a.snapshot.Message.ToolCalls = append(a.snapshot.Message.ToolCalls, ToolCall{Type: "function"})
	}

	call := &a.snapshot.Message.ToolCalls[position]
	if call.ID == "" {
		call.ID = delta.ID
	}
	if delta.Type != "" {
		call.Type = delta.Type
	}
	if call.Function.Name == "" {
		call.Function.Name = delta.Function.Name
	}

	if delta.Function.Arguments == "" {
		return nil
	}
	call.Function.Arguments += delta.Function.Arguments

	return ToolCallArgumentsDeltaEvent{
		Index:          a.snapshot.Index,
		ToolIndex:      delta.Index,
		Name:           call.Function.Name,
		Arguments:      call.Function.Arguments,
		ArgumentsDelta: delta.Function.Arguments,
	}
}

func (a *choiceAccumulator) applyAudio(delta api.AudioDelta) {
	if a.snapshot.Message.Audio == nil {
		a.snapshot.Message.Audio = &Audio{}
	}

	audio := a.snapshot.Message.Audio
	if audio.ID == "" {
		audio.ID = delta.ID
	}
	if delta.ExpiresAt != nil {
		audio.ExpiresAt = clonePtr(delta.ExpiresAt)
	}

	a.audioData.WriteString(delta.Data)
	a.transcript.WriteString(delta.Transcript)
}

// publish copies the builder contents into the snapshot.
func (a *choiceAccumulator) publish() {
	message := &a.snapshot.Message
	message.Content = builderValue(a.content)
	message.Refusal = builderValue(a.refusal)
	if message.Audio != nil {
		message.Audio.Data = a.audioData.String()
		message.Audio.Transcript = a.transcript.String()
	}
}

// finish freezes the choice and returns its done events.
func (a *choiceAccumulator) finish(reason string, schema Schema) ([]Event, error) {
	a.snapshot.FinishReason = &reason
	violation := a.freeze()

	index, message := a.snapshot.Index, &a.snapshot.Message

	var events []Event
	for _, toolIndex := range slices.Sorted(maps.Keys(a.toolPositions)) {
		call := message.ToolCalls[a.toolPositions[toolIndex]]
		events = append(events, ToolCallArgumentsDoneEvent{
			Index:     index,
			ToolIndex: toolIndex,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	if message.Refusal != nil {
		events = append(events,
			RefusalDoneEvent{Index: index, Refusal: *message.Refusal},
			LogprobsRefusalDoneEvent{Index: index, Refusal: a.finalLogprobs(func(l *Logprobs) []api.LogProbEntry { return l.Refusal })},
		)
	} else {
		if message.Content != nil {
			message.Parsed = parseContent(*message.Content, schema)
			events = append(events, ContentDoneEvent{Index: index, Content: *message.Content, Parsed: message.Parsed})
		}
		events = append(events,
			LogprobsContentDoneEvent{Index: index, Content: a.finalLogprobs(func(l *Logprobs) []api.LogProbEntry { return l.Content })},
		)
	}

	return append(events, MessageEvent{Index: index, Message: message.clone()}), violation
}

// freeze stops accumulation and makes content and refusal mutually exclusive.
// An empty side is dropped, if both carry text the refusal wins.
func (a *choiceAccumulator) freeze() error {
	a.frozen = true
	a.publish()

	message := &a.snapshot.Message
	if message.Content == nil || message.Refusal == nil {
		return nil
	}

	switch {
	case *message.Refusal == "":
		message.Refusal = nil
	case *message.Content == "":
		message.Content = nil
	default:
		message.Content = nil
		return fmt.Errorf("%w: choice %d", ErrContentAndRefusal, a.snapshot.Index)
	}
	return nil
}

// finalLogprobs returns a copy of one of the logprob lists, never nil.
func (a *choiceAccumulator) finalLogprobs(list func(*Logprobs) []api.LogProbEntry) []api.LogProbEntry {
	if a.snapshot.Logprobs == nil {
		return []api.LogProbEntry{}
	}
	return orEmpty(cloneEntries(list(a.snapshot.Logprobs)))
}

// current returns a deep copy of the snapshot.
func (a *choiceAccumulator) current() ChoiceSnapshot {
	return a.snapshot.clone()
}

func appendFragment(builder *strings.Builder, fragment string) *strings.Builder {
	if builder == nil {
		builder = &strings.Builder{}
	}
	builder.WriteString(fragment)
	return builder
}

func builderValue(builder *strings.Builder) *string {
	if builder == nil {
		return nil
	}
	value := builder.String()
	return &value
}

func orEmpty(entries []api.LogProbEntry) []api.LogProbEntry {
	if entries == nil {
		return []api.LogProbEntry{}
	}
	return entries
}
