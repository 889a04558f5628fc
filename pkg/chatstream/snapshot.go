package chatstream

import (
	"slices"

	"github.com/shivanshkc/llmstream/pkg/api"
)

// FinalCompletion is the chat completion assembled from a whole stream.
type FinalCompletion struct {
	ID                string           `json:"id"`
	Object            string           `json:"object"`
	Created           int64            `json:"created"`
	Model             string           `json:"model"`
	ServiceTier       string           `json:"service_tier,omitempty"`
	SystemFingerprint string           `json:"system_fingerprint,omitempty"`
	Choices           []ChoiceSnapshot `json:"choices"`
	Usage             *api.Usage       `json:"usage,omitempty"`
}

// ChoiceSnapshot is the accumulated state of one choice.
type ChoiceSnapshot struct {
	Index int `json:"index"`
	// FinishReason stays nil until the choice finishes.
	FinishReason *string `json:"finish_reason"`
	Message      Message `json:"message"`
	// Logprobs is nil unless the server sent logprobs for this choice.
	Logprobs *Logprobs `json:"logprobs"`
}

// Message is the accumulated assistant message of a choice.
type Message struct {
	Role string `json:"role"`
	// Content and Refusal are never both set on a finished choice.
	Content *string `json:"content"`
	Refusal *string `json:"refusal"`
	// ToolCalls is never nil.
	ToolCalls []ToolCall `json:"tool_calls"`
	Audio     *Audio     `json:"audio,omitempty"`
	// Parsed is the structured output decoded from Content, see Schema.
	Parsed any `json:"parsed"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Audio is the accumulated audio output of a choice.
type Audio struct {
	ID string `json:"id"`
	// Data is the base64 encoded audio, concatenated from all fragments.
	Data       string `json:"data"`
	Transcript string `json:"transcript"`
	ExpiresAt  *int64 `json:"expires_at"`
}

// Logprobs holds the token log probabilities of a choice, in emission order.
// Each list is nil until the server sends it.
type Logprobs struct {
	Content []api.LogProbEntry `json:"content"`
	Refusal []api.LogProbEntry `json:"refusal"`
}

// clone returns a deep copy that shares nothing mutable with the receiver.
func (c ChoiceSnapshot) clone() ChoiceSnapshot {
	out := c
	out.FinishReason = clonePtr(c.FinishReason)
	out.Message = c.Message.clone()
	if c.Logprobs != nil {
		out.Logprobs = &Logprobs{
			Content: cloneEntries(c.Logprobs.Content),
			Refusal: cloneEntries(c.Logprobs.Refusal),
		}
	}
	return out
}

func (m Message) clone() Message {
	out := m
	out.Content = clonePtr(m.Content)
	out.Refusal = clonePtr(m.Refusal)
	out.ToolCalls = append(make([]ToolCall, 0, len(m.ToolCalls)), m.ToolCalls...)
	if m.Audio != nil {
		audio := *m.Audio
		audio.ExpiresAt = clonePtr(m.Audio.ExpiresAt)
		out.Audio = &audio
	}
	return out
}

func clonePtr[T any](value *T) *T {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

// cloneEntries keeps the nil/empty distinction of the list.
func cloneEntries(entries []api.LogProbEntry) []api.LogProbEntry {
	if entries == nil {
		return nil
	}
	out := make([]api.LogProbEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		out[i].Bytes = slices.Clone(entry.Bytes)
		out[i].TopLogprobs = slices.Clone(entry.TopLogprobs)
		for j, top := range out[i].TopLogprobs {
			out[i].TopLogprobs[j].Bytes = slices.Clone(top.Bytes)
		}
	}
	return out
}
