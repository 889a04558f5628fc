package api

import (
	"encoding/json"
	"time"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons reported by the API.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)

// ChatCompletionChunk represents a single event from the Chat-Completion API response stream.
type ChatCompletionChunk struct {
	Choices []ChunkChoice `json:"choices"`

	Created           int64  `json:"created"`
	ID                string `json:"id"`
	Model             string `json:"model"`
	Object            string `json:"object"`
	ServiceTier       string `json:"service_tier,omitempty"`
	SystemFingerprint string `json:"system_fingerprint,omitempty"`

	// Usage is only present on the last chunk, and only if it was requested.
	Usage *Usage `json:"usage,omitempty"`

	// index can be used to process chunks in the correct order.
	index int
	// timestamp is the local timestamp of chunk reception.
	// It is not received from the API.
	timestamp time.Time
}

func (c ChatCompletionChunk) Index() int           { return c.index }
func (c ChatCompletionChunk) Timestamp() time.Time { return c.timestamp }

// ChunkChoice is the partial update of one choice within a chunk.
type ChunkChoice struct {
	Delta Delta `json:"delta"`

	// FinishReason is nil until the final chunk of the choice.
	FinishReason *string         `json:"finish_reason"`
	Index        int             `json:"index"`
	Logprobs     *ChoiceLogprobs `json:"logprobs,omitempty"`
}

// Delta is the incremental payload of a choice.
// Content and Refusal are pointers so that an empty fragment can be told apart from an absent one.
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	Refusal   *string         `json:"refusal,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
	Audio     *AudioDelta     `json:"audio,omitempty"`
}

// ToolCallDelta is a fragment of a tool call. Only the first fragment of a call
// carries its ID and function name, later ones carry argument fragments.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionDelta `json:"function"`
}

type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// AudioDelta is a fragment of an audio response.
type AudioDelta struct {
	ID string `json:"id,omitempty"`
	// Data is a fragment of the base64 encoded audio.
	Data       string `json:"data,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	// ExpiresAt is a unix timestamp, usually sent with the last audio fragment.
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

// ChoiceLogprobs holds the log probabilities of the tokens carried by a delta.
type ChoiceLogprobs struct {
	Content []LogProbEntry `json:"content"`
	Refusal []LogProbEntry `json:"refusal"`
}

// LogProbEntry is the log probability information of a single token.
type LogProbEntry struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
	// Bytes is the UTF-8 representation of the token, nil if it has none.
	Bytes       []int        `json:"bytes"`
	TopLogprobs []TopLogProb `json:"top_logprobs"`
}

// TopLogProb is one of the most likely alternatives of a token.
type TopLogProb struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
	Bytes   []int   `json:"bytes"`
}

// Usage contains token usage statistics for a completion request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatMessage represents a single message in the LLM chat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of a streaming /chat/completions call.
type ChatCompletionRequest struct {
	Model         string         `json:"model"`
	Messages      []ChatMessage  `json:"messages"`
	Stream        bool           `json:"stream"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`

	Logprobs    bool `json:"logprobs,omitempty"`
	TopLogprobs *int `json:"top_logprobs,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Modalities     []string        `json:"modalities,omitempty"`
	Audio          *AudioOptions   `json:"audio,omitempty"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ResponseFormat asks the model for structured output.
type ResponseFormat struct {
	Type       string            `json:"type"` // "text", "json_object" or "json_schema"
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

type JSONSchemaFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

// AudioOptions configures audio output, used together with the "audio" modality.
type AudioOptions struct {
	Voice  string `json:"voice"`
	Format string `json:"format"`
}
