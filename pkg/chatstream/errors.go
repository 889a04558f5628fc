package chatstream

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyStream is returned by FinalChatCompletion when the source ended without a single chunk.
	ErrEmptyStream = errors.New("stream ended without producing any chunks")

	// ErrUnexpectedChunkAfterFinish marks a delta for a choice that already has a finish reason.
	// It is never terminal, see Stream.Violations.
	ErrUnexpectedChunkAfterFinish = errors.New("unexpected chunk after finish")

	// ErrContentAndRefusal marks a choice that finished with both content and refusal text.
	// It is never terminal, see Stream.Violations.
	ErrContentAndRefusal = errors.New("choice has both content and refusal")
)

// ChunkAfterFinishError is recorded when a chunk carries a delta for an already finished choice.
type ChunkAfterFinishError struct {
	// ChoiceIndex is the index of the finished choice.
	ChoiceIndex int
	// ChunkIndex is the frame index of the offending chunk.
	ChunkIndex int
}

func (e *ChunkAfterFinishError) Error() string {
	return fmt.Sprintf("%v: choice %d, frame %d", ErrUnexpectedChunkAfterFinish, e.ChoiceIndex, e.ChunkIndex)
}

func (e *ChunkAfterFinishError) Unwrap() error { return ErrUnexpectedChunkAfterFinish }

// ValidationError is returned by Schema implementations when a value does not match the schema.
// Structured output failures are soft: the parsed value is left nil and nothing is raised.
type ValidationError struct {
	Schema   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("value does not match schema %q: %s", e.Schema, strings.Join(e.Problems, "; "))
}
