package httpx

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shivanshkc/llmstream/pkg/streams"
)

// DoneMarker is the data payload that signals the end of an OpenAI style stream.
const DoneMarker = "[DONE]"

// ServerSentEvent represents a single event sent by the server.
type ServerSentEvent struct {
	// Index is the position of the line in the body the event was read from.
	Index int
	// Value is the data payload, without the "data:" prefix.
	Value string
	// Error is set when reading the body failed. It is always the last event.
	Error error
	// Timestamp is the local time at which the event was read.
	Timestamp time.Time
}

// ReadServerSentEvents reads the given response body assuming it is a stream of Server-Sent events
// and returns a Stream for the caller to consume the events.
//
// It takes ownership of the body and guarantees it will be closed, either once
// the stream ends or once the context is canceled.
func ReadServerSentEvents(ctx context.Context, body io.ReadCloser) *streams.Stream[ServerSentEvent] {
	eventChan := make(chan ServerSentEvent, 100)

	// producerCtx is a local context for managing the producer's lifecycle.
	// When the producer goroutine finishes (for any reason), it calls cancel(),
	// which signals the context watcher goroutine to exit.
	producerCtx, cancel := context.WithCancel(ctx)

	// Closing the body is the only way to unblock a pending read.
	go func() {
		<-producerCtx.Done()
		_ = body.Close()
	}()

	go func() {
		defer close(eventChan)
		defer cancel()

		reader := bufio.NewReader(body)

		for index := 0; ; index++ {
			line, err := reader.ReadString('\n')
			timestamp := time.Now() // Capture timestamp immediately after read.

			// A final line without a trailing newline is still a valid event.
			if err != nil && !(errors.Is(err, io.EOF) && strings.TrimSpace(line) != "") {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				// EOF is a normal end, not an error event.
				if !errors.Is(err, io.EOF) {
					eventChan <- ServerSentEvent{Index: index, Error: err, Timestamp: timestamp}
				}
				return
			}

			value, isData := sanitizeSSE(line)
			switch {
			case !isData, value == "":
				// Comments, blank separators and non-data fields carry no payload.
			case value == DoneMarker:
				return
			default:
				eventChan <- ServerSentEvent{Index: index, Value: value, Timestamp: timestamp}
			}

			if err != nil {
				return
			}
		}
	}()

	return streams.New(eventChan)
}

// sanitizeSSE extracts the data payload from a single SSE line.
//
// Lines without a field name are treated as bare data, to tolerate servers
// that omit the "data:" prefix.
//
// IT MUST NOT BE AN EXPENSIVE OPERATION, otherwise the arrival timestamp of the event won't be correct.
func sanitizeSSE(line string) (string, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "", strings.HasPrefix(line, ":"):
		return "", false
	case strings.HasPrefix(line, "data:"):
		return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
	case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
		return "", false
	default:
		return line, true
	}
}
