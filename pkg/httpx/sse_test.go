package httpx_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanshkc/llmstream/pkg/httpx"
)

// drainStream collects all events until the stream ends. The timeout keeps a
// broken producer from hanging the test.
func drainStream(t *testing.T, body io.ReadCloser, ctx context.Context) []httpx.ServerSentEvent {
	stream := httpx.ReadServerSentEvents(ctx, body)

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := stream.Exhaust(drainCtx)
	require.NoError(t, err, "Test timed out waiting for the event stream to end.")
	return events
}

// TestReadServerSentEvents uses a table-driven approach to test various
// scenarios for the ReadServerSentEvents function.
func TestReadServerSentEvents(t *testing.T) {
	type testCase struct {
		name          string
		body          *trackedBody
		ctx           context.Context
		expectedItems []httpx.ServerSentEvent
	}

	// --- Test Cases ---
	testCases := []testCase{
		{
			name: "Successful Stream with [DONE] Marker",
			body: newTrackedBody(strings.NewReader("data: hello\ndata: world\ndata: [DONE]\ndata: ignored\n")),
			ctx:  context.Background(),
			expectedItems: []httpx.ServerSentEvent{
				{Index: 0, Value: "hello"},
				{Index: 1, Value: "world"},
			},
		},
		{
			name: "Stream Terminating with EOF",
			body: newTrackedBody(strings.NewReader("data: first\n\ndata: second\n\n")),
			ctx:  context.Background(),
			expectedItems: []httpx.ServerSentEvent{
				{Index: 0, Value: "first"},
				{Index: 2, Value: "second"},
			},
		},
		{
			name: "Last Line Without Newline",
			body: newTrackedBody(strings.NewReader("data: first\ndata: {\"last\":true}")),
			ctx:  context.Background(),
			expectedItems: []httpx.ServerSentEvent{
				{Index: 0, Value: "first"},
				{Index: 1, Value: `{"last":true}`},
			},
		},
		{
			name: "Comments, Fields and Blank Lines Are Skipped",
			body: newTrackedBody(strings.NewReader(": a comment\nevent: message\ndata: message1\n  data:  message2 \n\ndata:\ndata: [DONE]")),
			ctx:  context.Background(),
			expectedItems: []httpx.ServerSentEvent{
				{Index: 2, Value: "message1"},
				{Index: 3, Value: "message2"},
			},
		},
		{
			name: "Context Cancellation on Blocking Read",
			body: newTrackedBody(nil),
			ctx: func() context.Context {
				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				_ = cancel // The timeout will trigger the cancellation.
				return ctx
			}(),
			expectedItems: []httpx.ServerSentEvent{
				{Index: 0, Error: context.DeadlineExceeded},
			},
		},
		{
			name: "Read Error Mid-Stream",
			body: newTrackedBody(io.MultiReader(
				strings.NewReader("data: first event\n"),
				failingReader{err: errors.New("simulated network error")},
			)),
			ctx: context.Background(),
			expectedItems: []httpx.ServerSentEvent{
				{Index: 0, Value: "first event"},
				{Index: 1, Error: errors.New("simulated network error")},
			},
		},
	}

	// --- Test Runner ---
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			events := drainStream(t, tc.body, tc.ctx)

			require.Equal(t, len(tc.expectedItems), len(events), "Number of received events should match expected.")

			for i, expected := range tc.expectedItems {
				actual := events[i]
				assert.Equal(t, expected.Index, actual.Index, "Event index should match.")
				assert.Equal(t, expected.Value, actual.Value, "Event value should match.")
				assert.False(t, actual.Timestamp.IsZero(), "Event timestamp should be recorded.")

				if expected.Error == nil {
					assert.NoError(t, actual.Error)
					continue
				}
				require.Error(t, actual.Error)
				if errors.Is(expected.Error, context.DeadlineExceeded) {
					assert.ErrorIs(t, actual.Error, expected.Error)
				} else {
					assert.Contains(t, actual.Error.Error(), expected.Error.Error())
				}
			}

			// The function owns the body and must always close it.
			assert.Eventually(t, tc.body.isClosed, time.Second, 5*time.Millisecond, "The response body should have been closed.")
		})
	}
}
