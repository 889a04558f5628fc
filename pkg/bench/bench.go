// Package bench measures the latency of streamed chat completions.
package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/chatstream"
)

// StreamFunc starts one streamed completion. It is called once per benchmarked request.
type StreamFunc func(ctx context.Context) (*chatstream.Stream, error)

// StreamBenchmarkResults holds the latency metrics of a benchmark run.
type StreamBenchmarkResults struct {
	// TTFT is the time to the first content token.
	TTFT Metrics
	// TBT is the time between consecutive content tokens.
	TBT Metrics
	// TT is the time until the final completion is assembled.
	TT Metrics
}

// BenchmarkStream runs requestCount streams, at most concurrency at a time.
//
// The first failing stream stops the whole benchmark and its error is returned.
func BenchmarkStream(ctx context.Context, requestCount, concurrency int, sFunc StreamFunc) (StreamBenchmarkResults, error) {
	// Context for managing local goroutines.
	localCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered for every request, so workers never block on it.
	timingsChan := make(chan timings, requestCount)

	// This channel makes sure only `concurrency` requests execute concurrently at a given time.
	semaphore := make(chan struct{}, concurrency)

	// Only the first fatal error is kept.
	errFatalChan := make(chan error, 1)

	go func() {
		for i := 0; i < requestCount; i++ {
			select {
			// Either a fatal error occurred or the parent context was canceled.
			case <-localCtx.Done():
				return
			case semaphore <- struct{}{}:
			}

			go func(i int) {
				defer func() { <-semaphore }()

				result, err := benchmarkOneStream(localCtx, sFunc)
				if err != nil {
					select {
					case errFatalChan <- fmt.Errorf("request %d failed: %w", i, err):
					default:
					}
					return
				}
				timingsChan <- result
			}(i)
		}
	}()

	timingsArr := make(timingsArray, 0, requestCount)
	for i := range requestCount {
		select {
		case <-ctx.Done():
			return StreamBenchmarkResults{}, ctx.Err()
		case err := <-errFatalChan:
			return StreamBenchmarkResults{}, err
		case result := <-timingsChan:
			fmt.Printf("[%d/%d] requests complete.\n", i+1, requestCount)
			timingsArr = append(timingsArr, result)
		}
	}

	return StreamBenchmarkResults{
		TTFT: durations(timingsArr.TTFTs()).Metrics(),
		TBT:  durations(timingsArr.TBTs()).Metrics(),
		TT:   durations(timingsArr.TTs()).Metrics(),
	}, nil
}

// benchmarkOneStream runs a stream to completion and records the arrival time
// of every chunk that carried content.
func benchmarkOneStream(ctx context.Context, sFunc StreamFunc) (timings, error) {
	start := time.Now()

	stream, err := sFunc(ctx)
	if err != nil {
		return timings{}, err
	}

	// A chunk event always precedes the deltas derived from it.
	var current api.ChatCompletionChunk
	chatstream.On(stream, func(ev chatstream.ChunkEvent) error {
		current = ev.Chunk
		return nil
	})

	var tokens []time.Time
	lastIndex := -1
	chatstream.On(stream, func(chatstream.ContentDeltaEvent) error {
		// Several choices of the same chunk count as one arrival.
		if current.Index() != lastIndex {
			lastIndex = current.Index()
			tokens = append(tokens, current.Timestamp())
		}
		return nil
	})

	if _, err := stream.FinalChatCompletion(ctx); err != nil {
		return timings{}, err
	}

	return timings{Start: start, End: time.Now(), Tokens: tokens}, nil
}
