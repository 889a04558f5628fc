// Package streams provides generic, pull-based stream iterators.
//
// A Stream wraps a single "produce the next item" closure. Transformations such
// as Map wrap that closure in another closure, so a multi-stage pipeline is
// executed synchronously inside the consumer's goroutine: nothing is produced
// until the consumer asks for it, and no intermediate goroutines or channels are
// created per stage.
//
// # Channel Sources
//
// Data that arrives concurrently (for example, server-sent events read by a
// producer goroutine) enters the pull world through New, which turns a
// read-only channel into a Stream. Every later stage is pulled from the
// consumer's side:
//
//	events := streams.New(eventChan)
//	values := streams.Map(events, func(e Event) string { return e.Value })
//	for {
//		value, ok, err := values.NextContext(ctx)
//		if err != nil || !ok {
//			break
//		}
//		fmt.Println(value)
//	}
package streams

import (
	"context"
)

// Stream represents a lazy, pull-based iterator over a sequence of items of type T.
//
// The zero value of a Stream is not useful and will panic if Next() is called.
// A Stream is not safe for concurrent use.
type Stream[T any] struct {
	// next returns the next item, whether the item is valid, and an error if the
	// context expired before an item became available.
	next func(ctx context.Context) (T, bool, error)
}

// New creates a new Stream from a read-only channel.
//
// The returned Stream produces items until the source channel is closed and
// drained. NextContext calls on it return early if their context is canceled.
func New[T any](sourceChan <-chan T) *Stream[T] {
	return &Stream[T]{
		next: func(ctx context.Context) (T, bool, error) {
			select {
			case <-ctx.Done():
				var zero T
				return zero, false, ctx.Err()
			case val, ok := <-sourceChan:
				return val, ok, nil
			}
		},
	}
}

// FromFunc creates a Stream from a producer function.
//
// The producer must return ok=false once it is exhausted, and must keep doing
// so on every later call.
func FromFunc[T any](next func(ctx context.Context) (T, bool, error)) *Stream[T] {
	return &Stream[T]{next: next}
}

// FromSlice creates a Stream that yields the given items in order.
func FromSlice[T any](items []T) *Stream[T] {
	position := 0
	return &Stream[T]{
		next: func(ctx context.Context) (T, bool, error) {
			var zero T
			if err := ctx.Err(); err != nil {
				return zero, false, err
			}
			if position >= len(items) {
				return zero, false, nil
			}
			position++
			return items[position-1], true, nil
		},
	}
}

// Map returns a new Stream that applies the conversion function `conv` to each
// item from a source Stream.
//
// This is a lazy operation. The conversion function is not called until the
// returned Stream is pulled.
func Map[T, U any](sourceStream *Stream[T], conv func(T) U) *Stream[U] {
	return &Stream[U]{
		next: func(ctx context.Context) (U, bool, error) {
			val, ok, err := sourceStream.NextContext(ctx)
			if err != nil || !ok {
				var zeroU U
				return zeroU, false, err
			}
			return conv(val), true, nil
		},
	}
}

// Next produces the next item from the stream.
//
// It returns the item and a boolean `ok`. The `ok` flag is false once the
// stream is exhausted. Next blocks without any cancellation, use NextContext
// for a cancellable pull.
func (s *Stream[T]) Next() (T, bool) {
	val, ok, _ := s.next(context.Background())
	return val, ok
}

// NextContext is like Next but gives up when the context is done, in which case
// the context's error is returned.
func (s *Stream[T]) NextContext(ctx context.Context) (T, bool, error) {
	return s.next(ctx)
}

// Exhaust pulls every remaining item from the stream.
//
// If the context ends first, the collected items are discarded and the
// context's error is returned.
func (s *Stream[T]) Exhaust(ctx context.Context) ([]T, error) {
	var items []T
	for {
		item, ok, err := s.next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

// All is a more convenient way of looping over the Stream for Go 1.23+
//
//	for item := range stream.All {
//		...
//	}
func (s *Stream[T]) All(yield func(T) bool) {
	for {
		item, ok := s.Next()
		if !ok {
			return
		}
		if !yield(item) {
			return
		}
	}
}
