package httpx_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

// attempt is the scripted outcome of one round trip.
// A non-nil err fails the round trip, otherwise a response with status is returned.
type attempt struct {
	status int
	err    error
}

// scriptedTransport plays back one attempt per round trip and records the
// request body of every attempt it receives.
type scriptedTransport struct {
	attempts []attempt
	bodies   []string
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(s.bodies) >= len(s.attempts) {
		return nil, errors.New("scriptedTransport: unexpected attempt")
	}

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
	}
	next := s.attempts[len(s.bodies)]
	s.bodies = append(s.bodies, string(body))

	if next.err != nil {
		return nil, next.err
	}
	return &http.Response{
		StatusCode: next.status,
		Body:       io.NopCloser(strings.NewReader(http.StatusText(next.status))),
		Request:    req,
	}, nil
}

// trackedBody is a response body that remembers being closed.
// With a nil reader, Read blocks until Close, like an idle connection.
type trackedBody struct {
	reader io.Reader
	once   sync.Once
	closed chan struct{}
}

func newTrackedBody(reader io.Reader) *trackedBody {
	return &trackedBody{reader: reader, closed: make(chan struct{})}
}

func (b *trackedBody) Read(p []byte) (int, error) {
	if b.reader == nil {
		<-b.closed
		return 0, io.ErrClosedPipe
	}
	return b.reader.Read(p)
}

func (b *trackedBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func (b *trackedBody) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// failingReader always fails with err.
type failingReader struct {
	err error
}

func (f failingReader) Read([]byte) (int, error) {
	return 0, f.err
}
