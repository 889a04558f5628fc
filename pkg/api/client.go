// Package api contains the wire types of the OpenAI compatible Chat-Completion
// API, the decoder that turns streamed frames into typed chunks, and a small
// HTTP client that opens such streams.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/shivanshkc/llmstream/pkg/httpx"
	"github.com/shivanshkc/llmstream/pkg/streams"
)

// RequestIDHeader carries a client generated id for every request, to correlate client and server logs.
const RequestIDHeader = "X-Request-Id"

// Client represents an LLM REST API client.
type Client struct {
	baseURL     string
	header      http.Header
	retryPolicy httpx.RetryPolicy
	httpClient  *httpx.RetryClient
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHeader adds a header to every request, for example an Authorization header.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithRetryPolicy overrides httpx.DefaultRetryPolicy.
func WithRetryPolicy(policy httpx.RetryPolicy) ClientOption {
	return func(c *Client) { c.retryPolicy = policy }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = &httpx.RetryClient{Client: client} }
}

// NewClient returns a new Client instance.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:     baseURL,
		header:      http.Header{},
		retryPolicy: httpx.DefaultRetryPolicy,
		httpClient:  &httpx.RetryClient{Client: &http.Client{}},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ChatCompletionStream is a wrapper for the /chat/completions API with stream enabled.
//
// It returns the raw frames of the response. They are usually handed over to
// chatstream.New, which decodes and accumulates them.
func (c *Client) ChatCompletionStream(
	ctx context.Context, request ChatCompletionRequest,
) (*streams.Stream[httpx.ServerSentEvent], error) {
	endpoint, err := url.JoinPath(c.baseURL, "v1/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to form API endpoint URL: %w", err)
	}

	// Server-Sent Events are enabled by "stream": true.
	request.Stream = true
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, values := range c.header {
		for _, value := range values {
			httpRequest.Header.Add(key, value)
		}
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "text/event-stream")
	httpRequest.Header.Set(RequestIDHeader, uuid.NewString())
	// Make the request retryable.
	httpRequest.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	response, err := c.httpClient.DoRetry(httpRequest, c.retryPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}

	// In case of error, return the status code with the body.
	if response.StatusCode != http.StatusOK {
		defer func() { _ = response.Body.Close() }()
		responseBody, err := io.ReadAll(response.Body)
		if err != nil {
			responseBody = []byte("failed to read response body: " + err.Error())
		}
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", response.StatusCode, string(responseBody))
	}

	return httpx.ReadServerSentEvents(ctx, response.Body), nil
}
