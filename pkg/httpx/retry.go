package httpx

import (
	"fmt"
	"net/http"
	"slices"
	"time"
)

// RetryPolicy controls how RetryClient repeats a request.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Delay is the wait between two attempts.
	Delay time.Duration
	// RetryStatuses lists response status codes that are treated like a
	// transport error. The response body of such an attempt is discarded.
	RetryStatuses []int
}

// DefaultRetryPolicy is used by api.Client unless configured otherwise.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   20,
	Delay:         50 * time.Millisecond,
	RetryStatuses: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable},
}

// RetryClient is an extension of the standard HTTP client.
// It provides a DoRetry method that keeps executing the given request until it succeeds.
// Here, success means the `Do` method does not return an error and the status
// code is not listed in RetryPolicy.RetryStatuses.
type RetryClient struct {
	*http.Client
}

// DoRetry internally calls the `Do` method of the standard HTTP client on the given request.
// Failed attempts are repeated as per the given policy.
//
// On success, the caller owns the response body. If the last attempt returned a
// retryable status, that response is returned as is, so the caller can report it.
func (rc *RetryClient) DoRetry(req *http.Request, policy RetryPolicy) (*http.Response, error) {
	// Request must be rewindable for retries.
	if req.GetBody == nil {
		return nil, fmt.Errorf("GetBody function must be set on the request for retrying")
	}
	if policy.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be greater than 0, got: %d", policy.MaxAttempts)
	}

	// This will hold the error that will be returned if all attempts fail.
	var errFinal error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		reqClone := req.Clone(req.Context())
		reqClone.RequestURI = ""

		bodyReader, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("error in the GetBody call: %w", err)
		}
		reqClone.Body = bodyReader

		response, err := rc.Do(reqClone)
		switch {
		case err != nil:
			errFinal = err
		case slices.Contains(policy.RetryStatuses, response.StatusCode) && attempt < policy.MaxAttempts:
			_ = response.Body.Close()
			errFinal = fmt.Errorf("retryable status code: %d", response.StatusCode)
		default:
			return response, nil
		}

		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(policy.Delay)
		select {
		case <-reqClone.Context().Done():
			timer.Stop()
			return nil, reqClone.Context().Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("all %d attempts failed, last error: %w", policy.MaxAttempts, errFinal)
}
