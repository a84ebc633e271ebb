package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumipallolabs/facetmap/internal/logging"
)

// DefaultEndpoint is the public search service base URL
const DefaultEndpoint = "https://search.api.globus.org"

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("search: unexpected status %d: %s", e.Code, e.Body)
}

// RetryableError marks a failure worth another attempt
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Client posts queries to a search index over HTTP
type Client struct {
	Endpoint string
	Index    string
	Token    string

	HTTP     *http.Client
	Attempts int
	Backoff  time.Duration
}

// NewClient creates a client for the given index
func NewClient(endpoint, index, token string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Index:    index,
		Token:    strings.TrimSpace(token),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Attempts: 3,
		Backoff:  500 * time.Millisecond,
	}
}

// URL returns the search endpoint for the configured index
func (c *Client) URL() string {
	return fmt.Sprintf("%s/v1/index/%s/search", c.Endpoint, c.Index)
}

// Query implements Querier
func (c *Client) Query(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	var resp Response
	err = retry(ctx, c.Attempts, c.Backoff, func() error {
		r, err := c.post(ctx, payload)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	id := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", id)
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	httpResp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Response{}, &RetryableError{Err: err}
		}
		return Response{}, fmt.Errorf("post %s: %w", c.URL(), err)
	}
	defer httpResp.Body.Close()

	logging.Debug.Debugf("[Search] %s %d in %s", id, httpResp.StatusCode, time.Since(start).Round(time.Millisecond))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		statusErr := &StatusError{Code: httpResp.StatusCode, Body: strings.TrimSpace(string(body))}
		if httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests {
			return Response{}, &RetryableError{Err: statusErr}
		}
		return Response{}, statusErr
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// retry runs fn up to attempts times, doubling delay after each retryable failure
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.As(err, new(*RetryableError)) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

var _ Querier = (*Client)(nil)
