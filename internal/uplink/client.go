// Package uplink posts one flex reading to the ingest endpoint.
package uplink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"kneeflexiq/internal/types"
)

// Negative status codes stand in for transport failures, mirroring the codes
// embedded HTTP clients report when no response was received.
const (
	StatusConnectionFailed = -1
	StatusReadTimeout      = -11
)

// maxBodyBytes bounds how much of a 200 response body is read.
const maxBodyBytes = 64 << 10

// Result is the outcome of one POST. Body is only populated for 200.
type Result struct {
	StatusCode int
	Body       string
	Err        error
}

// OK reports whether the server answered 200.
func (r Result) OK() bool { return r.StatusCode == http.StatusOK }

type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a client posting to url. timeout bounds the whole
// exchange; there is no retry.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Post sends r synchronously and never returns an error value: every failure
// is folded into Result.StatusCode with the cause kept in Result.Err.
func (c *Client) Post(ctx context.Context, r types.FlexReading) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(r.Payload()))
	if err != nil {
		return Result{StatusCode: StatusConnectionFailed, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{StatusCode: transportStatus(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Result{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{StatusCode: transportStatus(err), Err: fmt.Errorf("read body: %w", err)}
	}
	return Result{StatusCode: resp.StatusCode, Body: string(body)}
}

func transportStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusReadTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusReadTimeout
	}
	return StatusConnectionFailed
}
