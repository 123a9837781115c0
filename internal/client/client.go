// Package client talks to a running loopwise HTTP service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/loopwise/internal/domain/model"
)

// Default client configuration constants.
const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// ErrUnexpectedStatus is returned for responses the client cannot map to a
// domain error.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client submits analyses and polls for their results.
type Client struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithPollInterval sets how often Wait checks a job.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the service at baseURL, e.g. http://localhost:9080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Submit posts req to /analyses.
func (c *Client) Submit(ctx context.Context, req model.Request) (model.Submission, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.Submission{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyses", bytes.NewReader(body))
	if err != nil {
		return model.Submission{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var sub model.Submission
	if err := c.do(httpReq, &sub, http.StatusAccepted, http.StatusOK); err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

// Job fetches the current state of a job.
func (c *Client) Job(ctx context.Context, id string) (model.Job, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/analyses/"+id, http.NoBody)
	if err != nil {
		return model.Job{}, fmt.Errorf("failed to create request: %w", err)
	}
	var job model.Job
	if err := c.do(httpReq, &job, http.StatusOK); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// Wait polls a job until it is terminal or ctx is done.
func (c *Client) Wait(ctx context.Context, id string) (model.Job, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return model.Job{}, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, fmt.Errorf("wait for %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, out any, accept ...int) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	for _, code := range accept {
		if resp.StatusCode == code {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
	}
	return statusError(resp.StatusCode, data)
}

// statusError maps an error response onto the shared domain errors.
func statusError(status int, data []byte) error {
	var body errorBody
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		msg = body.Message
	}
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", model.ErrInvalidRequest, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", model.ErrBackpressure, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, msg)
	default:
		return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, status, msg)
	}
}
