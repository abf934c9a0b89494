// Package api is the HTTP client for the Jarvis backend.
package api

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

	"github.com/iksnae/jarvis-console/internal"
)

// DefaultBaseURL is where the backend listens by default
const DefaultBaseURL = "http://127.0.0.1:8000"

// DefaultTimeout bounds a single request
const DefaultTimeout = 30 * time.Second

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errorBody covers the error shapes the backend uses: FastAPI's {"detail"},
// the command handler's {"reply"}, and 200 responses carrying {"error"}.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Reply  json.RawMessage `json:"reply"`
	Error  string          `json:"error"`
}

func (b errorBody) detail() string {
	if b.Error != "" {
		return b.Error
	}
	return rawText(b.Detail)
}

// rawText renders a "detail" value: a string as is, a validation error list as
// its joined messages.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON sends in (when non-nil) as JSON and decodes the response into out
func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, token, body, contentType)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	op := req.Method + " " + req.URL.Path
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		internal.LogDebug("%s failed after %s: %v", op, time.Since(start), err)
		return &internal.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &internal.NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	internal.LogDebug("%s -> %d (%s)", op, resp.StatusCode, time.Since(start))

	var eb errorBody
	isObject := len(bytes.TrimSpace(data)) > 0 && bytes.TrimSpace(data)[0] == '{'
	if isObject {
		_ = json.Unmarshal(data, &eb)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		be := &internal.BackendError{Op: op, Status: resp.StatusCode}
		if isObject {
			be.Detail = eb.detail()
			be.Reply = rawText(eb.Reply)
		}
		return be
	}

	// Some endpoints report failures as 200 {"error": "..."}
	if eb.Error != "" {
		return &internal.BackendError{Op: op, Status: resp.StatusCode, Detail: eb.Error}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &internal.BackendError{Op: op, Status: resp.StatusCode, Detail: fmt.Sprintf("invalid response: %v", err)}
	}
	return nil
}

func requireToken(token string) error {
	if token == "" {
		return internal.ErrNotAuthenticated
	}
	return nil
}

// StatusResponse is the body of GET /
type StatusResponse struct {
	Status string `json:"status"`
}

// Ping checks that the backend answers on its root endpoint
func (c *Client) Ping(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsUnauthorized reports whether err is a 401 from the backend
func IsUnauthorized(err error) bool {
	var be *internal.BackendError
	return errors.As(err, &be) && be.Status == http.StatusUnauthorized
}
