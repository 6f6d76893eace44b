// Package client talks to the qbtusul API on behalf of a test taker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
	"github.com/Batpurev0828/qbtusul/internal/attempt"
	"github.com/Batpurev0828/qbtusul/internal/auth"
	"github.com/Batpurev0828/qbtusul/internal/exam"
	"github.com/Batpurev0828/qbtusul/internal/session"
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Message)
}

// Retryable is false only when the resource is gone. Every other answer,
// an expired login included, can be fixed and resent.
func (e *StatusError) Retryable() bool {
	return e.Status != http.StatusNotFound
}

func (e *StatusError) Kind() apierr.Kind {
	switch e.Status {
	case http.StatusNotFound:
		return apierr.NotFound
	case http.StatusUnauthorized:
		return apierr.Unauthorized
	case http.StatusForbidden:
		return apierr.Forbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apierr.Invalid
	case http.StatusConflict:
		return apierr.Conflict
	case http.StatusTooManyRequests:
		return apierr.TooMany
	default:
		return apierr.Internal
	}
}

// TransportError is a request that never got an HTTP answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string   { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Retryable() bool { return true }

// IsRetryable reports whether resending the same request may succeed.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

type Client struct {
	HTTP    *http.Client
	BaseURL string

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (auth.User, error) {
	var out struct {
		User  *auth.User `json:"user"`
		Token string     `json:"token"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", in, &out); err != nil {
		return auth.User{}, err
	}
	if out.User == nil || out.Token == "" {
		return auth.User{}, errors.New("login: malformed response")
	}
	c.SetToken(out.Token)
	return *out.User, nil
}

// GetTest fetches a test as the current user sees it; for a student that is
// the answer-free view.
func (c *Client) GetTest(ctx context.Context, id string) (exam.Test, error) {
	var t exam.Test
	err := c.do(ctx, "get test", http.MethodGet, "/api/tests/"+url.PathEscape(id), nil, &t)
	return t, err
}

func (c *Client) ListTests(ctx context.Context) ([]exam.Summary, error) {
	var out []exam.Summary
	err := c.do(ctx, "list tests", http.MethodGet, "/api/tests", nil, &out)
	return out, err
}

// Submit sends a graded-on-server submission and returns the attempt id.
// It satisfies session.Submitter.
func (c *Client) Submit(ctx context.Context, sub session.Submission) (string, error) {
	var out struct {
		AttemptID string `json:"attemptId"`
	}
	if err := c.do(ctx, "submit attempt", http.MethodPost, "/api/attempts", sub, &out); err != nil {
		return "", err
	}
	if out.AttemptID == "" {
		return "", errors.New("submit attempt: malformed response")
	}
	return out.AttemptID, nil
}

func (c *Client) GetAttempt(ctx context.Context, id string) (attempt.Record, error) {
	var rec attempt.Record
	err := c.do(ctx, "get attempt", http.MethodGet, "/api/attempts/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

var _ session.Submitter = (*Client)(nil)

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusErr(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusErr(op string, resp *http.Response) error {
	var env struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(raw, &env) != nil || env.Error == "" {
		env.Error = strings.TrimSpace(string(raw))
	}
	return &StatusError{Op: op, Status: resp.StatusCode, Message: env.Error}
}
