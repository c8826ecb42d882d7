// Package backend is the HTTP client for the NexusEdu exam backend.
// It is the only component that talks upstream; transport and status
// failures are mapped onto the agent's error taxonomy here so callers
// never inspect HTTP details.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexusedu/exam-agent/internal/model"
)

// Sentinel errors for callers to match with errors.Is.
var (
	// ErrNotFound means the exam code is unknown to the backend.
	ErrNotFound = errors.New("exam not found")
	// ErrUnauthorized means the bearer token was rejected.
	ErrUnauthorized = errors.New("token rejected by backend")
	// ErrUnavailable means the backend could not be reached at all.
	ErrUnavailable = errors.New("backend unreachable")
	// ErrServer means the backend answered with a 5xx status.
	ErrServer = errors.New("backend server error")
)

// TokenSource supplies the student bearer token for upstream calls.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the NexusEdu exam backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// New creates a backend client. baseURL is the API root, e.g.
// "https://nexusedu.example.com/api/v1".
func New(baseURL string, timeout time.Duration, tokens TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log.With().Str("component", "backend_client").Logger(),
	}
}

// ExamMode reports whether the exam behind code is currently open.
// A 404 maps to ErrNotFound.
func (c *Client) ExamMode(ctx context.Context, code string) (bool, error) {
	var out model.ExamModeResponse
	if err := c.do(ctx, http.MethodGet, "/exam-mode/"+code, nil, &out); err != nil {
		return false, err
	}
	return out.ExamMode, nil
}

// StartExam requests the exam payload for code.
func (c *Client) StartExam(ctx context.Context, code string) (*model.ExamPayload, error) {
	body := map[string]string{"code": code}
	var out model.ExamPayload
	if err := c.do(ctx, http.MethodPost, "/exam/start", body, &out); err != nil {
		return nil, err
	}
	if out.ExamID == "" || len(out.Questions) == 0 {
		return nil, fmt.Errorf("%w: empty exam payload", ErrServer)
	}
	return &out, nil
}

// SubmitExam delivers a prebuilt submission body. The body is raw JSON so a
// retry of a stored pending submission re-sends exactly the original bytes.
func (c *Client) SubmitExam(ctx context.Context, body json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/exam/submit", body, nil)
}

// MyResults lists the student's prior attempts.
func (c *Client) MyResults(ctx context.Context) ([]model.Result, error) {
	var out []model.Result
	if err := c.do(ctx, http.MethodGet, "/my-results", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping probes backend reachability. Used by the reconciler to detect the
// offline to online transition.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// do performs one request with bearer auth and decodes the response into out
// (if non-nil). Transport errors map to ErrUnavailable, statuses to the
// sentinel errors above.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reqBody *bytes.Reader
	switch v := in.(type) {
	case nil:
		reqBody = bytes.NewReader(nil)
	case json.RawMessage:
		reqBody = bytes.NewReader(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		// Distinguish caller cancellation from a dead network.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrServer, res.Status)
	case res.StatusCode >= 400:
		return fmt.Errorf("%w: unexpected status %s", ErrServer, res.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
