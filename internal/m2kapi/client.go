// Package m2kapi talks to the Move2Kube REST API.
package m2kapi

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
	"time"

	"m2kqa/internal/qa"
)

const (
	apiPrefix       = "api/v1"
	defaultTimeout  = 30 * time.Second
	maxErrorBody    = 4 * 1024
	maxResponseSize = 1 << 20 // JSON bodies only; archives are streamed
)

// Client is a Move2Kube API client. It implements qa.Backend.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// New returns a Client for the server at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL %q must be http or https", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "m2kqa"
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		token:     opts.Token,
		userAgent: ua,
		http:      hc,
	}, nil
}

// StatusError is returned for non-success HTTP responses. It unwraps to the
// qa sentinel matching the status so sessions can classify it.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return qa.ErrUnauthorized
	case http.StatusNoContent:
		return qa.ErrNotReady
	}
	return qa.ErrRejected
}

func (c *Client) endpoint(parts ...string) (string, error) {
	escaped := make([]string, 0, len(parts)+1)
	escaped = append(escaped, apiPrefix)
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return url.JoinPath(c.baseURL, escaped...)
}

func runPath(run qa.RunID) []string {
	return []string{"workspaces", run.WorkspaceID, "projects", run.ProjectID, "outputs", run.OutputID}
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and returns the response when its status is one of ok.
// Any other status is turned into a *StatusError and the body is closed.
func (c *Client) do(req *http.Request, ok ...int) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			return resp, nil
		}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &StatusError{
		Method:     req.Method,
		Path:       req.URL.Path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// doJSON sends req, checks the status, and decodes the body into v when v is
// not nil.
func (c *Client) doJSON(req *http.Request, v any, ok ...int) (int, error) {
	resp, err := c.do(req, ok...)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if v == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return resp.StatusCode, nil
}
