// Package httpx is the authenticated REST edge of the client. Response
// envelopes vary by endpoint ({data: ...} vs {success, message}) and are
// decoded per-endpoint rather than unified.
package httpx

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

	"mesaclient/internal/session"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	sess    session.Session
	hc      *http.Client
}

func NewClient(baseURL string, sess session.Session, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		sess:    sess,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Session() session.Session { return c.sess }

// StatusError carries the HTTP status alongside the user-displayable message
// extracted from the response envelope.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPut, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	// Token is re-read per request; it may have been refreshed mid-session.
	if token := strings.TrimSpace(c.sess.Token()); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{Status: res.StatusCode, Message: errorMessage(raw, res.Status)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage digs the displayable message out of an error envelope. Both
// {message} and {error} shapes exist across endpoints.
func errorMessage(raw []byte, fallback string) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil {
		if msg := strings.TrimSpace(env.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(env.Error); msg != "" {
			return msg
		}
	}
	if fallback == "" {
		return "request failed"
	}
	return fallback
}

// AsStatusError reports whether err carries a StatusError and unpacks it.
func AsStatusError(err error, target **StatusError) bool {
	return errors.As(err, target)
}

// UserMessage returns the displayable message for an error from this client,
// or a generic fallback for anything else (timeouts, DNS, decode faults).
func UserMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return "Algo salió mal. Inténtalo de nuevo."
}
