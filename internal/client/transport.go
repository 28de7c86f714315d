// Package client is a Go consumer of the clinic HTTP API. Stores cache the
// entities they have seen and apply server responses in per-entity order.
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

	"github.com/clinicops/clinic/internal/platform/apperr"
)

// DefaultTimeout bounds every request unless WithTimeout overrides it.
const DefaultTimeout = 30 * time.Second

// HeaderFunc decorates outgoing requests, typically with an Authorization or
// anti-forgery header.
type HeaderFunc func(h http.Header)

type Transport struct {
	baseURL string
	http    *http.Client
	header  HeaderFunc
}

type Option func(*Transport)

func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.http.Timeout = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.http = c }
}

func WithHeader(fn HeaderFunc) Option {
	return func(t *Transport) { t.header = fn }
}

func NewTransport(baseURL string, opts ...Option) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type wireEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Field   string          `json:"field"`
}

// Do sends body as JSON and decodes the envelope's data into out. Every
// failure is a *apperr.RemoteError; envelope codes the server sends are
// available through errors.As on the typed errors.
func (t *Transport) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.header != nil {
		t.header(req.Header)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return &apperr.RemoteError{Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.RemoteError{Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env wireEnvelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= http.StatusBadRequest || decodeErr != nil || !env.Success {
		return remoteFailure(resp.StatusCode, env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &apperr.RemoteError{Status: resp.StatusCode, Message: "unexpected response shape", Err: err}
	}
	return nil
}

func remoteFailure(status int, env wireEnvelope) error {
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	remote := apperr.FromCode(env.Code, msg, status)
	var ve *apperr.ValidationError
	if errors.As(remote, &ve) {
		ve.Field = env.Field
	}
	return remote
}

func transportMessage(err error) string {
	var timeout interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
		return "request timed out"
	}
	return err.Error()
}
