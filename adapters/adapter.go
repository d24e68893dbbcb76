// Package adapters normalizes external generation services behind a
// uniform result contract. Every vendor call resolves to a payload or an
// *Error carrying one of a small set of kinds; vendor vocabulary never
// leaks past this package.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"time"
)

// ErrorKind classifies an adapter failure for the orchestrator's
// retry/fallback policy.
type ErrorKind string

const (
	KindNone ErrorKind = "none"
	// transient: worth retrying in place (timeouts, 5xx, rate limits)
	KindTransient ErrorKind = "transient"
	// rejected: the vendor refused the request structurally; terminal
	KindRejected ErrorKind = "rejected"
	// unavailable: the service cannot be reached; the stage may fall
	// back to a synthetic artifact instead of failing
	KindUnavailable ErrorKind = "unavailable"
	// invalid_input: the request itself is malformed; terminal
	KindInvalidInput ErrorKind = "invalid_input"
)

// Error is the normalized adapter failure.
type Error struct {
	Kind    ErrorKind
	Service string
	Msg     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Service, e.Msg, e.Kind)
}

// KindOf extracts the error kind, defaulting to transient for plain
// transport errors so they follow the retry path.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindUnavailable
	}
	return KindTransient
}

// IsRetryable reports whether the orchestrator should retry in-stage.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// client is a thin JSON-over-HTTP vendor client shared by all adapters.
// An empty base URL means the service is not configured; calls report
// unavailable so the pipeline can run fully degraded.
type client struct {
	service string
	base    string
	http    *http.Client
}

func newClient(service, base string, timeout time.Duration) *client {
	return &client{
		service: service,
		base:    base,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) unavailable(msg string) *Error {
	return &Error{Kind: KindUnavailable, Service: c.service, Msg: msg}
}

// postJSON sends a request and decodes the JSON response into out.
// When out is nil the raw body bytes are returned instead.
func (c *client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) ([]byte, error) {
	if c.base == "" {
		return nil, c.unavailable("no endpoint configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Service: c.service, Msg: "marshal request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Service: c.service, Msg: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, c.unavailable("connection refused")
		}
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindTransient, Service: c.service, Msg: "request cancelled: " + ctx.Err().Error()}
		}
		return nil, &Error{Kind: KindTransient, Service: c.service, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if err := c.classifyStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Service: c.service, Msg: "read response: " + err.Error()}
	}
	if out == nil {
		return raw, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &Error{Kind: KindRejected, Service: c.service, Msg: "malformed response: " + err.Error()}
	}
	return raw, nil
}

func (c *client) classifyStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &Error{Kind: KindInvalidInput, Service: c.service, Msg: statusMsg(resp)}
	case code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return &Error{Kind: KindUnavailable, Service: c.service, Msg: statusMsg(resp)}
	case code == http.StatusTooManyRequests || code >= 500:
		return &Error{Kind: KindTransient, Service: c.service, Msg: statusMsg(resp)}
	default:
		return &Error{Kind: KindRejected, Service: c.service, Msg: statusMsg(resp)}
	}
}

func statusMsg(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(body) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, body)
}
