// Package roboflow talks to the hosted inference provider: the serverless
// WebRTC init endpoint, the account API used to resolve a model at start-up,
// and the hosted detect endpoint used for single frames.
package roboflow

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

	"github.com/skywatch/skywatch-relay/internal/config"
	"github.com/skywatch/skywatch-relay/internal/redact"
)

// maxResponseBytes caps how much of a provider response is buffered.
const maxResponseBytes = 8 << 20

var (
	ErrNoCredential     = errors.New("roboflow: no api key configured")
	ErrVersionNotFound  = errors.New("roboflow: model version not found")
	ErrWorkspaceUnknown = errors.New("roboflow: api key did not resolve to a workspace")
	ErrResponseTooLarge = errors.New("roboflow: response too large")
)

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("roboflow %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("roboflow %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client is safe for concurrent use.
type Client struct {
	http *http.Client

	apiKey        string
	secret        redact.Secret
	apiURL        string
	detectURL     string
	webrtcInitURL string
}

// NewClient builds a Client from the provider configuration. When httpClient
// is nil a client honoring cfg.UpstreamTimeout is created (0 means no
// timeout beyond the request context).
func NewClient(cfg config.RoboflowConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.UpstreamTimeout}
	}
	return &Client{
		http:          httpClient,
		apiKey:        cfg.APIKey,
		secret:        redact.NewSecret(cfg.APIKey),
		apiURL:        strings.TrimRight(cfg.APIURL, "/"),
		detectURL:     strings.TrimRight(cfg.DetectURL, "/"),
		webrtcInitURL: cfg.WebRTCInitURL,
	}
}

func (c *Client) HasCredential() bool { return c.apiKey != "" }

// APIKey returns the configured credential. Callers embedding it in
// forwarded payloads must never echo it back to clients.
func (c *Client) APIKey() string { return c.apiKey }

// InitWebRTC posts the session payload to the serverless init endpoint and
// returns the provider's status and raw body. A non-200 status is not an
// error at this layer; the relay passes it through.
func (c *Client) InitWebRTC(ctx context.Context, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode webrtc init payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webrtcInitURL, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, c.redact(fmt.Errorf("build webrtc init request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return 0, nil, c.redact(fmt.Errorf("webrtc init: %w", err))
	}
	return status, body, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return 0, nil, ErrResponseTooLarge
	}
	return resp.StatusCode, body, nil
}

// getJSON performs an authenticated GET against the account API and decodes
// a 200 response into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	u, err := url.Parse(c.apiURL + path)
	if err != nil {
		return c.redact(fmt.Errorf("roboflow %s: %w", op, err))
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return c.redact(fmt.Errorf("roboflow %s: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return c.redact(fmt.Errorf("roboflow %s: %w", op, err))
	}
	if status != http.StatusOK {
		return c.redact(&StatusError{Op: op, StatusCode: status, Body: truncate(string(body), 512)})
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("roboflow %s: decode response: %w", op, err)
	}
	return nil
}

// redact masks the credential, raw or URL-escaped, in err's message.
func (c *Client) redact(err error) error {
	return c.secret.Error(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
