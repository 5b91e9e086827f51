package roboflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skywatch/skywatch-relay/internal/detection"
)

// Model is a resolved hosted object-detection model version.
type Model struct {
	client    *Client
	Workspace string
	Project   string
	Version   int
}

type DetectOptions struct {
	Confidence int // percent, 0..100
	Overlap    int // percent, 0..100
}

type ImageInfo struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PredictionGroup is the detect endpoint's response. Predictions is nil when
// the provider omits the field.
type PredictionGroup struct {
	Predictions []detection.Prediction `json:"predictions"`
	Image       *ImageInfo             `json:"image,omitempty"`
}

type workspaceResponse struct {
	Workspace string `json:"workspace"`
}

type projectResponse struct {
	Versions []struct {
		ID string `json:"id"`
	} `json:"versions"`
}

// ResolveModel performs the account handshake: the credential resolves to a
// workspace, then the project is listed and the requested version must exist.
func (c *Client) ResolveModel(ctx context.Context, project string, version int) (*Model, error) {
	if !c.HasCredential() {
		return nil, ErrNoCredential
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return nil, errors.New("roboflow: project id is empty")
	}

	var ws workspaceResponse
	if err := c.getJSON(ctx, "workspace lookup", "/", &ws); err != nil {
		return nil, err
	}
	if ws.Workspace == "" {
		return nil, ErrWorkspaceUnknown
	}

	var proj projectResponse
	path := "/" + url.PathEscape(ws.Workspace) + "/" + url.PathEscape(project)
	if err := c.getJSON(ctx, "project lookup", path, &proj); err != nil {
		return nil, err
	}

	want := strconv.Itoa(version)
	for _, v := range proj.Versions {
		// Version ids look like "workspace/project/3".
		if v.ID == want || strings.HasSuffix(v.ID, "/"+want) {
			return &Model{client: c, Workspace: ws.Workspace, Project: project, Version: version}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s version %d", ErrVersionNotFound, ws.Workspace, project, version)
}

// ResolveModelWithRetry retries ResolveModel with exponential backoff until
// maxElapsed passes; maxElapsed <= 0 makes a single attempt. Missing
// credentials, unknown versions and 4xx answers other than 429 are not
// retried.
func (c *Client) ResolveModelWithRetry(ctx context.Context, project string, version int, maxElapsed time.Duration, logger *slog.Logger) (*Model, error) {
	if maxElapsed <= 0 {
		return c.ResolveModel(ctx, project, version)
	}
	if logger == nil {
		logger = slog.Default()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = maxElapsed

	var model *Model
	op := func() error {
		m, err := c.ResolveModel(ctx, project, version)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		model = m
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("model resolution failed; retrying", "err", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(eb, ctx), notify); err != nil {
		return nil, err
	}
	return model, nil
}

func isPermanent(err error) bool {
	if errors.Is(err, ErrNoCredential) || errors.Is(err, ErrVersionNotFound) || errors.Is(err, ErrWorkspaceUnknown) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func (m *Model) String() string {
	return fmt.Sprintf("%s/%s/%d", m.Workspace, m.Project, m.Version)
}

// Detect submits one JPEG frame. The image travels base64-encoded as a
// form-urlencoded body, the way the hosted endpoint expects it.
func (m *Model) Detect(ctx context.Context, jpeg []byte, opts DetectOptions) (PredictionGroup, error) {
	c := m.client

	u, err := url.Parse(c.detectURL + "/" + url.PathEscape(m.Project) + "/" + strconv.Itoa(m.Version))
	if err != nil {
		return PredictionGroup{}, c.redact(fmt.Errorf("roboflow detect: %w", err))
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("confidence", strconv.Itoa(opts.Confidence))
	q.Set("overlap", strconv.Itoa(opts.Overlap))
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	body := base64.StdEncoding.EncodeToString(jpeg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader([]byte(body)))
	if err != nil {
		return PredictionGroup{}, c.redact(fmt.Errorf("roboflow detect: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return PredictionGroup{}, c.redact(fmt.Errorf("roboflow detect: %w", err))
	}
	if status != http.StatusOK {
		return PredictionGroup{}, c.redact(&StatusError{Op: "detect", StatusCode: status, Body: truncate(string(respBody), 512)})
	}

	var group PredictionGroup
	if err := json.Unmarshal(respBody, &group); err != nil {
		return PredictionGroup{}, fmt.Errorf("roboflow detect: decode response: %w", err)
	}
	return group, nil
}
