package roboflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skywatch/skywatch-relay/internal/config"
	"github.com/skywatch/skywatch-relay/internal/redact"
)

const testKey = "rf_secret_key_123"

type fakeProvider struct {
	srv *httptest.Server

	workspaceHits atomic.Int64
	projectStatus atomic.Int64

	mu              sync.Mutex
	lastDetectQuery string
	lastDetectBody  string
	lastDetectCT    string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.projectStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		p.workspaceHits.Add(1)
		if r.URL.Query().Get("api_key") != testKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"bad key `+r.URL.Query().Get("api_key")+`"}`)
			return
		}
		_, _ = io.WriteString(w, `{"workspace":"acme"}`)
	})
	mux.HandleFunc("GET /acme/damage-assessment", func(w http.ResponseWriter, r *http.Request) {
		if status := int(p.projectStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = io.WriteString(w, `{"versions":[{"id":"acme/damage-assessment/1"},{"id":"acme/damage-assessment/2"}]}`)
	})
	mux.HandleFunc("POST /damage-assessment/1", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		defer p.mu.Unlock()
		p.lastDetectQuery = r.URL.RawQuery
		p.lastDetectBody = string(body)
		p.lastDetectCT = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"predictions":[{"x":50,"y":40,"width":20,"height":10,"confidence":0.9,"class":"crack"}],"image":{"width":100,"height":80}}`)
	})
	mux.HandleFunc("POST /webrtc/init", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if payload["api_key"] != testKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"unauthorized"}`)
			return
		}
		_, _ = io.WriteString(w, `{"sdp":"answer","type":"answer"}`)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) config(key string) config.RoboflowConfig {
	return config.RoboflowConfig{
		APIKey:        key,
		Project:       "damage-assessment",
		Version:       1,
		APIURL:        p.srv.URL,
		DetectURL:     p.srv.URL,
		WebRTCInitURL: p.srv.URL + "/webrtc/init",
	}
}

func TestInitWebRTCReturnsProviderStatusAndBody(t *testing.T) {
	p := newFakeProvider(t)

	c := NewClient(p.config(testKey), nil)
	status, body, err := c.InitWebRTC(context.Background(), map[string]any{"api_key": testKey, "offer": map[string]any{"sdp": "x"}})
	if err != nil {
		t.Fatalf("InitWebRTC: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("status=%d, want %d", status, http.StatusOK)
	}
	if string(body) != `{"sdp":"answer","type":"answer"}` {
		t.Fatalf("body=%q", body)
	}

	status, body, err = c.InitWebRTC(context.Background(), map[string]any{"api_key": "wrong"})
	if err != nil {
		t.Fatalf("InitWebRTC: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("status=%d, want %d", status, http.StatusUnauthorized)
	}
	if !strings.Contains(string(body), "unauthorized") {
		t.Fatalf("body=%q", body)
	}
}

func TestResolveModel(t *testing.T) {
	p := newFakeProvider(t)
	c := NewClient(p.config(testKey), nil)

	m, err := c.ResolveModel(context.Background(), "damage-assessment", 2)
	if err != nil {
		t.Fatalf("ResolveModel: %v", err)
	}
	if got := m.String(); got != "acme/damage-assessment/2" {
		t.Fatalf("model=%q, want %q", got, "acme/damage-assessment/2")
	}

	_, err = c.ResolveModel(context.Background(), "damage-assessment", 7)
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("err=%v, want %v", err, ErrVersionNotFound)
	}
}

func TestResolveModelWithoutCredential(t *testing.T) {
	p := newFakeProvider(t)
	c := NewClient(p.config(""), nil)

	_, err := c.ResolveModel(context.Background(), "damage-assessment", 1)
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err=%v, want %v", err, ErrNoCredential)
	}
	if hits := p.workspaceHits.Load(); hits != 0 {
		t.Fatalf("workspace hits=%d, want 0", hits)
	}
}

func TestResolveModelRedactsCredential(t *testing.T) {
	p := newFakeProvider(t)
	const otherKey = "rf_other_secret"
	c := NewClient(p.config(otherKey), nil)

	_, err := c.ResolveModel(context.Background(), "damage-assessment", 1)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err=%v, want 401 StatusError", err)
	}
	if strings.Contains(err.Error(), otherKey) {
		t.Fatalf("error leaks credential: %v", err)
	}
	if !strings.Contains(err.Error(), redact.Marker) {
		t.Fatalf("error=%q, want redaction marker", err.Error())
	}
}

func TestResolveModelWithRetryRecoversFromUnavailable(t *testing.T) {
	p := newFakeProvider(t)
	p.projectStatus.Store(http.StatusServiceUnavailable)
	c := NewClient(p.config(testKey), nil)

	go func() {
		time.Sleep(100 * time.Millisecond)
		p.projectStatus.Store(http.StatusOK)
	}()

	m, err := c.ResolveModelWithRetry(context.Background(), "damage-assessment", 1, 10*time.Second, nil)
	if err != nil {
		t.Fatalf("ResolveModelWithRetry: %v", err)
	}
	if m.Version != 1 {
		t.Fatalf("version=%d, want 1", m.Version)
	}
	if hits := p.workspaceHits.Load(); hits < 2 {
		t.Fatalf("workspace hits=%d, want at least 2", hits)
	}
}

func TestResolveModelWithRetryStopsOnPermanentError(t *testing.T) {
	p := newFakeProvider(t)
	c := NewClient(p.config("wrong"), nil)

	_, err := c.ResolveModelWithRetry(context.Background(), "damage-assessment", 1, 10*time.Second, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if hits := p.workspaceHits.Load(); hits != 1 {
		t.Fatalf("workspace hits=%d, want 1", hits)
	}
}

func TestDetectSendsBase64FormBody(t *testing.T) {
	p := newFakeProvider(t)
	c := NewClient(p.config(testKey), nil)
	m, err := c.ResolveModel(context.Background(), "damage-assessment", 1)
	if err != nil {
		t.Fatalf("ResolveModel: %v", err)
	}

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
	group, err := m.Detect(context.Background(), jpeg, DetectOptions{Confidence: 40, Overlap: 30})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(group.Predictions) != 1 || group.Predictions[0].Class != "crack" {
		t.Fatalf("predictions=%+v", group.Predictions)
	}
	if group.Image == nil || group.Image.Width != 100 {
		t.Fatalf("image=%+v", group.Image)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastDetectCT != "application/x-www-form-urlencoded" {
		t.Fatalf("content-type=%q", p.lastDetectCT)
	}
	if p.lastDetectBody != base64.StdEncoding.EncodeToString(jpeg) {
		t.Fatalf("body=%q", p.lastDetectBody)
	}
	for _, want := range []string{"api_key=" + testKey, "confidence=40", "overlap=30"} {
		if !strings.Contains(p.lastDetectQuery, want) {
			t.Fatalf("query=%q, missing %q", p.lastDetectQuery, want)
		}
	}
}

func TestDetectNetworkErrorIsRedacted(t *testing.T) {
	p := newFakeProvider(t)
	c := NewClient(p.config(testKey), nil)
	m := &Model{client: c, Workspace: "acme", Project: "damage-assessment", Version: 1}
	p.srv.Close()

	_, err := m.Detect(context.Background(), []byte{1, 2, 3}, DetectOptions{Confidence: 40, Overlap: 30})
	if err == nil {
		t.Fatalf("expected error")
	}
	if strings.Contains(err.Error(), testKey) {
		t.Fatalf("error leaks credential: %v", err)
	}
}

func TestDetectNetworkErrorRedactsEscapedCredential(t *testing.T) {
	const key = "rf+live/key=="
	p := newFakeProvider(t)
	c := NewClient(p.config(key), nil)
	m := &Model{client: c, Workspace: "acme", Project: "damage-assessment", Version: 1}
	p.srv.Close()

	_, err := m.Detect(context.Background(), []byte{1, 2, 3}, DetectOptions{Confidence: 40, Overlap: 30})
	if err == nil {
		t.Fatalf("expected error")
	}
	if strings.Contains(err.Error(), key) || strings.Contains(err.Error(), url.QueryEscape(key)) {
		t.Fatalf("error leaks credential: %v", err)
	}
	if !strings.Contains(err.Error(), redact.Marker) {
		t.Fatalf("error=%q, want redaction marker", err.Error())
	}
}
