package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/skywatch/skywatch-relay/internal/config"
)

type recordedLog struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	mu      *sync.Mutex
	records *[]recordedLog
	attrs   []slog.Attr
	groups  []string
}

func newRecordingLogger() (*slog.Logger, func() []recordedLog) {
	mu := &sync.Mutex{}
	records := &[]recordedLog{}
	h := &recordingHandler{mu: mu, records: records}
	logger := slog.New(h)
	return logger, func() []recordedLog {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedLog, len(*records))
		copy(out, *records)
		return out
	}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := recordedLog{
		level: r.Level,
		msg:   r.Message,
		attrs: map[string]any{},
	}
	for _, a := range h.attrs {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	nh.attrs = append(nh.attrs, attrs...)
	return nh
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *recordingHandler) clone() *recordingHandler {
	return &recordingHandler{
		mu:      h.mu,
		records: h.records,
		attrs:   append([]slog.Attr(nil), h.attrs...),
		groups:  append([]string(nil), h.groups...),
	}
}

func (h *recordingHandler) key(k string) string {
	if len(h.groups) == 0 {
		return k
	}
	return strings.Join(h.groups, ".") + "." + k
}

func warningCodes(records []recordedLog) map[string]recordedLog {
	out := map[string]recordedLog{}
	for _, r := range records {
		if r.level != slog.LevelWarn {
			continue
		}
		if code, ok := r.attrs["warning_code"].(string); ok {
			out[code] = r
		}
	}
	return out
}

func defaultConfig() config.Config {
	return config.Config{
		Mode: config.ModeDev,
		Roboflow: config.RoboflowConfig{
			APIKey:          "secret",
			APIURL:          config.DefaultRoboflowAPIURL,
			DetectURL:       config.DefaultRoboflowDetectURL,
			WebRTCInitURL:   config.DefaultRoboflowWebRTCInitURL,
			UpstreamTimeout: 0,
		},
		SeverityCriticalAbove: config.DefaultSeverityCriticalAbove,
		SeverityModerateAbove: config.DefaultSeverityModerateAbove,
	}
}

func TestStartupWarnings_DefaultsAreQuiet(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupWarnings(logger, defaultConfig())

	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("unexpected warnings: %#v", codes)
	}
}

func TestStartupWarnings_MissingCredential(t *testing.T) {
	logger, records := newRecordingLogger()
	cfg := defaultConfig()
	cfg.Roboflow.APIKey = ""

	logStartupWarnings(logger, cfg)

	if _, ok := warningCodes(records())["roboflow_credential_missing"]; !ok {
		t.Fatalf("expected warning_code=roboflow_credential_missing, got %#v", records())
	}
}

func TestStartupWarnings_AllowedOriginsWildcard(t *testing.T) {
	logger, records := newRecordingLogger()
	cfg := defaultConfig()
	cfg.AllowedOrigins = []string{"*"}

	logStartupWarnings(logger, cfg)

	if _, ok := warningCodes(records())["allowed_origins_wildcard"]; !ok {
		t.Fatalf("expected warning_code=allowed_origins_wildcard, got %#v", records())
	}
}

func TestStartupWarnings_CustomThresholds(t *testing.T) {
	logger, records := newRecordingLogger()
	cfg := defaultConfig()
	cfg.SeverityCriticalAbove = 0.9

	logStartupWarnings(logger, cfg)

	r, ok := warningCodes(records())["severity_thresholds_custom"]
	if !ok {
		t.Fatalf("expected warning_code=severity_thresholds_custom, got %#v", records())
	}
	if r.attrs["severity_critical_above"] != 0.9 {
		t.Fatalf("severity_critical_above attr = %#v, want 0.9", r.attrs["severity_critical_above"])
	}
}

func TestStartupWarnings_ProdWithoutUpstreamTimeout(t *testing.T) {
	logger, records := newRecordingLogger()
	cfg := defaultConfig()
	cfg.Mode = config.ModeProd

	logStartupWarnings(logger, cfg)

	if _, ok := warningCodes(records())["upstream_timeout_unbounded_in_prod"]; !ok {
		t.Fatalf("expected warning_code=upstream_timeout_unbounded_in_prod, got %#v", records())
	}
}

func TestStartupWarnings_PlainHTTPProvider(t *testing.T) {
	logger, records := newRecordingLogger()
	cfg := defaultConfig()
	cfg.Roboflow.DetectURL = "http://detect.internal:9001"

	logStartupWarnings(logger, cfg)

	r, ok := warningCodes(records())["provider_url_insecure"]
	if !ok {
		t.Fatalf("expected warning_code=provider_url_insecure, got %#v", records())
	}
	if r.attrs["host"] != "detect.internal:9001" {
		t.Fatalf("host attr = %#v", r.attrs["host"])
	}
}
