package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/skywatch/skywatch-relay/internal/apierr"
	"github.com/skywatch/skywatch-relay/internal/config"
	"github.com/skywatch/skywatch-relay/internal/metrics"
	"github.com/skywatch/skywatch-relay/internal/redact"
)

const defaultMaxBodyBytes = 1 << 20

const upstreamRejectMessage = "Failed to initialize with Roboflow"

var errBodyNotObject = errors.New("request body must be a JSON object")

// Provider is the hosted inference service's WebRTC init endpoint.
// *roboflow.Client implements it.
type Provider interface {
	InitWebRTC(ctx context.Context, payload any) (status int, body []byte, err error)
}

// Config wires together the runtime dependencies for the relay.
type Config struct {
	Provider Provider

	// APIKey is injected into every forwarded payload.
	APIKey string

	Defaults config.StreamDefaults

	// MaxBodyBytes bounds the browser request. 0 uses 1 MiB.
	MaxBodyBytes int64

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server implements POST /api/init-webrtc.
type Server struct {
	provider     Provider
	apiKey       string
	secret       redact.Secret
	defaults     config.StreamDefaults
	maxBodyBytes int64
	metrics      *metrics.Metrics
	log          *slog.Logger
}

func NewServer(cfg Config) *Server {
	s := &Server{
		provider:     cfg.Provider,
		apiKey:       cfg.APIKey,
		secret:       redact.NewSecret(cfg.APIKey),
		defaults:     cfg.Defaults,
		maxBodyBytes: cfg.MaxBodyBytes,
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/init-webrtc", s.handleInitWebRTC)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *Server) handleInitWebRTC(w http.ResponseWriter, r *http.Request) {
	s.metrics.Inc(metrics.WebRTCInitRequests)

	req, err := s.decodeRequest(w, r)
	if err != nil {
		s.metrics.Inc(metrics.WebRTCInitFailures)
		apierr.Write(w, s.scrub(apierr.Internal(err)))
		return
	}
	if offerMissing(req.Offer) {
		s.metrics.Inc(metrics.WebRTCInitInvalid)
		apierr.Write(w, apierr.InvalidRequest("No WebRTC offer provided"))
		return
	}

	if summary, err := describeOffer(req.Offer); err != nil {
		s.log.Debug("webrtc offer not inspectable", "err", err)
	} else {
		s.log.Info("relaying webrtc offer", "media_sections", summary.MediaSections, "media", summary.Kinds)
	}

	if s.provider == nil {
		s.metrics.Inc(metrics.WebRTCInitFailures)
		apierr.Write(w, apierr.Internal(errors.New("webrtc provider not configured")))
		return
	}

	payload := buildPayload(req, s.apiKey, s.defaults)
	status, body, err := s.provider.InitWebRTC(r.Context(), payload)
	if err != nil {
		s.metrics.Inc(metrics.WebRTCInitFailures)
		s.log.Warn("webrtc init failed", "err", s.scrub(err))
		apierr.Write(w, s.scrub(apierr.Internal(err)))
		return
	}
	body = s.secret.Bytes(body)

	if status != http.StatusOK {
		s.metrics.Inc(metrics.WebRTCInitUpstreamReject)
		s.log.Warn("webrtc init rejected by provider", "status", status)
		apierr.Write(w, apierr.Upstream(status, upstreamRejectMessage, providerDetails(body)))
		return
	}
	if !json.Valid(body) {
		s.metrics.Inc(metrics.WebRTCInitFailures)
		apierr.Write(w, apierr.Internal(errors.New("provider returned a non-JSON answer")))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (InitRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		return InitRequest{}, fmt.Errorf("read request body: %w", err)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return InitRequest{}, errBodyNotObject
	}

	var req InitRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return InitRequest{}, err
	}
	return req, nil
}

// providerDetails returns the provider body as JSON when it is valid JSON,
// and as a string otherwise.
func providerDetails(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

// scrub masks the credential in err's message, keeping the apierr kind and
// status so the response shape does not change.
func (s *Server) scrub(err error) error {
	if err == nil || !s.secret.Contains(err.Error()) {
		return err
	}
	redacted := s.secret.String(err.Error())
	var e *apierr.Error
	if errors.As(err, &e) {
		return &apierr.Error{Kind: e.Kind, Message: redacted, StatusCode: e.StatusCode, Details: e.Details}
	}
	return errors.New(redacted)
}
