// Package predictor runs single-frame damage detection: it decodes a
// browser-captured image, submits it to the hosted model and reshapes the
// result into detections with a severity label.
package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/skywatch/skywatch-relay/internal/apierr"
	"github.com/skywatch/skywatch-relay/internal/detection"
	"github.com/skywatch/skywatch-relay/internal/metrics"
	"github.com/skywatch/skywatch-relay/internal/roboflow"
)

const defaultMaxBodyBytes = 16 << 20

// ErrModelUnavailable is reported when no model was resolved at start-up.
var ErrModelUnavailable = errors.New("model not configured")

const (
	msgModelUnavailable = "Model not configured"
	msgNoImage          = "No image data provided"
)

// Model is a resolved detection model. *roboflow.Model implements it.
type Model interface {
	Detect(ctx context.Context, jpeg []byte, opts roboflow.DetectOptions) (roboflow.PredictionGroup, error)
}

type Config struct {
	// Model is nil when resolution failed; ModelErr then says why.
	Model    Model
	ModelErr error

	Thresholds detection.Thresholds
	Options    roboflow.DetectOptions

	// MaxBodyBytes bounds a /predict body and a stream message. 0 uses 16 MiB.
	MaxBodyBytes int64

	Stream StreamConfig

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Predictor is safe for concurrent use; every call works on its own buffers.
type Predictor struct {
	model      Model
	modelErr   error
	thresholds detection.Thresholds
	opts       roboflow.DetectOptions

	maxBodyBytes int64
	stream       StreamConfig

	closing   chan struct{}
	closeOnce sync.Once

	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(cfg Config) *Predictor {
	p := &Predictor{
		model:        cfg.Model,
		modelErr:     cfg.ModelErr,
		thresholds:   cfg.Thresholds,
		opts:         cfg.Options,
		maxBodyBytes: cfg.MaxBodyBytes,
		stream:       cfg.Stream.withDefaults(),
		closing:      make(chan struct{}),
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
	}
	if p.thresholds == (detection.Thresholds{}) {
		p.thresholds = detection.DefaultThresholds
	}
	if p.maxBodyBytes <= 0 {
		p.maxBodyBytes = defaultMaxBodyBytes
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.model == nil && p.modelErr == nil {
		p.modelErr = ErrModelUnavailable
	}
	return p
}

// Ready reports whether a model is available.
func (p *Predictor) Ready() bool { return p.model != nil }

// UnavailableReason is nil when Ready, and otherwise wraps ErrModelUnavailable.
func (p *Predictor) UnavailableReason() error {
	if p.model != nil {
		return nil
	}
	if errors.Is(p.modelErr, ErrModelUnavailable) {
		return p.modelErr
	}
	return fmt.Errorf("%w: %v", ErrModelUnavailable, p.modelErr)
}

// CloseStreams asks every open /api/predict/ws connection to close with
// 1001 "server shutting down". It is safe to call more than once.
func (p *Predictor) CloseStreams() {
	p.closeOnce.Do(func() { close(p.closing) })
}

func (p *Predictor) isClosing() bool {
	select {
	case <-p.closing:
		return true
	default:
		return false
	}
}

func (p *Predictor) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict", p.handlePredict)
	mux.Handle("GET /api/predict/ws", p.StreamServer())
}

func (p *Predictor) Handler() http.Handler {
	mux := http.NewServeMux()
	p.RegisterRoutes(mux)
	return mux
}

type predictRequest struct {
	Image *string `json:"image"`
}

// Predict runs one frame through the pipeline. Returned errors are
// *apierr.Error values.
func (p *Predictor) Predict(ctx context.Context, image string) (detection.Response, error) {
	if p.model == nil {
		p.metrics.Inc(metrics.PredictUnavailable)
		return detection.Response{}, apierr.New(apierr.KindUnavailable, msgModelUnavailable)
	}
	raw, err := decodeBase64(stripDataURL(image))
	if err != nil {
		p.metrics.Inc(metrics.PredictDecodeError)
		return detection.Response{}, apierr.Decode(err)
	}
	jpeg, size, err := decodeFrame(raw)
	if err != nil {
		p.metrics.Inc(metrics.PredictDecodeError)
		return detection.Response{}, apierr.Decode(err)
	}

	group, err := p.model.Detect(ctx, jpeg, p.opts)
	if err != nil {
		p.metrics.Inc(metrics.PredictFailures)
		p.log.Warn("detect failed", "err", err)
		return detection.Response{}, apierr.Wrap(apierr.KindUpstream, err)
	}

	resp := detection.Response{Detections: p.thresholds.FromPredictions(group.Predictions)}
	p.metrics.Add(metrics.PredictDetections, uint64(len(resp.Detections)))
	p.log.Debug("frame processed", "width", size.X, "height", size.Y, "detections", len(resp.Detections))
	return resp, nil
}

// checkRequest validates a decoded {image} body. The model check comes first
// so a misconfigured deployment fails fast regardless of the body.
func (p *Predictor) checkRequest(body []byte, decodeErr error) (string, error) {
	if p.model == nil {
		p.metrics.Inc(metrics.PredictUnavailable)
		return "", apierr.New(apierr.KindUnavailable, msgModelUnavailable)
	}
	if decodeErr != nil {
		p.metrics.Inc(metrics.PredictFailures)
		return "", apierr.Internal(decodeErr)
	}

	var req predictRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Image == nil {
		p.metrics.Inc(metrics.PredictInvalid)
		return "", apierr.InvalidRequest(msgNoImage)
	}
	return *req.Image, nil
}

func (p *Predictor) handlePredict(w http.ResponseWriter, r *http.Request) {
	p.metrics.Inc(metrics.PredictRequests)

	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, p.maxBodyBytes))
	image, err := p.checkRequest(body, readErr)
	if err != nil {
		apierr.Write(w, err)
		return
	}

	resp, err := p.Predict(r.Context(), image)
	if err != nil {
		apierr.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
