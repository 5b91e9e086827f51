package metrics

import "sync"

// Event names. Counters are created lazily on first use.
const (
	WebRTCInitRequests       = "webrtc_init_requests"
	WebRTCInitInvalid        = "webrtc_init_invalid"
	WebRTCInitUpstreamReject = "webrtc_init_upstream_rejected"
	WebRTCInitFailures       = "webrtc_init_failures"

	PredictRequests    = "predict_requests"
	PredictInvalid     = "predict_invalid"
	PredictDecodeError = "predict_decode_errors"
	PredictUnavailable = "predict_model_unavailable"
	PredictFailures    = "predict_failures"
	PredictDetections  = "predict_detections"

	PredictWSConnections = "predict_ws_connections"
	PredictWSRateLimited = "predict_ws_rate_limited"
	PredictWSTooLarge    = "predict_ws_message_too_large"
)

// Metrics is a minimal, concurrency-safe counter registry exported through
// PrometheusHandler.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc is a no-op on a nil registry so handlers can run without metrics.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
