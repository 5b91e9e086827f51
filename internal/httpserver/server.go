package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/skywatch/skywatch-relay/internal/config"
)

const serviceName = "skywatch-relay"

type BuildInfo struct {
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// phase is the lifecycle position reported by /readyz.
type phase int32

const (
	phaseStarting phase = iota
	phaseServing
	phaseDraining
)

func (p phase) String() string {
	switch p {
	case phaseServing:
		return "serving"
	case phaseDraining:
		return "draining"
	default:
		return "starting"
	}
}

// Server hosts the relay, predictor and front-end routes behind a shared
// middleware chain, plus the health endpoints.
type Server struct {
	log     *slog.Logger
	cfg     config.Config
	build   BuildInfo
	started time.Time

	phase     atomic.Int32
	readiness atomic.Pointer[func() error]

	mux *http.ServeMux
	srv *http.Server
}

func New(cfg config.Config, logger *slog.Logger, build BuildInfo) *Server {
	s := &Server{
		log:     logger,
		cfg:     cfg,
		build:   build,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.HandleFunc("GET /version", s.handleVersion)

	s.srv = &http.Server{
		Addr: cfg.ListenAddr,
		Handler: chain(s.mux,
			recoverMiddleware(s.log),
			requestIDMiddleware(),
			requestLoggerMiddleware(s.log),
			s.originMiddleware(),
		),
		ReadHeaderTimeout: 5 * time.Second,
		// Upstream inference calls and /api/predict/ws are long-lived, so
		// there is no overall read or write timeout.
	}
	return s
}

// Mux is for registering routes during startup, before Serve.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// SetReadinessCheck installs a check consulted by /readyz. A non-nil error
// makes the server report not ready with that error as the reason.
func (s *Server) SetReadinessCheck(check func() error) {
	if check == nil {
		s.readiness.Store(nil)
		return
	}
	s.readiness.Store(&check)
}

// OnShutdown registers f to run when Shutdown starts. Hijacked connections
// such as /api/predict/ws streams are not drained by the HTTP server, so
// their owners close them from here.
func (s *Server) OnShutdown(f func()) {
	s.srv.RegisterOnShutdown(f)
}

func (s *Server) Serve(l net.Listener) error {
	s.phase.Store(int32(phaseServing))
	s.log.Info("http server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.phase.Store(int32(phaseDraining))
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	p := phase(s.phase.Load())
	body := map[string]any{"ready": false, "phase": p.String()}
	if p != phaseServing {
		WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	if check := s.readiness.Load(); check != nil {
		if err := (*check)(); err != nil {
			body["error"] = err.Error()
			WriteJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	body["ready"] = true
	WriteJSON(w, http.StatusOK, body)
}

type versionResponse struct {
	Service string `json:"service"`
	BuildInfo
	GoVersion string `json:"goVersion"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, versionResponse{
		Service:   serviceName,
		BuildInfo: s.build,
		GoVersion: runtime.Version(),
	})
}

// WriteJSON writes v with the given status and a JSON Content-Type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
