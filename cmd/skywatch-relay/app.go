package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/skywatch/skywatch-relay/internal/config"
	"github.com/skywatch/skywatch-relay/internal/detection"
	"github.com/skywatch/skywatch-relay/internal/httpserver"
	"github.com/skywatch/skywatch-relay/internal/metrics"
	"github.com/skywatch/skywatch-relay/internal/predictor"
	"github.com/skywatch/skywatch-relay/internal/roboflow"
	"github.com/skywatch/skywatch-relay/internal/signaling"
	"github.com/skywatch/skywatch-relay/internal/web"
)

type app struct {
	srv       *httpserver.Server
	predictor *predictor.Predictor
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// newApp resolves the model and mounts every route on one server. A failed
// model lookup is not fatal: /predict then answers "Model not configured"
// and /readyz reports the reason.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, build httpserver.BuildInfo, httpClient *http.Client) *app {
	m := metrics.New()
	client := roboflow.NewClient(cfg.Roboflow, httpClient)

	var model predictor.Model
	resolved, modelErr := client.ResolveModelWithRetry(ctx, cfg.Roboflow.Project, cfg.Roboflow.Version, cfg.Roboflow.ModelResolveMaxElapsed, logger)
	if modelErr != nil {
		logger.Error("model not configured; /predict will fail until restart",
			"err", modelErr,
			"project", cfg.Roboflow.Project,
			"version", cfg.Roboflow.Version,
		)
	} else {
		logger.Info("model resolved", "model", resolved.String())
		model = resolved
	}

	pred := predictor.New(predictor.Config{
		Model:    model,
		ModelErr: modelErr,
		Thresholds: detection.Thresholds{
			CriticalAbove: cfg.SeverityCriticalAbove,
			ModerateAbove: cfg.SeverityModerateAbove,
		},
		Options: roboflow.DetectOptions{
			Confidence: cfg.PredictConfidence,
			Overlap:    cfg.PredictOverlap,
		},
		MaxBodyBytes: cfg.MaxRequestBodyBytes,
		Stream: predictor.StreamConfig{
			MaxFramesPerSecond: cfg.PredictWSMaxFramesPerSecond,
			IdleTimeout:        cfg.PredictWSIdleTimeout,
			PingInterval:       cfg.PredictWSPingInterval,
		},
		Metrics: m,
		Logger:  logger.With("component", "predictor"),
	})

	sig := signaling.NewServer(signaling.Config{
		Provider:     client,
		APIKey:       client.APIKey(),
		Defaults:     cfg.Stream,
		MaxBodyBytes: cfg.MaxRequestBodyBytes,
		Metrics:      m,
		Logger:       logger.With("component", "signaling"),
	})

	srv := httpserver.New(cfg, logger, build)
	srv.SetReadinessCheck(pred.UnavailableReason)
	srv.OnShutdown(pred.CloseStreams)
	sig.RegisterRoutes(srv.Mux())
	pred.RegisterRoutes(srv.Mux())
	web.RegisterRoutes(srv.Mux(), cfg.StaticDir)

	// Expose internal counters in Prometheus' text format.
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m, pred.Ready))

	return &app{srv: srv, predictor: pred, metrics: m, log: logger}
}

// serve runs until ln fails or ctx is cancelled, then drains in-flight
// requests and prediction streams within drainTimeout.
func (a *app) serve(ctx context.Context, ln net.Listener, drainTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server exited: %w", err)
	case <-ctx.Done():
		a.log.Info("shutdown signal received", "drain_timeout", drainTimeout)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	shutdownErr := a.srv.Shutdown(drainCtx)

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server exited during drain: %w", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("drain: %w", shutdownErr)
	}
	return nil
}
