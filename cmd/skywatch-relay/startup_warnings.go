package main

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/skywatch/skywatch-relay/internal/config"
)

func logStartupWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Roboflow.HasCredential() {
		logger.Warn("startup warning: ROBOFLOW_API_KEY is unset; /predict will answer \"Model not configured\" and WebRTC init will be rejected by the provider",
			"warning_code", "roboflow_credential_missing",
			"mode", cfg.Mode,
		)
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (any site can spend the inference quota)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.SeverityCriticalAbove != config.DefaultSeverityCriticalAbove ||
		cfg.SeverityModerateAbove != config.DefaultSeverityModerateAbove {
		logger.Warn("startup warning: severity thresholds differ from the defaults (0.8 / 0.6)",
			"warning_code", "severity_thresholds_custom",
			"severity_critical_above", cfg.SeverityCriticalAbove,
			"severity_moderate_above", cfg.SeverityModerateAbove,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.Roboflow.UpstreamTimeout <= 0 {
		logger.Warn("startup warning: UPSTREAM_TIMEOUT is unset/0 while --mode=prod (a stalled provider holds requests open)",
			"warning_code", "upstream_timeout_unbounded_in_prod",
			"mode", cfg.Mode,
		)
	}

	for name, raw := range map[string]string{
		"roboflow_api_url":         cfg.Roboflow.APIURL,
		"roboflow_detect_url":      cfg.Roboflow.DetectURL,
		"roboflow_webrtc_init_url": cfg.Roboflow.WebRTCInitURL,
	} {
		if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Scheme == "http" {
			logger.Warn("startup security warning: provider endpoint uses plain http (the api key travels unencrypted)",
				"warning_code", "provider_url_insecure",
				"endpoint", name,
				"host", u.Host,
				"mode", cfg.Mode,
			)
		}
	}
}

func containsString(xs []string, v string) bool {
	for _, s := range xs {
		if s == v {
			return true
		}
	}
	return false
}

func safeURLHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}
