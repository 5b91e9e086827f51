package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/skywatch/skywatch-relay/internal/origin"
)

const (
	envVarListenAddr      = "SKYWATCH_LISTEN_ADDR"
	envVarMode            = "SKYWATCH_MODE"
	envVarLogFormat       = "SKYWATCH_LOG_FORMAT"
	envVarLogLevel        = "SKYWATCH_LOG_LEVEL"
	envVarShutdownTimeout = "SKYWATCH_SHUTDOWN_TIMEOUT"
	envVarStaticDir       = "SKYWATCH_STATIC_DIR"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// Inference provider.
	envVarRoboflowAPIKey        = "ROBOFLOW_API_KEY"
	envVarRoboflowProject       = "ROBOFLOW_PROJECT_ID"
	envVarRoboflowVersion       = "ROBOFLOW_MODEL_VERSION"
	envVarRoboflowAPIURL        = "ROBOFLOW_API_URL"
	envVarRoboflowDetectURL     = "ROBOFLOW_DETECT_URL"
	envVarRoboflowWebRTCInitURL = "ROBOFLOW_WEBRTC_INIT_URL"
	envVarUpstreamTimeout       = "UPSTREAM_TIMEOUT"
	envVarModelResolveMaxElapse = "MODEL_RESOLVE_MAX_ELAPSED"

	// Frame predictor knobs.
	envVarPredictConfidence     = "PREDICT_CONFIDENCE"
	envVarPredictOverlap        = "PREDICT_OVERLAP"
	envVarSeverityCriticalAbove = "SEVERITY_CRITICAL_ABOVE"
	envVarSeverityModerateAbove = "SEVERITY_MODERATE_ABOVE"
	envVarMaxRequestBodyBytes   = "MAX_REQUEST_BODY_BYTES"

	// Streaming defaults forwarded with every WebRTC init call.
	envVarWebRTCDefaultPlan              = "WEBRTC_DEFAULT_PLAN"
	envVarWebRTCDefaultRegion            = "WEBRTC_DEFAULT_REGION"
	envVarWebRTCDefaultProcessingTimeout = "WEBRTC_DEFAULT_PROCESSING_TIMEOUT"
	envVarWebRTCDefaultStreamOutputs     = "WEBRTC_DEFAULT_STREAM_OUTPUTS"
	envVarWebRTCDefaultDataOutputs       = "WEBRTC_DEFAULT_DATA_OUTPUTS"

	// /api/predict/ws frame stream.
	envVarPredictWSMaxFramesPerSecond = "PREDICT_WS_MAX_FRAMES_PER_SECOND"
	envVarPredictWSIdleTimeout        = "PREDICT_WS_IDLE_TIMEOUT"
	envVarPredictWSPingInterval       = "PREDICT_WS_PING_INTERVAL"

	DefaultListenAddr                  = "0.0.0.0:5000"
	DefaultShutdown                    = 15 * time.Second
	DefaultMode                   Mode = ModeDev
	DefaultModelResolveMaxElapsed      = 30 * time.Second

	DefaultRoboflowProject       = "damage-assessment"
	DefaultRoboflowVersion       = 1
	DefaultRoboflowAPIURL        = "https://api.roboflow.com"
	DefaultRoboflowDetectURL     = "https://detect.roboflow.com"
	DefaultRoboflowWebRTCInitURL = "https://serverless.roboflow.com/webrtc/init"

	// Confidence and overlap are percentages, as the hosted detect API expects.
	DefaultPredictConfidence = 40
	DefaultPredictOverlap    = 30

	DefaultSeverityCriticalAbove = 0.8
	DefaultSeverityModerateAbove = 0.6

	DefaultMaxRequestBodyBytes int64 = 16 << 20

	DefaultWebRTCPlan              = "webrtc-gpu-medium"
	DefaultWebRTCRegion            = "us"
	DefaultWebRTCProcessingTimeout = 600
	DefaultWebRTCStreamOutput      = "visualization"
	DefaultWebRTCDataOutput        = "predictions"

	DefaultPredictWSMaxFramesPerSecond = 10
	DefaultPredictWSIdleTimeout        = 60 * time.Second
	DefaultPredictWSPingInterval       = 20 * time.Second
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// RoboflowConfig identifies the hosted model and the provider endpoints.
type RoboflowConfig struct {
	APIKey        string
	Project       string
	Version       int
	APIURL        string
	DetectURL     string
	WebRTCInitURL string

	// UpstreamTimeout bounds each outbound call. Zero leaves the http.Client
	// default in place (no timeout).
	UpstreamTimeout time.Duration

	// ModelResolveMaxElapsed bounds the start-up model lookup, retries included.
	ModelResolveMaxElapsed time.Duration
}

func (c RoboflowConfig) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// StreamDefaults are applied to every WebRTC init call when the browser omits
// the corresponding wrtcParams field.
type StreamDefaults struct {
	StreamOutputNames []string
	DataOutputNames   []string
	ProcessingTimeout int
	RequestedPlan     string
	RequestedRegion   string
}

type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	Mode            Mode

	// StaticDir overrides the embedded front-end when non-empty.
	StaticDir string

	Roboflow RoboflowConfig
	Stream   StreamDefaults

	PredictConfidence     int
	PredictOverlap        int
	SeverityCriticalAbove float64
	SeverityModerateAbove float64
	MaxRequestBodyBytes   int64

	PredictWSMaxFramesPerSecond int
	PredictWSIdleTimeout        time.Duration
	PredictWSPingInterval       time.Duration
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	allowedOriginsStr := envOrDefault(lookup, envVarAllowedOrigins, "")
	staticDir := envOrDefault(lookup, envVarStaticDir, "")

	apiKey := envOrDefault(lookup, envVarRoboflowAPIKey, "")
	project := envOrDefault(lookup, envVarRoboflowProject, DefaultRoboflowProject)
	version, err := envIntOrDefault(lookup, envVarRoboflowVersion, DefaultRoboflowVersion)
	if err != nil {
		return Config{}, err
	}
	apiURL := envOrDefault(lookup, envVarRoboflowAPIURL, DefaultRoboflowAPIURL)
	detectURL := envOrDefault(lookup, envVarRoboflowDetectURL, DefaultRoboflowDetectURL)
	webrtcInitURL := envOrDefault(lookup, envVarRoboflowWebRTCInitURL, DefaultRoboflowWebRTCInitURL)

	upstreamTimeout, err := envDurationOrDefault(lookup, envVarUpstreamTimeout, 0)
	if err != nil {
		return Config{}, err
	}
	modelResolveMaxElapsed, err := envDurationOrDefault(lookup, envVarModelResolveMaxElapse, DefaultModelResolveMaxElapsed)
	if err != nil {
		return Config{}, err
	}

	predictConfidence, err := envIntOrDefault(lookup, envVarPredictConfidence, DefaultPredictConfidence)
	if err != nil {
		return Config{}, err
	}
	predictOverlap, err := envIntOrDefault(lookup, envVarPredictOverlap, DefaultPredictOverlap)
	if err != nil {
		return Config{}, err
	}
	severityCriticalAbove, err := envFloatOrDefault(lookup, envVarSeverityCriticalAbove, DefaultSeverityCriticalAbove)
	if err != nil {
		return Config{}, err
	}
	severityModerateAbove, err := envFloatOrDefault(lookup, envVarSeverityModerateAbove, DefaultSeverityModerateAbove)
	if err != nil {
		return Config{}, err
	}

	maxRequestBodyBytes := DefaultMaxRequestBodyBytes
	if raw, ok := lookup(envVarMaxRequestBodyBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxRequestBodyBytes, raw, err)
		}
		maxRequestBodyBytes = n
	}

	webrtcPlan := envOrDefault(lookup, envVarWebRTCDefaultPlan, DefaultWebRTCPlan)
	webrtcRegion := envOrDefault(lookup, envVarWebRTCDefaultRegion, DefaultWebRTCRegion)
	webrtcProcessingTimeout, err := envIntOrDefault(lookup, envVarWebRTCDefaultProcessingTimeout, DefaultWebRTCProcessingTimeout)
	if err != nil {
		return Config{}, err
	}
	webrtcStreamOutputsStr := envOrDefault(lookup, envVarWebRTCDefaultStreamOutputs, DefaultWebRTCStreamOutput)
	webrtcDataOutputsStr := envOrDefault(lookup, envVarWebRTCDefaultDataOutputs, DefaultWebRTCDataOutput)

	predictWSMaxFramesPerSecond, err := envIntOrDefault(lookup, envVarPredictWSMaxFramesPerSecond, DefaultPredictWSMaxFramesPerSecond)
	if err != nil {
		return Config{}, err
	}
	predictWSIdleTimeout, err := envDurationOrDefault(lookup, envVarPredictWSIdleTimeout, DefaultPredictWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	predictWSPingInterval, err := envDurationOrDefault(lookup, envVarPredictWSPingInterval, DefaultPredictWSPingInterval)
	if err != nil {
		return Config{}, err
	}

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("skywatch-relay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port; env "+envVarListenAddr+")")
	fs.StringVar(&allowedOriginsStr, "allowed-origins", allowedOriginsStr, "Comma-separated list of allowed browser origins (env "+envVarAllowedOrigins+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")
	fs.StringVar(&staticDir, "static-dir", staticDir, "Serve the front-end from this directory instead of the embedded page (env "+envVarStaticDir+")")

	fs.StringVar(&apiKey, "roboflow-api-key", apiKey, "Inference provider API key (env "+envVarRoboflowAPIKey+")")
	fs.StringVar(&project, "roboflow-project", project, "Project identifier of the hosted model (env "+envVarRoboflowProject+")")
	fs.IntVar(&version, "roboflow-version", version, "Model version number (env "+envVarRoboflowVersion+")")
	fs.StringVar(&apiURL, "roboflow-api-url", apiURL, "Provider API base URL used to resolve the model (env "+envVarRoboflowAPIURL+")")
	fs.StringVar(&detectURL, "roboflow-detect-url", detectURL, "Provider detect base URL for frame submission (env "+envVarRoboflowDetectURL+")")
	fs.StringVar(&webrtcInitURL, "roboflow-webrtc-init-url", webrtcInitURL, "Provider WebRTC initialization endpoint (env "+envVarRoboflowWebRTCInitURL+")")
	fs.DurationVar(&upstreamTimeout, "upstream-timeout", upstreamTimeout, "Timeout for outbound provider calls (0 = none; env "+envVarUpstreamTimeout+")")
	fs.DurationVar(&modelResolveMaxElapsed, "model-resolve-max-elapsed", modelResolveMaxElapsed, "Give up resolving the model at start-up after this long (env "+envVarModelResolveMaxElapse+")")

	fs.IntVar(&predictConfidence, "predict-confidence", predictConfidence, "Minimum detection confidence percentage sent to the model (env "+envVarPredictConfidence+")")
	fs.IntVar(&predictOverlap, "predict-overlap", predictOverlap, "Box overlap (IoU) percentage for duplicate suppression (env "+envVarPredictOverlap+")")
	fs.Float64Var(&severityCriticalAbove, "severity-critical-above", severityCriticalAbove, "Confidence strictly above which a detection is critical (env "+envVarSeverityCriticalAbove+")")
	fs.Float64Var(&severityModerateAbove, "severity-moderate-above", severityModerateAbove, "Confidence strictly above which a detection is moderate (env "+envVarSeverityModerateAbove+")")
	fs.Int64Var(&maxRequestBodyBytes, "max-request-body-bytes", maxRequestBodyBytes, "Max JSON request body size in bytes (env "+envVarMaxRequestBodyBytes+")")

	fs.StringVar(&webrtcPlan, "webrtc-default-plan", webrtcPlan, "Default requested compute plan (env "+envVarWebRTCDefaultPlan+")")
	fs.StringVar(&webrtcRegion, "webrtc-default-region", webrtcRegion, "Default requested region (env "+envVarWebRTCDefaultRegion+")")
	fs.IntVar(&webrtcProcessingTimeout, "webrtc-default-processing-timeout", webrtcProcessingTimeout, "Default remote processing timeout in seconds (env "+envVarWebRTCDefaultProcessingTimeout+")")
	fs.StringVar(&webrtcStreamOutputsStr, "webrtc-default-stream-outputs", webrtcStreamOutputsStr, "Comma-separated default stream output names (env "+envVarWebRTCDefaultStreamOutputs+")")
	fs.StringVar(&webrtcDataOutputsStr, "webrtc-default-data-outputs", webrtcDataOutputsStr, "Comma-separated default data output names (env "+envVarWebRTCDefaultDataOutputs+")")

	fs.IntVar(&predictWSMaxFramesPerSecond, "predict-ws-max-frames-per-second", predictWSMaxFramesPerSecond, "Max frames per second accepted on /api/predict/ws (env "+envVarPredictWSMaxFramesPerSecond+")")
	fs.DurationVar(&predictWSIdleTimeout, "predict-ws-idle-timeout", predictWSIdleTimeout, "Close idle /api/predict/ws connections after this duration (env "+envVarPredictWSIdleTimeout+")")
	fs.DurationVar(&predictWSPingInterval, "predict-ws-ping-interval", predictWSPingInterval, "Ping interval on /api/predict/ws connections (must be < --predict-ws-idle-timeout; env "+envVarPredictWSPingInterval+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}

	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	allowedOrigins, err := parseAllowedOrigins(allowedOriginsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s/--allowed-origins: %w", envVarAllowedOrigins, err)
	}

	if listenAddr == "" {
		return Config{}, fmt.Errorf("listen address must not be empty")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("shutdown timeout must be > 0")
	}
	if strings.TrimSpace(project) == "" {
		return Config{}, fmt.Errorf("%s/--roboflow-project must not be empty", envVarRoboflowProject)
	}
	if version <= 0 {
		return Config{}, fmt.Errorf("%s/--roboflow-version must be > 0", envVarRoboflowVersion)
	}
	for _, u := range []struct {
		name, value string
	}{
		{envVarRoboflowAPIURL, apiURL},
		{envVarRoboflowDetectURL, detectURL},
		{envVarRoboflowWebRTCInitURL, webrtcInitURL},
	} {
		if err := validateHTTPURL(u.value); err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", u.name, u.value, err)
		}
	}
	if upstreamTimeout < 0 {
		return Config{}, fmt.Errorf("%s/--upstream-timeout must be >= 0", envVarUpstreamTimeout)
	}
	if modelResolveMaxElapsed <= 0 {
		return Config{}, fmt.Errorf("%s/--model-resolve-max-elapsed must be > 0", envVarModelResolveMaxElapse)
	}
	if predictConfidence < 0 || predictConfidence > 100 {
		return Config{}, fmt.Errorf("%s/--predict-confidence must be within 0..100", envVarPredictConfidence)
	}
	if predictOverlap < 0 || predictOverlap > 100 {
		return Config{}, fmt.Errorf("%s/--predict-overlap must be within 0..100", envVarPredictOverlap)
	}
	if severityModerateAbove < 0 || severityCriticalAbove > 1 || severityModerateAbove >= severityCriticalAbove {
		return Config{}, fmt.Errorf("severity thresholds must satisfy 0 <= %s < %s <= 1", envVarSeverityModerateAbove, envVarSeverityCriticalAbove)
	}
	if maxRequestBodyBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-request-body-bytes must be > 0", envVarMaxRequestBodyBytes)
	}
	if webrtcProcessingTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--webrtc-default-processing-timeout must be > 0", envVarWebRTCDefaultProcessingTimeout)
	}
	streamOutputs := parseNameList(webrtcStreamOutputsStr)
	if len(streamOutputs) == 0 {
		return Config{}, fmt.Errorf("%s/--webrtc-default-stream-outputs must name at least one output", envVarWebRTCDefaultStreamOutputs)
	}
	dataOutputs := parseNameList(webrtcDataOutputsStr)
	if len(dataOutputs) == 0 {
		return Config{}, fmt.Errorf("%s/--webrtc-default-data-outputs must name at least one output", envVarWebRTCDefaultDataOutputs)
	}
	if predictWSMaxFramesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s/--predict-ws-max-frames-per-second must be > 0", envVarPredictWSMaxFramesPerSecond)
	}
	if predictWSIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--predict-ws-idle-timeout must be > 0", envVarPredictWSIdleTimeout)
	}
	if predictWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("%s/--predict-ws-ping-interval must be > 0", envVarPredictWSPingInterval)
	}
	if predictWSPingInterval >= predictWSIdleTimeout {
		return Config{}, fmt.Errorf("%s/--predict-ws-ping-interval must be < %s/--predict-ws-idle-timeout", envVarPredictWSPingInterval, envVarPredictWSIdleTimeout)
	}

	cfg := Config{
		ListenAddr:      listenAddr,
		AllowedOrigins:  allowedOrigins,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,
		Mode:            mode,
		StaticDir:       strings.TrimSpace(staticDir),
		Roboflow: RoboflowConfig{
			APIKey:                 strings.TrimSpace(apiKey),
			Project:                strings.TrimSpace(project),
			Version:                version,
			APIURL:                 strings.TrimRight(apiURL, "/"),
			DetectURL:              strings.TrimRight(detectURL, "/"),
			WebRTCInitURL:          webrtcInitURL,
			UpstreamTimeout:        upstreamTimeout,
			ModelResolveMaxElapsed: modelResolveMaxElapsed,
		},
		Stream: StreamDefaults{
			StreamOutputNames: streamOutputs,
			DataOutputNames:   dataOutputs,
			ProcessingTimeout: webrtcProcessingTimeout,
			RequestedPlan:     webrtcPlan,
			RequestedRegion:   webrtcRegion,
		},
		PredictConfidence:           predictConfidence,
		PredictOverlap:              predictOverlap,
		SeverityCriticalAbove:       severityCriticalAbove,
		SeverityModerateAbove:       severityModerateAbove,
		MaxRequestBodyBytes:         maxRequestBodyBytes,
		PredictWSMaxFramesPerSecond: predictWSMaxFramesPerSecond,
		PredictWSIdleTimeout:        predictWSIdleTimeout,
		PredictWSPingInterval:       predictWSPingInterval,
	}

	return cfg, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envFloatOrDefault(lookup func(string) (string, bool), key string, fallback float64) (float64, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parseAllowedOrigins(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if entry == "*" {
			out = append(out, entry)
			continue
		}

		normalizedOrigin, _, ok := origin.NormalizeHeader(entry)
		if !ok {
			return nil, fmt.Errorf("invalid origin %q (expected full origin like https://example.com)", entry)
		}
		out = append(out, normalizedOrigin)
	}

	return out, nil
}

func parseNameList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("expected http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
