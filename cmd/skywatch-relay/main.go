package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/skywatch/skywatch-relay/internal/config"
	"github.com/skywatch/skywatch-relay/internal/httpserver"
)

// Injected with -ldflags "-X main.buildCommit=... -X main.buildTime=...".
var (
	buildCommit = ""
	buildTime   = ""
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run returns the process exit code: 2 for bad configuration, 1 for a
// runtime failure.
func run(args []string, stderr io.Writer) int {
	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	slog.SetDefault(logger)

	logger.Info("starting skywatch-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"roboflow_model", fmt.Sprintf("%s/%d", cfg.Roboflow.Project, cfg.Roboflow.Version),
		"roboflow_credential_set", cfg.Roboflow.HasCredential(),
		"webrtc_init_host", safeURLHost(cfg.Roboflow.WebRTCInitURL),
		"predict_confidence", cfg.PredictConfidence,
		"predict_overlap", cfg.PredictOverlap,
		"static_dir", cfg.StaticDir,
	)
	logStartupWarnings(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Listen before resolving the model so a busy port fails fast.
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.ListenAddr, "err", err)
		return 1
	}

	a := newApp(ctx, cfg, logger, buildInfo(), nil)
	if err := a.serve(ctx, ln, cfg.ShutdownTimeout); err != nil {
		logger.Error("skywatch-relay stopped", "err", err)
		return 1
	}
	logger.Info("skywatch-relay stopped")
	return 0
}

// buildInfo prefers the ldflags values and falls back to the VCS stamp the Go
// toolchain embeds in module builds.
func buildInfo() httpserver.BuildInfo {
	info := httpserver.BuildInfo{Commit: buildCommit, BuildTime: buildTime}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, setting := range bi.Settings {
		switch {
		case setting.Key == "vcs.revision" && info.Commit == "":
			info.Commit = setting.Value
		case setting.Key == "vcs.time" && info.BuildTime == "":
			info.BuildTime = setting.Value
		}
	}
	return info
}
