package main

import (
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

type commandContext struct {
	stdout io.Writer
	stderr io.Writer
}

func initLogger(w io.Writer, level, runID string) {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
	if runID != "" {
		logger = logger.With("run", runID)
	}
	slog.SetDefault(logger)
}

// buildVersion is set at link time with -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func currentVersion() string {
	if v := strings.TrimSpace(buildVersion); v != "" && v != "dev" {
		return v
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if strings.TrimSpace(bi.Main.Version) != "" && bi.Main.Version != "(devel)" {
			return bi.Main.Version
		}
	}
	return "dev"
}
