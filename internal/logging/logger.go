package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"kneeflexiq/internal/config"
)

// New builds the process logger: colored tint output for dev builds, JSON
// otherwise. When cfg.LogFile is set the same records are also written to a
// rotating file.
func New(cfg config.Common, version string, appName string) *slog.Logger {
	return newLogger(cfg, version, appName, os.Stdout)
}

func newLogger(cfg config.Common, version string, appName string, stdout io.Writer) *slog.Logger {
	var out io.Writer = stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	if version == "dev" {
		h := tint.NewHandler(out, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.LogFile != "",
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}
