package main

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"iapBack/internal/config"
)

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Log.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if cfg.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "iap").Logger()
}

// errorLogBridge adapts zerolog for http.Server.ErrorLog.
func errorLogBridge(logger zerolog.Logger) *log.Logger {
	return log.New(logger.With().Str("component", "http_server").Str("level", "error").Logger(), "", 0)
}
