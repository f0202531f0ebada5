package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. Development prints human readable lines,
// every other environment writes JSON. A non-empty file adds a rotating sink.
func New(environment, file string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if isDevelopment(environment) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		level = zerolog.DebugLevel
	}

	if file != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "subcontract-billing").
		Logger()
}

func isDevelopment(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "", "dev", "development", "local":
		return true
	default:
		return false
	}
}
