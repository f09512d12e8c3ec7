// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultBufferSize is how many entries /api/logs can return.
const DefaultBufferSize = 500

var (
	buffer  = NewLogBuffer(DefaultBufferSize)
	rotator *lumberjack.Logger
)

// Config holds logger configuration.
type Config struct {
	Level      string
	Path       string // directory for log files, empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Init initializes the global logger with colored output
func Init() {
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(consoleWriter(os.Stdout), buffer)).
		With().
		Timestamp().
		Logger()
}

// Configure rebuilds the global logger from cfg, adding a rotating log file
// when a path is set. Entries keep flowing into the recent log buffer.
func Configure(cfg Config) error {
	writers := []io.Writer{consoleWriter(os.Stdout), buffer}

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return err
		}

		Close()
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Path, "trimmarr.log"),
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		writers = append(writers, rotator)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()

	return nil
}

// Buffer returns the in-memory buffer of recent log entries.
func Buffer() *LogBuffer {
	return buffer
}

// Close closes the log file if one is open.
func Close() {
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	colors := map[string]string{
		"trace": "\033[36m", // Cyan
		"debug": "\033[33m", // Yellow
		"info":  "\033[34m", // Blue
		"warn":  "\033[33m", // Yellow
		"error": "\033[31m", // Red
		"fatal": "\033[35m", // Magenta
		"panic": "\033[35m", // Magenta
	}

	return zerolog.ConsoleWriter{
		Out:     out,
		NoColor: false,
		FormatLevel: func(i interface{}) string {
			level, ok := i.(string)
			if !ok {
				return "???"
			}
			color := colors[level]
			if color == "" {
				color = "\033[37m" // Default to white
			}
			return color + strings.ToUpper(level) + "\033[0m"
		},
	}
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
