// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logFileMu sync.Mutex
	logFile   *lumberjack.Logger
)

func parseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}

// ApplyLogConfig configures the global logger from the current settings.
func (c *AppConfig) ApplyLogConfig() {
	cfg := c.Current()
	SetupLogger(cfg.LogLevel, c.GetLogPath(), cfg.LogMaxSize, cfg.LogMaxBackups)
}

// SetupLogger points the global zerolog logger at stdout and, when logPath is
// set, a rotated log file. Stdout gets the console format on a terminal and
// JSON otherwise.
func SetupLogger(level, logPath string, maxSize, maxBackups int) {
	lvl, err := parseLevel(level)

	var stdout io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	writers := []io.Writer{stdout}
	if file := rotateTo(logPath, maxSize, maxBackups); file != nil {
		writers = append(writers, file)
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	if err != nil {
		log.Warn().Err(err).Msg("config: falling back to INFO log level")
	}
}

func rotateTo(logPath string, maxSize, maxBackups int) io.Writer {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile != nil && (logFile.Filename != logPath || logFile.MaxSize != maxSize || logFile.MaxBackups != maxBackups) {
		_ = logFile.Close()
		logFile = nil
	}
	if logPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "config: create log directory: %v\n", err)
		return nil
	}

	if logFile == nil {
		logFile = &lumberjack.Logger{Filename: logPath, MaxSize: maxSize, MaxBackups: maxBackups}
	}
	return logFile
}
