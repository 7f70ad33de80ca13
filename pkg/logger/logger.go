// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFormat selects the encoder used for log output.
type LogFormat string

const (
	// FormatConsole is the human readable format used for interactive runs.
	FormatConsole LogFormat = "CONSOLE"
	// FormatJSON is the structured format used when logs are shipped somewhere.
	FormatJSON LogFormat = "JSON"
)

var (
	initOnce sync.Once
	// level is shared by every logger handed out so SetLevel affects all components.
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// ParseLevel converts names like "debug" or "WARN" to a zap level.
// "PRODUCTION" and unknown names map to info.
func ParseLevel(name string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return zapcore.InfoLevel
	}

	return lvl
}

// ParseFormat falls back to def for anything that is not a known format.
func ParseFormat(name string, def LogFormat) LogFormat {
	switch LogFormat(strings.ToUpper(name)) {
	case FormatConsole:
		return FormatConsole
	case FormatJSON:
		return FormatJSON
	default:
		return def
	}
}

func consoleTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05 MST"))
}

// New creates a zap logger writing to stdout with the shared atomic level.
func New(format LogFormat) *zap.Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder

	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = consoleTime
		cfg.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core, zap.AddCaller())
}

// Initialize replaces the global zap loggers once, reading LOGGING_LEVEL and LOGGING_FORMAT.
func Initialize() {
	initOnce.Do(func() {
		level.SetLevel(ParseLevel(os.Getenv("LOGGING_LEVEL")))
		format := ParseFormat(os.Getenv("LOGGING_FORMAT"), FormatConsole)

		log := New(format)
		zap.ReplaceGlobals(log)

		log.Info("Logger initialized",
			zap.String("level", level.String()),
			zap.String("format", string(format)))
	})
}

// SetLevel changes the level of every logger created by this package.
func SetLevel(name string) {
	level.SetLevel(ParseLevel(name))
}

// Sync flushes any buffered log entries.
func Sync() error {
	return zap.L().Sync()
}

// For creates a named logger for a specific component.
func For(component string) *zap.SugaredLogger {
	Initialize()

	return zap.S().Named(component)
}
