// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import (
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
)

// Logger is the log-sink capability the engine calls with structured
// events (frame accepted, dropped, retry, and so on). An Engine built by New
// uses a no-op Logger until one is attached, so attaching one is optional.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

// nopLogger discards everything. It is the Engine default.
type nopLogger struct{}

// NewNopLogger returns a Logger that discards every call.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any)     {}
func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (n nopLogger) With(...any) Logger     { return n }

// slogLogger adapts log/slog to Logger. In development (ENV=development)
// it renders through a human-readable console handler; otherwise it emits
// structured JSON, matching the two-handler split used elsewhere in this
// codebase for service logs.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger builds a Logger backed by log/slog at the given level.
func NewSlogLogger(level slog.Level) Logger {
	var handler slog.Handler
	if os.Getenv("ENV") == "development" {
		handler = console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slogLogger{l: slog.New(handler)}
}

func (s slogLogger) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
func (s slogLogger) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
func (s slogLogger) Warn(msg string, kv ...any)  { s.l.Warn(msg, kv...) }
func (s slogLogger) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }
func (s slogLogger) With(kv ...any) Logger       { return slogLogger{l: s.l.With(kv...)} }
