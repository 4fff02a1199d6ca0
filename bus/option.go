// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a log-sink. The zero value uses NewNopLogger.
// Equivalent to the reference implementation's attachSerialDebug, which
// may be called before Begin.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the engine's time source. Intended for tests; a
// production Engine should leave this unset.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithDELine overrides the driver-enable line controller. The default is a
// no-op, suitable for a point-to-point transport.
func WithDELine(d DELine) Option {
	return func(e *Engine) { e.de = d }
}

// WithConfig replaces the engine's starting configuration wholesale. Role
// is taken from the New call and always wins over cfg.Role.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		role := e.config.Role
		e.config = cfg
		e.config.Role = role
	}
}

// WithBlockingMode sets the initial blocking mode.
func WithBlockingMode(mode BlockingMode) Option {
	return func(e *Engine) { e.config.BlockingMode = mode }
}

// WithIgnoreInactiveNodes enables or disables liveness suppression. Only
// meaningful for a master.
func WithIgnoreInactiveNodes(ignore bool) Option {
	return func(e *Engine) { e.config.IgnoreInactiveNodes = &ignore }
}
