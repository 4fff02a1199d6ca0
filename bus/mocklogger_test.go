// Copyright 2026 The gnbus Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package bus

import (
	"github.com/stretchr/testify/mock"
)

// mockLogger records every call via testify/mock. Callers that don't set
// expectations on a given method should rely on newMockLogger's default
// Maybe() expectations instead of calling On themselves.
type mockLogger struct {
	mock.Mock
}

var _ Logger = (*mockLogger)(nil)

// newMockLogger returns a mockLogger with every level allowed to be called
// any number of times without prior expectations.
func newMockLogger() *mockLogger {
	m := &mockLogger{}
	m.On("Debug", mock.Anything, mock.Anything).Maybe()
	m.On("Info", mock.Anything, mock.Anything).Maybe()
	m.On("Warn", mock.Anything, mock.Anything).Maybe()
	m.On("Error", mock.Anything, mock.Anything).Maybe()
	return m
}

func (m *mockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *mockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *mockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

// With returns a plain no-op Logger; the mock only tracks calls made
// directly on the Engine's attached logger, not on derived child loggers.
func (m *mockLogger) With(keysAndValues ...any) Logger {
	return NewNopLogger()
}
