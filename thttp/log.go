// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured log keys used by the server and client.
const (
	LogKeyPath            = "path"
	LogKeyMethod          = "method"
	LogKeyFormat          = "format"
	LogKeyRequestID       = "request_id"
	LogKeyContentType     = "content_type"
	LogKeyAccept          = "accept"
	LogKeyStatus          = "status"
	LogKeyExceptionType   = "exception_type"
	LogKeyContentEncoding = "content_encoding"
)

// formatField logs a format by identifier.
func formatField(f *SerializationFormat) zap.Field {
	if f == nil {
		return zap.Skip()
	}
	return zap.String(LogKeyFormat, f.id)
}

// exceptionField logs an application exception type by name.
func exceptionField(e *ApplicationError) zap.Field {
	return zap.String(LogKeyExceptionType, ApplicationErrorName(e.Type))
}

// negotiationLevel is the level negotiation failures are logged at. They are
// client mistakes, not server faults.
const negotiationLevel = zapcore.DebugLevel

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
