// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// CallContext provides request-scoped information and logging to method handlers.
type CallContext struct {
	// Ctx is the request-scoped context, carrying cancellation and deadlines.
	Ctx context.Context
	// RequestID is the X-Request-Id of the HTTP request, generated when the
	// client sent none.
	RequestID string
	// ServerID is the server identifier set via [Service.SetServerID].
	ServerID string
	// Method is the name of the Thrift method being invoked.
	Method string
	// SeqID is the sequence id of the CALL message.
	SeqID int32
	// Format is the negotiated serialization format of the call.
	Format *SerializationFormat
	// Header holds the HTTP request headers.
	Header http.Header
	logger *zap.Logger
}

// Logger returns a logger carrying the method, format and request id.
func (ctx *CallContext) Logger() *zap.Logger {
	if ctx.logger == nil {
		return zap.NewNop()
	}
	return ctx.logger
}
