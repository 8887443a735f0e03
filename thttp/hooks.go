// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
)

// Message kind constants for DispatchInfo.MessageType.
const (
	DispatchMessageCall   = "call"
	DispatchMessageOneway = "oneway"
)

// DispatchHook provides observability callpoints around RPC dispatch.
// Implementations must be safe for concurrent use (HTTP transport is concurrent).
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken interface{}

// DispatchInfo carries method metadata passed to hooks.
type DispatchInfo struct {
	Method            string            // Thrift method name
	MessageType       string            // DispatchMessageCall or DispatchMessageOneway
	Format            string            // negotiated format identifier
	Path              string            // HTTP path of the endpoint
	ServiceName       string            // Service name set via SetServiceName
	ServerID          string            // Server identifier
	RequestID         string            // X-Request-Id of the call
	TransportMetadata map[string]string // selected HTTP request headers
}

// CallStatistics holds per-call payload sizes. Sizes are measured before
// content encoding.
type CallStatistics struct {
	RequestBytes  int64
	ResponseBytes int64
}

// RecordInput records the size of the decoded request message.
func (s *CallStatistics) RecordInput(n int) {
	s.RequestBytes += int64(n)
}

// RecordOutput records the size of the encoded response message.
func (s *CallStatistics) RecordOutput(n int) {
	s.ResponseBytes += int64(n)
}

// messageTypeString maps a Thrift message type to a dispatch type string constant.
func messageTypeString(t thrift.TMessageType) string {
	if t == thrift.ONEWAY {
		return DispatchMessageOneway
	}
	return DispatchMessageCall
}
