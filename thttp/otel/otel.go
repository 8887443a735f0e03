// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package thttpotel provides OpenTelemetry instrumentation for thttp
// services. It implements the [thttp.DispatchHook] interface to add
// distributed tracing and metrics to Thrift dispatch, tagged with the
// negotiated serialization format.
//
// Usage:
//
//	svc := thttp.NewService()
//	// ... register methods ...
//	thttpotel.InstrumentService(svc, thttpotel.DefaultConfig())
package thttpotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Query-farm/thttp/thttp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "thttp"

// Attribute keys set on spans and metrics.
const (
	AttrSystem      = "rpc.system"
	AttrService     = "rpc.service"
	AttrMethod      = "rpc.method"
	AttrFormat      = "rpc.thrift.format"
	AttrMessageType = "rpc.thrift.message_type"
	AttrServerID    = "rpc.thrift.server_id"
	AttrPath        = "url.path"
	AttrErrorType   = "rpc.thrift.error_type"
)

// OtelConfig configures OpenTelemetry instrumentation for a thttp service.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator extracts trace context from transport metadata.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed dispatches.
	// Default true.
	RecordExceptions bool
	// ServiceName is the rpc.service attribute value.
	// Defaults to Service.ServiceName() or "ThriftService".
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with tracing, metrics and exception
// recording on. Providers and the propagator are resolved from the global
// OTel SDK at instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentService attaches OpenTelemetry instrumentation to a service.
// The hook is installed via [thttp.Service.SetDispatchHook].
func InstrumentService(svc *thttp.Service, cfg OtelConfig) {
	svc.SetDispatchHook(NewHook(cfg, svc.ServiceName()))
}

// NewHook builds the dispatch hook without installing it. serviceName is
// used when cfg.ServiceName is empty.
func NewHook(cfg OtelConfig, serviceName string) thttp.DispatchHook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	if cfg.ServiceName == "" {
		if serviceName != "" {
			cfg.ServiceName = serviceName
		} else {
			cfg.ServiceName = "ThriftService"
		}
	}

	hook := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		hook.requestCounter, _ = meter.Int64Counter("rpc.server.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of Thrift requests"),
		)
		hook.durationHistogram, _ = meter.Float64Histogram("rpc.server.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of Thrift requests"),
		)
		hook.sizeHistogram, _ = meter.Int64Histogram("rpc.server.response.size",
			metric.WithUnit("By"),
			metric.WithDescription("Size of encoded Thrift responses"),
		)
	}
	return hook
}

// otelHook implements thttp.DispatchHook with OpenTelemetry tracing and metrics.
type otelHook struct {
	cfg               OtelConfig
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
	sizeHistogram     metric.Int64Histogram
}

// spanToken is the HookToken returned by OnDispatchStart.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// OnDispatchStart extracts parent trace context and starts a server span.
func (h *otelHook) OnDispatchStart(ctx context.Context, info thttp.DispatchInfo) (context.Context, thttp.HookToken) {
	// traceparent/tracestate arrive in the transport metadata
	if h.cfg.Propagator != nil && info.TransportMetadata != nil {
		ctx = h.cfg.Propagator.Extract(ctx, propagation.MapCarrier(info.TransportMetadata))
	}

	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrSystem, "thrift"),
		attribute.String(AttrService, h.cfg.ServiceName),
		attribute.String(AttrMethod, info.Method),
		attribute.String(AttrFormat, info.Format),
		attribute.String(AttrMessageType, info.MessageType),
		attribute.String(AttrPath, info.Path),
	}
	if info.ServerID != "" {
		attrs = append(attrs, attribute.String(AttrServerID, info.ServerID))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	if v, ok := info.TransportMetadata[thttp.MetaRemoteAddr]; ok && v != "" {
		attrs = append(attrs, attribute.String("net.peer.ip", v))
	}
	if v, ok := info.TransportMetadata[thttp.MetaUserAgent]; ok && v != "" {
		attrs = append(attrs, attribute.String("user_agent.original", v))
	}

	ctx, span := h.tracer.Start(ctx, fmt.Sprintf("thttp/%s", info.Method),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records span attributes, metrics, and ends the span.
func (h *otelHook) OnDispatchEnd(ctx context.Context, token thttp.HookToken, info thttp.DispatchInfo, stats *thttp.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String(AttrSystem, "thrift"),
			attribute.String(AttrService, h.cfg.ServiceName),
			attribute.String(AttrMethod, info.Method),
			attribute.String(AttrFormat, info.Format),
			attribute.String("status", status),
		)
		if h.requestCounter != nil {
			h.requestCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
		if h.sizeHistogram != nil && stats != nil && info.MessageType == thttp.DispatchMessageCall {
			h.sizeHistogram.Record(ctx, stats.ResponseBytes, metricAttrs)
		}
	}

	if st.span != nil && st.span.IsRecording() {
		if stats != nil {
			st.span.SetAttributes(
				attribute.Int64("rpc.thrift.request_bytes", stats.RequestBytes),
				attribute.Int64("rpc.thrift.response_bytes", stats.ResponseBytes),
			)
		}

		if err != nil {
			st.span.SetStatus(codes.Error, err.Error())
			if h.cfg.RecordExceptions {
				st.span.RecordError(err)
			}
			st.span.SetAttributes(attribute.String(AttrErrorType, errorType(err)))
		} else {
			st.span.SetStatus(codes.Ok, "")
		}
	}
	if st.span != nil {
		st.span.End()
	}
}

// errorType names an error for the error type attribute: the exception
// type for application errors, the Go type otherwise.
func errorType(err error) string {
	var appErr *thttp.ApplicationError
	if errors.As(err, &appErr) {
		return thttp.ApplicationErrorName(appErr.Type)
	}
	return fmt.Sprintf("%T", err)
}
