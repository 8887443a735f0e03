// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command thttp-conformance-go serves the conformance fixtures over HTTP.
// It prints PORT:<n> once listening so test harnesses can connect.
//
// Usage:
//
//	thttp-conformance-go [-config thttp.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Query-farm/thttp/conformance"
	"github.com/Query-farm/thttp/internal/config"
	"github.com/Query-farm/thttp/internal/logging"
	"github.com/Query-farm/thttp/thttp"
	thttpotel "github.com/Query-farm/thttp/thttp/otel"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "thttp-conformance-go: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := thttp.MustThriftRegistry()
	svc := thttp.NewService()
	svc.SetServiceName("HelloService")
	svc.SetServerID(cfg.ServerID)
	svc.SetDebugErrors(cfg.DebugErrors)
	conformance.RegisterMethods(svc, nil)

	shutdownTelemetry, err := setupTelemetry(svc, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	httpServer := thttp.NewHttpServer(reg)
	httpServer.SetLogger(logger)
	httpServer.SetCompressionLevel(cfg.CompressionLevel)
	if cfg.MaxRequestBytes > 0 {
		httpServer.SetMaxRequestBytes(cfg.MaxRequestBytes)
	}
	if err := conformance.Mount(httpServer, reg, svc, endpoints(cfg.Endpoints)); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Printf("PORT:%d\n", port)
	_ = os.Stdout.Sync()
	logger.Info("serving", zap.String("addr", listener.Addr().String()),
		zap.Strings("formats", reg.KnownFormats()))

	srv := &http.Server{Handler: httpServer, ReadHeaderTimeout: 10 * time.Second}

	// Catch SIGTERM/SIGINT so the process exits cleanly and flushes
	// coverage data when built with -cover.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func endpoints(cfg []config.EndpointConfig) []conformance.EndpointConfig {
	if len(cfg) == 0 {
		return conformance.DefaultEndpoints
	}
	out := make([]conformance.EndpointConfig, len(cfg))
	for i, ep := range cfg {
		out[i] = conformance.EndpointConfig{Path: ep.Path, Formats: ep.Formats, Default: ep.Default}
	}
	return out
}

// setupTelemetry instruments svc with stdout exporters when enabled and
// returns a function flushing them.
func setupTelemetry(svc *thttp.Service, cfg config.TelemetryConfig) (func(), error) {
	if !cfg.Traces && !cfg.Metrics {
		return func() {}, nil
	}
	otelCfg := thttpotel.DefaultConfig()
	otelCfg.EnableTracing = cfg.Traces
	otelCfg.EnableMetrics = cfg.Metrics

	var shutdowns []func(context.Context) error
	if cfg.Traces {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otelCfg.TracerProvider = tp
		shutdowns = append(shutdowns, tp.Shutdown)
	}
	if cfg.Metrics {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
		otelCfg.MeterProvider = mp
		shutdowns = append(shutdowns, mp.Shutdown)
	}
	thttpotel.InstrumentService(svc, otelCfg)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, fn := range shutdowns {
			_ = fn(ctx)
		}
	}, nil
}
