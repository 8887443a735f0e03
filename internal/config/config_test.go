// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thttp.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("THTTP_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:0" || cfg.CompressionLevel != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Log.Level != "info" || len(cfg.Log.Outputs) != 1 || cfg.Log.Outputs[0] != "stderr" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if len(cfg.Endpoints) != 0 {
		t.Fatalf("expected no endpoints, got %v", cfg.Endpoints)
	}
	if cfg.DebugErrors {
		t.Fatal("debug errors must be off by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: 127.0.0.1:8080
server_id: conf-1
debug_errors: true
log:
  level: debug
  format: json
telemetry:
  traces: true
endpoints:
  - path: /hello
  - path: /hellotextonly
    formats: [ttext]
    default: ttext
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.ServerID != "conf-1" || !cfg.DebugErrors {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		t.Fatalf("unexpected telemetry: %+v", cfg.Telemetry)
	}
	if len(cfg.Endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(cfg.Endpoints))
	}
	ep := cfg.Endpoints[1]
	if ep.Path != "/hellotextonly" || len(ep.Formats) != 1 || ep.Formats[0] != "ttext" || ep.Default != "ttext" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("THTTP_LOG_LEVEL", "warn")
	t.Setenv("THTTP_COMPRESSION_LEVEL", "0")
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("expected env level warn, got %q", cfg.Log.Level)
	}
	if cfg.CompressionLevel != 0 {
		t.Fatalf("expected compression 0, got %d", cfg.CompressionLevel)
	}
}

func TestLoadInvalid(t *testing.T) {
	for _, body := range []string{
		"log:\n  level: loud\n",
		"log:\n  format: xml\n",
		"endpoints:\n  - path: hello\n",
	} {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}
