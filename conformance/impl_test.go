// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Query-farm/thttp/thttp"
)

func TestMountUnknownFormat(t *testing.T) {
	reg := thttp.MustThriftRegistry()
	svc := thttp.NewService()
	RegisterHello(svc)
	err := Mount(thttp.NewHttpServer(reg), reg, svc, []EndpointConfig{{Path: "/x", Formats: []string{"tprotobuf"}}})
	if !errors.Is(err, thttp.ErrUnknownSerializationFormat) || !strings.Contains(err.Error(), "/x") {
		t.Fatalf("err = %v", err)
	}
}

func TestDefaultEndpointPolicies(t *testing.T) {
	reg := thttp.MustThriftRegistry()
	svc := thttp.NewService()
	RegisterMethods(svc, nil)
	h := thttp.NewHttpServer(reg)
	if err := Mount(h, reg, svc, DefaultEndpoints); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	tests := []struct {
		path        string
		contentType string
		status      int
	}{
		{"/hello", "application/x-thrift; protocol=TCOMPACT", http.StatusOK},
		{"/hellobinaryonly", "application/x-thrift; protocol=TBINARY", http.StatusOK},
		{"/hellobinaryonly", "application/x-thrift; protocol=TCOMPACT", http.StatusUnsupportedMediaType},
		{"/hellotextonly", "application/x-thrift; protocol=TBINARY", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		f, ok := reg.Find(mustParse(t, tt.contentType))
		if !ok {
			t.Fatalf("unknown content type %q", tt.contentType)
		}
		payload := encodeHello(t, f)
		req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(string(payload)))
		req.Header.Set("Content-Type", tt.contentType)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Fatalf("%s %s: status = %d, want %d: %s", tt.path, tt.contentType, rec.Code, tt.status, rec.Body.String())
		}
	}
}

func TestRecorderNil(t *testing.T) {
	svc := thttp.NewService()
	RegisterMethods(svc, nil)
	methods := strings.Join(svc.Methods(), ",")
	for _, m := range []string{"hello", "record", "call_info", "echo_all_types"} {
		if !strings.Contains(methods, m) {
			t.Fatalf("method %s not registered: %s", m, methods)
		}
	}
	if got := (&Recorder{}).Values(); len(got) != 0 {
		t.Fatalf("empty recorder values = %v", got)
	}
}
