// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHook struct {
	mu     sync.Mutex
	starts []DispatchInfo
	ends   []error
	stats  []CallStatistics
}

func (h *recordingHook) OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, info)
	return ctx, len(h.starts)
}

func (h *recordingHook) OnDispatchEnd(_ context.Context, _ HookToken, _ DispatchInfo, stats *CallStatistics, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, err)
	h.stats = append(h.stats, *stats)
}

type panickingHook struct{}

func (panickingHook) OnDispatchStart(context.Context, DispatchInfo) (context.Context, HookToken) {
	panic("start")
}

func (panickingHook) OnDispatchEnd(context.Context, HookToken, DispatchInfo, *CallStatistics, error) {
	panic("end")
}

func testService() *Service {
	svc := NewService()
	svc.SetServiceName("Greeter")
	Unary(svc, "greet", func(_ context.Context, call *CallContext, p greetArgs) (string, error) {
		if p.Name == "fail" {
			return "", errors.New("failed on purpose")
		}
		return "Hello, " + p.Name + " via " + call.Format.ID(), nil
	})
	Oneway(svc, "fire", func(context.Context, *CallContext, greetArgs) error { return nil })
	return svc
}

func serveOnce(t *testing.T, svc *Service, f *SerializationFormat, hdr MessageHeader, args any) []byte {
	t.Helper()
	payload, err := f.Codec().Encode(context.Background(), hdr, args)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	resp, err := svc.serve(context.Background(), inbound{format: f, payload: payload, path: "/t", requestID: "r1"})
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	return resp
}

func decodeException(t *testing.T, f *SerializationFormat, data []byte) ApplicationError {
	t.Helper()
	hdr, body, err := f.Codec().Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if hdr.Type != thrift.EXCEPTION {
		t.Fatalf("message type = %v, want EXCEPTION", hdr.Type)
	}
	var exc ApplicationError
	if err := body.DecodeBody(context.Background(), &exc); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	return exc
}

func TestServeExceptions(t *testing.T) {
	reg := MustThriftRegistry()
	svc := testService()
	for _, f := range reg.Formats() {
		exc := decodeException(t, f, serveOnce(t, svc, f, MessageHeader{Name: "nope", Type: thrift.CALL, SeqID: 1}, greetArgs{}))
		if exc.Type != thrift.UNKNOWN_METHOD || !strings.Contains(exc.Message, "greet") {
			t.Fatalf("%s: unknown method exception = %+v", f.ID(), exc)
		}

		exc = decodeException(t, f, serveOnce(t, svc, f, MessageHeader{Name: "greet", Type: thrift.REPLY, SeqID: 1}, &Result{Success: "x"}))
		if exc.Type != thrift.INVALID_MESSAGE_TYPE_EXCEPTION {
			t.Fatalf("%s: invalid message type exception = %+v", f.ID(), exc)
		}

		exc = decodeException(t, f, serveOnce(t, svc, f, MessageHeader{Name: "greet", Type: thrift.CALL, SeqID: 1}, greetArgs{Name: "fail"}))
		if exc.Type != thrift.INTERNAL_ERROR || exc.Message != "failed on purpose" {
			t.Fatalf("%s: internal error exception = %+v", f.ID(), exc)
		}
	}
}

func TestServeDebugErrors(t *testing.T) {
	f := MustThriftRegistry().Default()
	svc := testService()
	svc.SetDebugErrors(true)
	exc := decodeException(t, f, serveOnce(t, svc, f, MessageHeader{Name: "greet", Type: thrift.CALL, SeqID: 1}, greetArgs{Name: "fail"}))
	if !strings.HasPrefix(exc.Message, "*errors.errorString: failed on purpose") || !strings.Contains(exc.Message, "\n  at ") {
		t.Fatalf("debug message = %q", exc.Message)
	}
}

func TestServeOneway(t *testing.T) {
	f := MustThriftRegistry().Default()
	svc := testService()
	if resp := serveOnce(t, svc, f, MessageHeader{Name: "fire", Type: thrift.ONEWAY, SeqID: 1}, greetArgs{}); resp != nil {
		t.Fatalf("oneway response = %x", resp)
	}
	// Oneway calls to unknown methods get no exception either.
	if resp := serveOnce(t, svc, f, MessageHeader{Name: "nope", Type: thrift.ONEWAY, SeqID: 1}, greetArgs{}); resp != nil {
		t.Fatalf("oneway unknown method response = %x", resp)
	}
}

func TestServeMalformed(t *testing.T) {
	f := MustThriftRegistry().Default()
	_, err := testService().serve(context.Background(), inbound{format: f, payload: []byte{0x80}})
	if !errors.Is(err, errBadMessage) {
		t.Fatalf("err = %v, want errBadMessage", err)
	}
}

func TestDispatchHook(t *testing.T) {
	reg := MustThriftRegistry()
	text, _ := reg.Lookup(FormatText)
	svc := testService()
	svc.SetServerID("s1")
	hook := &recordingHook{}
	svc.SetDispatchHook(hook)

	serveOnce(t, svc, text, MessageHeader{Name: "greet", Type: thrift.CALL, SeqID: 1}, greetArgs{Name: "a"})
	serveOnce(t, svc, text, MessageHeader{Name: "greet", Type: thrift.CALL, SeqID: 2}, greetArgs{Name: "fail"})
	serveOnce(t, svc, text, MessageHeader{Name: "fire", Type: thrift.ONEWAY, SeqID: 3}, greetArgs{})

	if len(hook.starts) != 3 || len(hook.ends) != 3 {
		t.Fatalf("hook calls: %d starts, %d ends", len(hook.starts), len(hook.ends))
	}
	info := hook.starts[0]
	if info.Method != "greet" || info.Format != FormatText || info.Path != "/t" || info.ServiceName != "Greeter" ||
		info.ServerID != "s1" || info.RequestID != "r1" || info.MessageType != DispatchMessageCall {
		t.Fatalf("dispatch info = %+v", info)
	}
	if hook.starts[2].MessageType != DispatchMessageOneway {
		t.Fatalf("oneway message type = %q", hook.starts[2].MessageType)
	}
	if hook.ends[0] != nil || hook.ends[1] == nil || hook.ends[2] != nil {
		t.Fatalf("hook errors = %v", hook.ends)
	}
	if hook.stats[0].RequestBytes == 0 || hook.stats[0].ResponseBytes == 0 || hook.stats[2].ResponseBytes != 0 {
		t.Fatalf("hook stats = %+v", hook.stats)
	}
}

func TestDispatchHookPanics(t *testing.T) {
	f := MustThriftRegistry().Default()
	svc := testService()
	svc.SetDispatchHook(panickingHook{})
	data := serveOnce(t, svc, f, MessageHeader{Name: "greet", Type: thrift.CALL, SeqID: 1}, greetArgs{Name: "a"})
	_, body, err := f.Codec().Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var got string
	if err := body.DecodeBody(context.Background(), &Result{Success: &got}); err != nil || got != "Hello, a via tbinary" {
		t.Fatalf("result = %q, %v", got, err)
	}
}

func TestRegistrationPanics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}
	svc := testService()
	mustPanic("duplicate", func() {
		Unary(svc, "greet", func(context.Context, *CallContext, greetArgs) (string, error) { return "", nil })
	})
	mustPanic("empty name", func() {
		UnaryVoid(svc, "", func(context.Context, *CallContext, greetArgs) error { return nil })
	})
	mustPanic("non-struct params", func() {
		Unary(svc, "bad", func(context.Context, *CallContext, string) (string, error) { return "", nil })
	})
	mustPanic("interface result", func() {
		Unary(svc, "bad", func(context.Context, *CallContext, greetArgs) (any, error) { return nil, nil })
	})
	mustPanic("unsupported field type", func() {
		type withChan struct {
			C chan int `thrift:"c,1"`
		}
		Oneway(svc, "bad", func(context.Context, *CallContext, withChan) error { return nil })
	})
	if got := strings.Join(svc.Methods(), ","); got != "fire,greet" {
		t.Fatalf("Methods() = %s", got)
	}
}

func TestHandlePanics(t *testing.T) {
	reg := MustThriftRegistry()
	other := MustThriftRegistry()
	h := NewHttpServer(reg)
	svc := testService()

	foreign, err := other.NewPolicy(FormatText, FormatText)
	if err != nil {
		t.Fatal(err)
	}
	for name, fn := range map[string]func(){
		"relative path":  func() { h.Handle("hello", svc, EndpointPolicy{}) },
		"nil service":    func() { h.Handle("/x", nil, EndpointPolicy{}) },
		"foreign format": func() { h.Handle("/y", svc, foreign) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", name)
				}
			}()
			fn()
		}()
	}
}

func TestNegotiationFailureLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := MustThriftRegistry()
	h := NewHttpServer(reg)
	h.SetLogger(zap.New(core))
	h.Handle("/bin", testService(), mustPolicy(t, reg, "", FormatBinary))

	req := httptest.NewRequest(http.MethodPost, "/bin", strings.NewReader("{}"))
	req.Header.Set(HeaderContentType, "application/x-thrift; protocol=TTEXT")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", rec.Code)
	}
	entries := logs.FilterMessage("negotiation failed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d negotiation failures", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields[LogKeyPath] != "/bin" || fields[LogKeyStatus] != int64(http.StatusUnsupportedMediaType) {
		t.Fatalf("log fields = %v", fields)
	}
}

func TestAcceptsEncoding(t *testing.T) {
	tests := []struct {
		values []string
		want   bool
	}{
		{nil, false},
		{[]string{"gzip"}, false},
		{[]string{"gzip, zstd"}, true},
		{[]string{"gzip", "ZSTD;q=0.5"}, true},
		{[]string{"zstd;q=0"}, false},
		{[]string{"zstd; q=0.0"}, false},
	}
	for _, tt := range tests {
		if got := acceptsEncoding(tt.values, encodingZstd); got != tt.want {
			t.Fatalf("acceptsEncoding(%q) = %v, want %v", tt.values, got, tt.want)
		}
	}
}
