// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/Query-farm/thttp/mediatype"
	"github.com/Query-farm/thttp/thttp"
)

func BenchmarkParseMediaType(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := mediatype.Parse(ContentTypes[i%len(ContentTypes)]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFind(b *testing.B) {
	reg := thttp.MustThriftRegistry()
	mts := make([]mediatype.MediaType, len(ContentTypes))
	for i, ct := range ContentTypes {
		mts[i] = mediatype.MustParse(ct)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Find(mts[i%len(mts)])
	}
}

func BenchmarkNegotiate(b *testing.B) {
	reg := thttp.MustThriftRegistry()
	policy := reg.AllFormatsPolicy()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Negotiate(ContentTypes[i%len(ContentTypes)], Accepts[i%len(Accepts)], policy)
	}
}

func BenchmarkCodecs(b *testing.B) {
	reg := thttp.MustThriftRegistry()
	args := RoundtripTypesParams{
		Color:   "GREEN",
		Mapping: map[string]int64{"a": 1, "b": 2, "c": 3},
		Tags:    []int64{5, 3, 1},
	}
	hdr := thttp.MessageHeader{Name: "roundtrip_types", Type: thrift.CALL, SeqID: 1}
	ctx := context.Background()

	for _, f := range reg.Formats() {
		b.Run(f.ID(), func(b *testing.B) {
			codec := f.Codec()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				data, err := codec.Encode(ctx, hdr, args)
				if err != nil {
					b.Fatal(err)
				}
				_, body, err := codec.Decode(ctx, data)
				if err != nil {
					b.Fatal(err)
				}
				var out RoundtripTypesParams
				if err := body.DecodeBody(ctx, &out); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkHTTPGreet(b *testing.B) {
	reg := thttp.MustThriftRegistry()
	svc := thttp.NewService()
	RegisterMethods(svc)
	h := thttp.NewHttpServer(reg)
	h.HandleAllFormats("/bench", svc)

	ctx := context.Background()
	for _, f := range reg.Formats() {
		b.Run(f.ID(), func(b *testing.B) {
			payload, err := f.Codec().Encode(ctx,
				thttp.MessageHeader{Name: "greet", Type: thrift.CALL, SeqID: 1}, GreetParams{Name: "bench"})
			if err != nil {
				b.Fatal(err)
			}
			ct := f.MediaType().String()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				req := httptest.NewRequest(http.MethodPost, "/bench", bytes.NewReader(payload))
				req.Header.Set("Content-Type", ct)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code != http.StatusOK {
					b.Fatalf("status %d: %s", rec.Code, rec.Body.String())
				}
			}
		})
	}
}
