// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/Query-farm/thttp/mediatype"
	"github.com/Query-farm/thttp/thttp"
)

func mustParse(t *testing.T, s string) mediatype.MediaType {
	t.Helper()
	mt, err := mediatype.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return mt
}

func encodeHello(t *testing.T, f *thttp.SerializationFormat) []byte {
	t.Helper()
	data, err := f.Codec().Encode(context.Background(),
		thttp.MessageHeader{Name: "hello", Type: thrift.CALL, SeqID: 1}, HelloArgs{Name: "Trustin"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}
