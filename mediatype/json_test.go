// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package mediatype

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestUnmarshalJSONSimple(t *testing.T) {
	var mt MediaType
	if err := json.Unmarshal([]byte(`"text/plain; charset=utf-8"`), &mt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !mt.Equal(PlainTextUTF8) {
		t.Fatalf("got %q, want %q", mt, PlainTextUTF8)
	}
}

func TestUnmarshalJSONMalformed(t *testing.T) {
	var mt MediaType
	err := json.Unmarshal([]byte(`"text_plain"`), &mt)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrMalformedMediaType) {
		t.Fatalf("expected wrapped ErrMalformedMediaType, got %v", err)
	}
}

func TestUnmarshalJSONNonTextual(t *testing.T) {
	for _, in := range []string{`42`, `true`, `{}`, `["text/plain"]`} {
		var mt MediaType
		err := json.Unmarshal([]byte(in), &mt)
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("%s: expected *DecodeError, got %T: %v", in, err, err)
		}
		if !errors.Is(err, ErrNotString) {
			t.Fatalf("%s: expected ErrNotString, got %v", in, err)
		}
	}
}

func TestJSONStructField(t *testing.T) {
	type endpoint struct {
		Accept MediaType `json:"accept"`
	}
	in := endpoint{Accept: MustParse("application/x-thrift; protocol=TTEXT")}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"accept":"application/x-thrift; protocol=TTEXT"}` {
		t.Fatalf("marshal gave %s", data)
	}
	var out endpoint
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Accept.Equal(in.Accept) {
		t.Fatalf("got %q", out.Accept)
	}

	var null endpoint
	if err := json.Unmarshal([]byte(`{"accept":null}`), &null); err != nil {
		t.Fatalf("null: %v", err)
	}
	if !null.Accept.IsZero() {
		t.Fatalf("null should leave the zero value, got %q", null.Accept)
	}
}
