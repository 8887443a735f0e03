// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"errors"
	"slices"
	"testing"

	"github.com/Query-farm/thttp/mediatype"
)

func mustFormat(t *testing.T, id string, mts ...string) *SerializationFormat {
	t.Helper()
	parsed := make([]mediatype.MediaType, len(mts))
	for i, s := range mts {
		parsed[i] = mediatype.MustParse(s)
	}
	f, err := NewSerializationFormat(id, BinaryCodec(), []string{ProtocolParameter}, parsed...)
	if err != nil {
		t.Fatalf("NewSerializationFormat(%q): %v", id, err)
	}
	return f
}

func TestFindByMediaType(t *testing.T) {
	reg := MustThriftRegistry()
	tests := []struct {
		in   string
		want string // empty means no match
	}{
		{"application/x-thrift; protocol=TBINARY", FormatBinary},
		{"application/x-thrift; protocol=tbinary", FormatBinary},
		{`application/x-thrift;protocol="TBinary"`, FormatBinary},
		{"APPLICATION/X-THRIFT; PROTOCOL=TCOMPACT", FormatCompact},
		{"application/x-thrift; protocol=TJSON", FormatJSON},
		{"application/x-thrift; protocol=TTEXT", FormatText},
		{"application/vnd.apache.thrift.binary", FormatBinary},
		{"application/vnd.apache.thrift.compact", FormatCompact},
		{"application/vnd.apache.thrift.json", FormatJSON},
		{"application/vnd.apache.thrift.text", FormatText},
		{"application/x-thrift;protocol=TCompact", FormatCompact},
		{`application/x-thrift ; protocol="TjSoN"`, FormatJSON},
		{"application/x-thrift ; version=3;protocol=ttext", ""},
		{"application/x-thrift; protocol=TBINARY; version=3", ""},
		{"application/vnd.apache.thrift.binary; charset=utf-8", ""},
		{"application/x-thrift", ""},
		{"application/x-thrift; protocol=TPROTOBUF", ""},
		{"application/json", ""},
		{"text/plain", ""},
	}
	for _, tt := range tests {
		f, ok := reg.Find(mediatype.MustParse(tt.in))
		if tt.want == "" {
			if ok {
				t.Fatalf("Find(%q) = %q, want no match", tt.in, f.ID())
			}
			continue
		}
		if !ok || f.ID() != tt.want {
			t.Fatalf("Find(%q) = %v, %v; want %q", tt.in, f, ok, tt.want)
		}
	}
}

func TestCanonicalMediaTypeRoundTrip(t *testing.T) {
	reg := MustThriftRegistry()
	for _, f := range reg.Formats() {
		s := f.MediaType().String()
		mt, err := mediatype.Parse(s)
		if err != nil {
			t.Fatalf("%s: Parse(%q): %v", f.ID(), s, err)
		}
		got, ok := reg.Find(mt)
		if !ok || got != f {
			t.Fatalf("%s: canonical %q resolves to %v", f.ID(), s, got)
		}
	}
	if got := reg.Default().MediaType().String(); got != "application/x-thrift; protocol=TBINARY" {
		t.Fatalf("default canonical media type = %q", got)
	}
}

func TestKnownFormats(t *testing.T) {
	reg := MustThriftRegistry()
	want := []string{FormatBinary, FormatCompact, FormatJSON, FormatText}
	if got := reg.KnownFormats(); !slices.Equal(got, want) {
		t.Fatalf("KnownFormats() = %v, want %v", got, want)
	}
	if reg.Default().ID() != FormatBinary {
		t.Fatalf("default = %q, want %q", reg.Default().ID(), FormatBinary)
	}
}

func TestLookupAliases(t *testing.T) {
	reg := MustThriftRegistry()
	tests := map[string]string{
		FormatBinary:  FormatBinary,
		"TBINARY":     FormatBinary,
		" ttext ":     FormatText,
		ThriftBinary:  FormatBinary,
		ThriftCompact: FormatCompact,
		ThriftJSON:    FormatJSON,
		ThriftText:    FormatText,
	}
	for id, want := range tests {
		f, ok := reg.Lookup(id)
		if !ok || f.ID() != want {
			t.Fatalf("Lookup(%q) = %v, %v; want %q", id, f, ok, want)
		}
	}
	if _, ok := reg.Lookup("tprotobuf"); ok {
		t.Fatal("Lookup(tprotobuf) succeeded")
	}
	// Aliases are not separate formats.
	if slices.Contains(reg.KnownFormats(), ThriftBinary) {
		t.Fatalf("alias listed in KnownFormats: %v", reg.KnownFormats())
	}
	if got := reg.AliasNames(); len(got) != 4 || got[0] != ThriftBinary {
		t.Fatalf("AliasNames() = %v", got)
	}
}

func TestBackwardCompatibleFormats(t *testing.T) {
	reg := MustThriftRegistry()
	formats := ThriftFormats(reg)
	if len(formats) != 4 {
		t.Fatalf("ThriftFormats() returned %d formats", len(formats))
	}
	for i, legacy := range []string{ThriftBinary, ThriftCompact, ThriftJSON, ThriftText} {
		f, ok := reg.Lookup(legacy)
		if !ok || f != formats[i] {
			t.Fatalf("legacy %q resolves to %v, want %v", legacy, f, formats[i])
		}
	}
}

func TestRegistryCollisions(t *testing.T) {
	a := mustFormat(t, "a", "application/x-a")
	tests := []struct {
		name    string
		formats []*SerializationFormat
		opts    []RegistryOption
	}{
		{"duplicate id", []*SerializationFormat{a, mustFormat(t, "A", "application/x-other")}, nil},
		{"shared media type", []*SerializationFormat{a, mustFormat(t, "b", "application/x-b", "application/x-a")}, nil},
		{"shared media type ignoring protocol case", []*SerializationFormat{
			mustFormat(t, "c", "application/x-c; protocol=ONE"),
			mustFormat(t, "d", "application/x-c; protocol=one"),
		}, nil},
		{"alias shadows format", []*SerializationFormat{a, mustFormat(t, "b", "application/x-b")},
			[]RegistryOption{WithAliases(map[string]string{"b": "a"})}},
		{"alias to unknown", []*SerializationFormat{a}, []RegistryOption{WithAliases(map[string]string{"old": "zzz"})}},
		{"aliases differing in case", []*SerializationFormat{a, mustFormat(t, "b", "application/x-b")},
			[]RegistryOption{WithAliases(map[string]string{"Legacy": "a", "legacy": "b"})}},
		{"unknown default", []*SerializationFormat{a}, []RegistryOption{WithDefaultFormat("zzz")}},
		{"container recognized", []*SerializationFormat{a}, []RegistryOption{WithContainerTypes(mediatype.MustParse("application/x-a"))}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		_, err := NewRegistry(tt.formats, tt.opts...)
		if !errors.Is(err, ErrFormatCollision) {
			t.Fatalf("%s: err = %v, want a registry error", tt.name, err)
		}
	}
}

func TestRegistryDistinctParameters(t *testing.T) {
	reg, err := NewRegistry([]*SerializationFormat{
		mustFormat(t, "one", "application/x-c; protocol=ONE"),
		mustFormat(t, "two", "application/x-c; protocol=TWO"),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Default().ID() != "one" {
		t.Fatalf("default = %q, want first registered", reg.Default().ID())
	}
	f, ok := reg.Find(mediatype.MustParse("application/x-c; protocol=two"))
	if !ok || f.ID() != "two" {
		t.Fatalf("Find = %v, %v", f, ok)
	}
}

func TestNewSerializationFormatInvalid(t *testing.T) {
	mt := mediatype.MustParse("application/x-a")
	for _, id := range []string{"", "a+b", "a:b", "a/b", "a b"} {
		if _, err := NewSerializationFormat(id, BinaryCodec(), nil, mt); err == nil {
			t.Fatalf("id %q accepted", id)
		}
	}
	if _, err := NewSerializationFormat("a", nil, nil, mt); err == nil {
		t.Fatal("nil codec accepted")
	}
	if _, err := NewSerializationFormat("a", BinaryCodec(), nil); err == nil {
		t.Fatal("format without media types accepted")
	}
}
