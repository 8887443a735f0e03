// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"strings"

	"github.com/Query-farm/thttp/mediatype"
)

// SerializationFormat is one wire encoding a service can speak. It is
// immutable once built.
type SerializationFormat struct {
	id              string
	mediaTypes      []mediatype.MediaType
	caseInsensitive []string
	codec           Codec
}

// NewSerializationFormat builds a format. The first media type is the
// canonical one written into outgoing headers; the rest are synonyms it
// also recognizes. Values of the parameters named in caseInsensitive are
// compared case-insensitively when matching header values.
func NewSerializationFormat(id string, codec Codec, caseInsensitive []string, mediaTypes ...mediatype.MediaType) (*SerializationFormat, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || strings.ContainsAny(id, "+:/ ") {
		return nil, &RegistryError{ID: id, Reason: "invalid format identifier"}
	}
	if codec == nil {
		return nil, &RegistryError{ID: id, Reason: "codec must not be nil"}
	}
	if len(mediaTypes) == 0 {
		return nil, &RegistryError{ID: id, Reason: "at least one media type is required"}
	}
	for _, mt := range mediaTypes {
		if mt.IsZero() {
			return nil, &RegistryError{ID: id, Reason: "zero media type"}
		}
	}
	ci := make([]string, len(caseInsensitive))
	for i, name := range caseInsensitive {
		ci[i] = strings.ToLower(name)
	}
	return &SerializationFormat{
		id:              id,
		mediaTypes:      append([]mediatype.MediaType(nil), mediaTypes...),
		caseInsensitive: ci,
		codec:           codec,
	}, nil
}

// ID returns the short identifier, e.g. "tbinary".
func (f *SerializationFormat) ID() string { return f.id }

// MediaType returns the canonical media type of the format.
func (f *SerializationFormat) MediaType() mediatype.MediaType { return f.mediaTypes[0] }

// MediaTypes returns every media type the format recognizes, canonical first.
func (f *SerializationFormat) MediaTypes() []mediatype.MediaType {
	return append([]mediatype.MediaType(nil), f.mediaTypes...)
}

// CaseInsensitiveParameters returns the parameter names whose values the
// format compares case-insensitively.
func (f *SerializationFormat) CaseInsensitiveParameters() []string {
	return append([]string(nil), f.caseInsensitive...)
}

// Codec returns the payload codec of the format.
func (f *SerializationFormat) Codec() Codec { return f.codec }

// Matches reports whether mt announces this format. The parameter sets must
// be identical; an unexpected parameter means no match.
func (f *SerializationFormat) Matches(mt mediatype.MediaType) bool {
	for _, known := range f.mediaTypes {
		if known.Equal(mt, f.caseInsensitive...) {
			return true
		}
	}
	return false
}

func (f *SerializationFormat) String() string { return f.id }

// overlaps reports whether f and g recognize a common media type.
func (f *SerializationFormat) overlaps(g *SerializationFormat) (mediatype.MediaType, bool) {
	fold := append(f.CaseInsensitiveParameters(), g.caseInsensitive...)
	for _, a := range f.mediaTypes {
		for _, b := range g.mediaTypes {
			if a.Equal(b, fold...) {
				return a, true
			}
		}
	}
	return mediatype.MediaType{}, false
}
