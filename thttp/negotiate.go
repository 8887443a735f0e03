// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/Query-farm/thttp/mediatype"
)

// EndpointPolicy is the set of formats an endpoint accepts and the format it
// falls back to when the request does not name one.
type EndpointPolicy struct {
	allowed       []*SerializationFormat
	defaultFormat *SerializationFormat
}

// NewEndpointPolicy builds a policy. def is the fallback format and must be
// one of allowed; if allowed is empty the policy allows def alone.
func NewEndpointPolicy(def *SerializationFormat, allowed ...*SerializationFormat) (EndpointPolicy, error) {
	if def == nil {
		return EndpointPolicy{}, &RegistryError{Reason: "endpoint policy needs a default format"}
	}
	if len(allowed) == 0 {
		allowed = []*SerializationFormat{def}
	}
	p := EndpointPolicy{defaultFormat: def}
	for _, f := range allowed {
		if f == nil {
			return EndpointPolicy{}, &RegistryError{Reason: "endpoint policy lists a nil format"}
		}
		if !slices.Contains(p.allowed, f) {
			p.allowed = append(p.allowed, f)
		}
	}
	if !p.Allows(def) {
		return EndpointPolicy{}, &RegistryError{ID: def.id, Reason: "default format is not in the allowed set"}
	}
	return p, nil
}

// NewPolicy builds a policy from format identifiers or aliases, as found in
// route configuration. An empty defaultID picks the registry default when it
// is allowed, or else the first allowed format. No allowed identifiers means
// every registered format.
func (r *Registry) NewPolicy(defaultID string, allowedIDs ...string) (EndpointPolicy, error) {
	allowed := make([]*SerializationFormat, 0, len(allowedIDs))
	for _, id := range allowedIDs {
		f, ok := r.Lookup(id)
		if !ok {
			return EndpointPolicy{}, &NegotiationError{Kind: KindUnknownFormat, Value: id}
		}
		allowed = append(allowed, f)
	}
	if len(allowed) == 0 {
		allowed = r.Formats()
	}

	var def *SerializationFormat
	switch {
	case defaultID != "":
		f, ok := r.Lookup(defaultID)
		if !ok {
			return EndpointPolicy{}, &NegotiationError{Kind: KindUnknownFormat, Value: defaultID}
		}
		def = f
	case slices.Contains(allowed, r.defaultFormat):
		def = r.defaultFormat
	default:
		def = allowed[0]
	}
	return NewEndpointPolicy(def, allowed...)
}

// AllFormatsPolicy allows every registered format and falls back to the
// registry default.
func (r *Registry) AllFormatsPolicy() EndpointPolicy {
	return EndpointPolicy{allowed: r.Formats(), defaultFormat: r.defaultFormat}
}

// IsZero reports whether p is the zero policy.
func (p EndpointPolicy) IsZero() bool { return p.defaultFormat == nil }

// Default returns the fallback format.
func (p EndpointPolicy) Default() *SerializationFormat { return p.defaultFormat }

// Formats returns the allowed formats.
func (p EndpointPolicy) Formats() []*SerializationFormat {
	return append([]*SerializationFormat(nil), p.allowed...)
}

// Allows reports whether f is in the allowed set.
func (p EndpointPolicy) Allows(f *SerializationFormat) bool {
	return slices.Contains(p.allowed, f)
}

// Negotiate resolves the format of a call from its Content-Type and Accept
// header values. An empty string means the header is absent. A zero policy
// allows every registered format.
//
// The returned format decodes the request and encodes the response. On
// failure the error is a *NegotiationError whose StatusCode is 400, 415 or
// 406.
func (r *Registry) Negotiate(contentType, accept string, policy EndpointPolicy) (*SerializationFormat, error) {
	if policy.IsZero() {
		policy = r.AllFormatsPolicy()
	}

	var selected *SerializationFormat
	if ct := strings.TrimSpace(contentType); ct != "" {
		mt, err := mediatype.Parse(ct)
		if err != nil {
			return nil, &NegotiationError{Kind: KindBadRequestMediaType, Header: "Content-Type", Value: ct, Err: err}
		}
		if f, ok := r.Find(mt); ok {
			if !policy.Allows(f) {
				return nil, &NegotiationError{Kind: KindUnsupportedMediaType, Header: "Content-Type", Value: ct, Format: f.id}
			}
			selected = f
		} else if r.IsContainerType(mt) {
			selected = policy.defaultFormat
		}
		// Any other media type leaves the format open, as if Content-Type
		// were absent.
	}

	accepted := r.acceptedFormats(accept)
	if selected == nil {
		for _, f := range accepted {
			if policy.Allows(f) {
				selected = f
				break
			}
		}
		if selected == nil {
			selected = policy.defaultFormat
		}
	}
	if len(accepted) > 0 && !slices.Contains(accepted, selected) {
		return nil, &NegotiationError{Kind: KindNotAcceptable, Header: "Accept", Value: strings.TrimSpace(accept), Format: selected.id}
	}
	return selected, nil
}

type acceptEntry struct {
	format *SerializationFormat
	q      float64
}

// acceptedFormats returns the known formats named in an Accept header value,
// most preferred first. Entries that do not parse, carry q=0, or name no
// known format are skipped.
func (r *Registry) acceptedFormats(accept string) []*SerializationFormat {
	if strings.TrimSpace(accept) == "" {
		return nil
	}
	var entries []acceptEntry
	for _, raw := range splitHeaderList(accept) {
		mt, err := mediatype.Parse(raw)
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := mt.Parameter("q"); ok {
			q, err = strconv.ParseFloat(v, 64)
			if err != nil || q < 0 || q > 1 {
				continue
			}
			mt = mt.WithParameter("q")
		}
		if q == 0 {
			continue
		}
		if f, ok := r.Find(mt); ok {
			entries = append(entries, acceptEntry{format: f, q: q})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })

	out := make([]*SerializationFormat, 0, len(entries))
	for _, e := range entries {
		if !slices.Contains(out, e.format) {
			out = append(out, e.format)
		}
	}
	return out
}

// splitHeaderList splits a comma-separated header value, leaving commas
// inside quoted strings alone. Empty elements are dropped.
func splitHeaderList(v string) []string {
	var parts []string
	inQuote, escaped := false, false
	start := 0
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuote:
			escaped = true
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			if s := strings.TrimSpace(v[start:i]); s != "" {
				parts = append(parts, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(v[start:]); s != "" {
		parts = append(parts, s)
	}
	return parts
}
