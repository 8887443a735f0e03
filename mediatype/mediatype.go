// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package mediatype

import (
	"strings"
)

// Well-known media types.
var (
	PlainTextUTF8 = MustParse("text/plain; charset=utf-8")
	HTMLUTF8      = MustParse("text/html; charset=utf-8")
	OctetStream   = MustParse("application/octet-stream")
	JSONUTF8      = MustParse("application/json; charset=utf-8")
)

// parameter is one named parameter and all of its values in the order they
// were seen.
type parameter struct {
	name   string
	values []string
}

// MediaType is a parsed media type. The zero value is not a valid media
// type; use [Parse] or [New] to build one.
type MediaType struct {
	typ     string
	subtype string
	params  []parameter
}

// New returns the media type typ/subtype without parameters. Both parts must
// be valid HTTP tokens.
func New(typ, subtype string) (MediaType, error) {
	if !isToken(typ) {
		return MediaType{}, &ParseError{Input: typ + "/" + subtype, Reason: "invalid type"}
	}
	if !isToken(subtype) {
		return MediaType{}, &ParseError{Input: typ + "/" + subtype, Offset: len(typ) + 1, Reason: "invalid subtype"}
	}
	return MediaType{typ: strings.ToLower(typ), subtype: strings.ToLower(subtype)}, nil
}

// MustParse is like [Parse] but panics if raw is malformed. It is meant for
// package-level variables holding known media types.
func MustParse(raw string) MediaType {
	mt, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return mt
}

// IsZero reports whether m is the zero MediaType.
func (m MediaType) IsZero() bool {
	return m.typ == "" && m.subtype == ""
}

// Type returns the lower-cased top-level type, e.g. "application".
func (m MediaType) Type() string { return m.typ }

// Subtype returns the lower-cased subtype, e.g. "x-thrift".
func (m MediaType) Subtype() string { return m.subtype }

// HasParameters reports whether m carries any parameter.
func (m MediaType) HasParameters() bool { return len(m.params) > 0 }

// Parameter returns the first value of the named parameter.
func (m MediaType) Parameter(name string) (string, bool) {
	if p := m.find(name); p != nil {
		return p.values[0], true
	}
	return "", false
}

// ParameterValues returns a copy of all values of the named parameter.
func (m MediaType) ParameterValues(name string) []string {
	if p := m.find(name); p != nil {
		return append([]string(nil), p.values...)
	}
	return nil
}

// ParameterNames returns the parameter names in insertion order.
func (m MediaType) ParameterNames() []string {
	names := make([]string, len(m.params))
	for i, p := range m.params {
		names[i] = p.name
	}
	return names
}

// Charset returns the value of the charset parameter, if any.
func (m MediaType) Charset() (string, bool) {
	return m.Parameter("charset")
}

// WithParameter returns a copy of m in which the named parameter holds
// exactly the given values. An existing parameter keeps its position.
// Passing no values removes the parameter.
func (m MediaType) WithParameter(name string, values ...string) MediaType {
	name = strings.ToLower(name)
	out := m.clone()
	for i := range out.params {
		if out.params[i].name != name {
			continue
		}
		if len(values) == 0 {
			out.params = append(out.params[:i], out.params[i+1:]...)
		} else {
			out.params[i].values = append([]string(nil), values...)
		}
		return out
	}
	if len(values) > 0 {
		out.params = append(out.params, parameter{name: name, values: append([]string(nil), values...)})
	}
	return out
}

// WithCharset returns a copy of m with the charset parameter set.
func (m MediaType) WithCharset(charset string) MediaType {
	return m.WithParameter("charset", charset)
}

// WithoutParameters returns m stripped of all parameters.
func (m MediaType) WithoutParameters() MediaType {
	return MediaType{typ: m.typ, subtype: m.subtype}
}

// SameType reports whether m and o have the same type and subtype,
// ignoring parameters.
func (m MediaType) SameType(o MediaType) bool {
	return strings.EqualFold(m.typ, o.typ) && strings.EqualFold(m.subtype, o.subtype)
}

// Equal reports whether m and o denote the same media type. Parameter order
// does not matter. Values are compared case-sensitively, except for the
// parameters named in caseInsensitive.
func (m MediaType) Equal(o MediaType, caseInsensitive ...string) bool {
	if !m.SameType(o) || len(m.params) != len(o.params) {
		return false
	}
	for _, p := range m.params {
		q := o.find(p.name)
		if q == nil || len(p.values) != len(q.values) {
			return false
		}
		fold := containsFold(caseInsensitive, p.name)
		for i, v := range p.values {
			if fold {
				if !strings.EqualFold(v, q.values[i]) {
					return false
				}
			} else if v != q.values[i] {
				return false
			}
		}
	}
	return true
}

// String returns the canonical form "type/subtype; name=value". Values that
// are empty or contain characters outside the token grammar are quoted.
func (m MediaType) String() string {
	if m.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.typ)
	b.WriteByte('/')
	b.WriteString(m.subtype)
	for _, p := range m.params {
		for _, v := range p.values {
			b.WriteString("; ")
			b.WriteString(p.name)
			b.WriteByte('=')
			writeValue(&b, v)
		}
	}
	return b.String()
}

func (m MediaType) find(name string) *parameter {
	for i := range m.params {
		if strings.EqualFold(m.params[i].name, name) {
			return &m.params[i]
		}
	}
	return nil
}

func (m MediaType) clone() MediaType {
	out := MediaType{typ: m.typ, subtype: m.subtype}
	if len(m.params) > 0 {
		out.params = make([]parameter, len(m.params))
		for i, p := range m.params {
			out.params[i] = parameter{name: p.name, values: append([]string(nil), p.values...)}
		}
	}
	return out
}

func writeValue(b *strings.Builder, v string) {
	if isToken(v) {
		b.WriteString(v)
		return
	}
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
