// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package mediatype

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Parse parses a media type header value of the form
//
//	type "/" subtype *( OWS ";" OWS name OWS "=" OWS ( token / quoted-string ) )
//
// Whitespace around ";" and "=" is ignored and a trailing ";" is accepted.
// Quoted values are unescaped. A repeated parameter keeps every value.
func Parse(raw string) (MediaType, error) {
	p := &parser{input: raw}

	p.skipSpace()
	typ := p.token()
	if typ == "" {
		return MediaType{}, p.fail("missing type")
	}
	if !p.consume('/') {
		return MediaType{}, p.fail("missing '/' after type")
	}
	subtype := p.token()
	if subtype == "" {
		return MediaType{}, p.fail("missing subtype")
	}

	mt := MediaType{typ: strings.ToLower(typ), subtype: strings.ToLower(subtype)}
	for {
		p.skipSpace()
		if p.done() {
			break
		}
		if !p.consume(';') {
			return MediaType{}, p.fail(fmt.Sprintf("unexpected character %q", p.peek()))
		}
		p.skipSpace()
		if p.done() {
			break
		}
		if p.peek() == ';' {
			continue
		}

		name := p.token()
		if name == "" {
			return MediaType{}, p.fail("missing parameter name")
		}
		p.skipSpace()
		if !p.consume('=') {
			return MediaType{}, p.fail(fmt.Sprintf("missing '=' after parameter %q", name))
		}
		p.skipSpace()

		var value string
		if p.peek() == '"' {
			v, err := p.quoted()
			if err != nil {
				return MediaType{}, err
			}
			value = v
		} else {
			value = p.token()
			if value == "" {
				return MediaType{}, p.fail(fmt.Sprintf("missing value for parameter %q", name))
			}
		}
		mt.params = addValue(mt.params, strings.ToLower(name), value)
	}
	return mt, nil
}

func addValue(params []parameter, name, value string) []parameter {
	for i := range params {
		if params[i].name == name {
			params[i].values = append(params[i].values, value)
			return params
		}
	}
	return append(params, parameter{name: name, values: []string{value}})
}

type parser struct {
	input string
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) consume(c byte) bool {
	if p.peek() == c && !p.done() {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for !p.done() && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) token() string {
	start := p.pos
	for !p.done() && isTokenByte(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// quoted reads a quoted-string starting at the opening quote and returns the
// unescaped contents.
func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for !p.done() {
		c := p.input[p.pos]
		if isCTL(c) {
			return "", p.fail("control character in quoted string")
		}
		p.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.done() {
				p.pos = start
				return "", p.fail("unterminated quoted string")
			}
			if isCTL(p.input[p.pos]) {
				return "", p.fail("control character in quoted string")
			}
			b.WriteByte(p.input[p.pos])
			p.pos++
		default:
			b.WriteByte(c)
		}
	}
	p.pos = start
	return "", p.fail("unterminated quoted string")
}

func (p *parser) fail(reason string) error {
	return &ParseError{Input: p.input, Offset: p.pos, Reason: reason}
}

// isCTL reports whether c is a control character other than HTAB, which
// quoted-string and quoted-pair exclude.
func isCTL(c byte) bool {
	return (c < 0x20 && c != '\t') || c == 0x7f
}

func isTokenByte(c byte) bool {
	return c < 0x80 && httpguts.IsTokenRune(rune(c))
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenByte(s[i]) {
			return false
		}
	}
	return true
}
