// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package mediatype parses and formats HTTP media types such as
// "application/x-thrift; protocol=TBINARY".
//
// A [MediaType] is an immutable value. The type and subtype are lower-cased
// on parse, parameter names are lower-cased, and parameter values keep their
// original case. Parameters keep their insertion order and a parameter may
// carry more than one value, so repeated non-standard parameters survive a
// Parse/String round trip.
//
// Comparison of parameter values is case-sensitive unless the caller names
// the parameters that should be compared case-insensitively:
//
//	a := mediatype.MustParse("application/x-thrift; protocol=tbinary")
//	b := mediatype.MustParse(`application/x-thrift ; protocol="TBINARY"`)
//	a.Equal(b)             // false
//	a.Equal(b, "protocol") // true
//
// # JSON
//
// MediaType implements json.Marshaler and json.Unmarshaler. A media type is
// encoded as a JSON string. Decoding a malformed string or a non-string JSON
// value fails with a [*DecodeError].
package mediatype
