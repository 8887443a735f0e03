// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"github.com/Query-farm/thttp/mediatype"
)

// Identifiers of the built-in Thrift formats.
const (
	FormatBinary  = "tbinary"
	FormatCompact = "tcompact"
	FormatJSON    = "tjson"
	FormatText    = "ttext"
)

// Older identifiers of the built-in formats, kept as aliases.
//
// Deprecated: use FormatBinary, FormatCompact, FormatJSON and FormatText.
const (
	ThriftBinary  = "thrift-binary"
	ThriftCompact = "thrift-compact"
	ThriftJSON    = "thrift-json"
	ThriftText    = "thrift-text"
)

// ThriftContainerType is the media type shared by every Thrift format. Sent
// without a protocol parameter it selects the endpoint default.
var ThriftContainerType = mediatype.MustParse("application/x-thrift")

// ProtocolParameter names the media type parameter carrying the Thrift
// protocol. Its value is compared case-insensitively.
const ProtocolParameter = "protocol"

type thriftFormatDef struct {
	id       string
	protocol string
	synonym  string
	codec    func() Codec
}

var thriftFormatDefs = []thriftFormatDef{
	{FormatBinary, "TBINARY", "application/vnd.apache.thrift.binary", BinaryCodec},
	{FormatCompact, "TCOMPACT", "application/vnd.apache.thrift.compact", CompactCodec},
	{FormatJSON, "TJSON", "application/vnd.apache.thrift.json", JSONCodec},
	{FormatText, "TTEXT", "application/vnd.apache.thrift.text", TextCodec},
}

// NewThriftFormats builds the four built-in formats in registration order.
func NewThriftFormats() ([]*SerializationFormat, error) {
	formats := make([]*SerializationFormat, 0, len(thriftFormatDefs))
	for _, d := range thriftFormatDefs {
		canonical := ThriftContainerType.WithParameter(ProtocolParameter, d.protocol)
		synonym, err := mediatype.Parse(d.synonym)
		if err != nil {
			return nil, err
		}
		f, err := NewSerializationFormat(d.id, d.codec(), []string{ProtocolParameter}, canonical, synonym)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// NewThriftRegistry builds a registry of the built-in formats with tbinary
// as the default, application/x-thrift as the container type and the
// legacy aliases. Extra options are applied after the built-in ones.
func NewThriftRegistry(opts ...RegistryOption) (*Registry, error) {
	formats, err := NewThriftFormats()
	if err != nil {
		return nil, err
	}
	base := []RegistryOption{
		WithDefaultFormat(FormatBinary),
		WithContainerTypes(ThriftContainerType),
		WithAliases(map[string]string{
			ThriftBinary:  FormatBinary,
			ThriftCompact: FormatCompact,
			ThriftJSON:    FormatJSON,
			ThriftText:    FormatText,
		}),
	}
	return NewRegistry(formats, append(base, opts...)...)
}

// MustThriftRegistry is like [NewThriftRegistry] but panics on error.
func MustThriftRegistry(opts ...RegistryOption) *Registry {
	r, err := NewThriftRegistry(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// ThriftFormats returns the built-in Thrift formats registered in reg.
func ThriftFormats(reg *Registry) []*SerializationFormat {
	var out []*SerializationFormat
	for _, d := range thriftFormatDefs {
		if f, ok := reg.Lookup(d.id); ok {
			out = append(out, f)
		}
	}
	return out
}
