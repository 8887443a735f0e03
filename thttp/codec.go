// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"
)

// MessageHeader is the envelope of a Thrift message.
type MessageHeader struct {
	Name  string
	Type  thrift.TMessageType
	SeqID int32
}

// Result is the body of a REPLY message. Success holds the return value
// when encoding and a pointer to the destination when decoding; nil means
// the method returns nothing.
type Result struct {
	Success any
}

// errMissingResult reports a REPLY without the success field the caller
// asked for.
var errMissingResult = errors.New("reply carries no result")

// Codec encodes and decodes whole Thrift messages in one wire format.
//
// The body passed to Encode depends on the message type: the argument
// struct for CALL and ONEWAY, a *Result for REPLY, and an *ApplicationError
// for EXCEPTION. Decode reads the header and returns a BodyDecoder for the
// same kinds of targets.
type Codec interface {
	Encode(ctx context.Context, hdr MessageHeader, body any) ([]byte, error)
	Decode(ctx context.Context, data []byte) (MessageHeader, BodyDecoder, error)
}

// BodyDecoder decodes the body of a message whose header was already read.
type BodyDecoder interface {
	DecodeBody(ctx context.Context, target any) error
}

// protocolCodec implements Codec on top of a Thrift TProtocol.
type protocolCodec struct {
	newProtocol func(thrift.TTransport) thrift.TProtocol
}

// BinaryCodec returns the codec of the TBinary protocol.
func BinaryCodec() Codec {
	conf := &thrift.TConfiguration{}
	return protocolCodec{newProtocol: func(t thrift.TTransport) thrift.TProtocol {
		return thrift.NewTBinaryProtocolConf(t, conf)
	}}
}

// CompactCodec returns the codec of the TCompact protocol.
func CompactCodec() Codec {
	conf := &thrift.TConfiguration{}
	return protocolCodec{newProtocol: func(t thrift.TTransport) thrift.TProtocol {
		return thrift.NewTCompactProtocolConf(t, conf)
	}}
}

// JSONCodec returns the codec of the TJSON protocol.
func JSONCodec() Codec {
	return protocolCodec{newProtocol: func(t thrift.TTransport) thrift.TProtocol {
		return thrift.NewTJSONProtocol(t)
	}}
}

func (c protocolCodec) Encode(ctx context.Context, hdr MessageHeader, body any) ([]byte, error) {
	buf := thrift.NewTMemoryBuffer()
	p := c.newProtocol(buf)

	if err := p.WriteMessageBegin(ctx, hdr.Name, hdr.Type, hdr.SeqID); err != nil {
		return nil, err
	}
	switch hdr.Type {
	case thrift.EXCEPTION:
		exc, ok := body.(*ApplicationError)
		if !ok {
			return nil, fmt.Errorf("thttp: exception body must be *ApplicationError, got %T", body)
		}
		if err := thrift.NewTApplicationException(exc.Type, exc.Message).Write(ctx, p); err != nil {
			return nil, err
		}
	case thrift.REPLY:
		res, ok := body.(*Result)
		if !ok {
			return nil, fmt.Errorf("thttp: reply body must be *Result, got %T", body)
		}
		if err := writeResult(ctx, p, hdr.Name, res); err != nil {
			return nil, err
		}
	default:
		if err := writeStruct(ctx, p, hdr.Name+"_args", reflect.ValueOf(body)); err != nil {
			return nil, err
		}
	}
	if err := p.WriteMessageEnd(ctx); err != nil {
		return nil, err
	}
	if err := p.Flush(ctx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c protocolCodec) Decode(ctx context.Context, data []byte) (MessageHeader, BodyDecoder, error) {
	buf := thrift.NewTMemoryBuffer()
	if _, err := buf.Write(data); err != nil {
		return MessageHeader{}, nil, err
	}
	p := c.newProtocol(buf)
	name, typ, seqID, err := p.ReadMessageBegin(ctx)
	if err != nil {
		return MessageHeader{}, nil, fmt.Errorf("thttp: read message header: %w", err)
	}
	return MessageHeader{Name: name, Type: typ, SeqID: seqID}, protocolBody{p: p}, nil
}

type protocolBody struct {
	p thrift.TProtocol
}

func (b protocolBody) DecodeBody(ctx context.Context, target any) error {
	var err error
	switch t := target.(type) {
	case *ApplicationError:
		exc := thrift.NewTApplicationException(thrift.UNKNOWN_APPLICATION_EXCEPTION, "")
		if err = exc.Read(ctx, b.p); err == nil {
			t.Type = exc.TypeId()
			t.Message = exc.Error()
		}
	case *Result:
		err = readResult(ctx, b.p, t)
	default:
		rv := reflect.ValueOf(target)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return fmt.Errorf("thttp: decode target must be a non-nil pointer, got %T", target)
		}
		err = readStruct(ctx, b.p, rv.Elem())
	}
	if err != nil {
		return err
	}
	return b.p.ReadMessageEnd(ctx)
}

// writeResult writes the <method>_result struct: field 0 "success" holds the
// return value, absent for void methods.
func writeResult(ctx context.Context, p thrift.TProtocol, method string, res *Result) error {
	if err := p.WriteStructBegin(ctx, method+"_result"); err != nil {
		return err
	}
	if res.Success != nil {
		v := reflect.ValueOf(res.Success)
		tt, err := thriftType(v.Type())
		if err != nil {
			return err
		}
		if !isUnset(v, false) {
			if err := p.WriteFieldBegin(ctx, "success", tt, 0); err != nil {
				return err
			}
			if err := writeValue(ctx, p, v); err != nil {
				return err
			}
			if err := p.WriteFieldEnd(ctx); err != nil {
				return err
			}
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func readResult(ctx context.Context, p thrift.TProtocol, res *Result) error {
	var dst reflect.Value
	var want thrift.TType
	if res.Success != nil {
		dst = reflect.ValueOf(res.Success)
		if dst.Kind() != reflect.Ptr || dst.IsNil() {
			return fmt.Errorf("thttp: result target must be a non-nil pointer, got %T", res.Success)
		}
		dst = dst.Elem()
		var err error
		if want, err = thriftType(dst.Type()); err != nil {
			return err
		}
	}

	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	found := false
	for {
		_, ft, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if ft == thrift.STOP {
			break
		}
		if id == 0 && dst.IsValid() && compatible(want, ft) {
			if err := readValue(ctx, p, ft, dst); err != nil {
				return err
			}
			found = true
		} else if err := p.Skip(ctx, ft); err != nil {
			return err
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := p.ReadStructEnd(ctx); err != nil {
		return err
	}
	if dst.IsValid() && !found {
		return errMissingResult
	}
	return nil
}

func writeStruct(ctx context.Context, p thrift.TProtocol, name string, v reflect.Value) error {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return fmt.Errorf("thttp: cannot encode nil %v", v.Type())
		}
		v = v.Elem()
	}
	info, err := inspectStruct(v.Type())
	if err != nil {
		return err
	}
	if err := p.WriteStructBegin(ctx, name); err != nil {
		return err
	}
	for _, f := range info.Fields {
		fv := v.FieldByIndex(f.Index)
		if isUnset(fv, f.Optional) {
			continue
		}
		if err := p.WriteFieldBegin(ctx, f.Name, f.TType, f.ID); err != nil {
			return err
		}
		if err := writeValue(ctx, p, fv); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		if err := p.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func writeValue(ctx context.Context, p thrift.TProtocol, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return fmt.Errorf("thttp: cannot encode nil %v", v.Type())
		}
		return writeValue(ctx, p, v.Elem())
	case reflect.Bool:
		return p.WriteBool(ctx, v.Bool())
	case reflect.Int8:
		return p.WriteByte(ctx, int8(v.Int()))
	case reflect.Int16:
		return p.WriteI16(ctx, int16(v.Int()))
	case reflect.Int32:
		return p.WriteI32(ctx, int32(v.Int()))
	case reflect.Int64, reflect.Int:
		return p.WriteI64(ctx, v.Int())
	case reflect.Float32, reflect.Float64:
		return p.WriteDouble(ctx, v.Float())
	case reflect.String:
		return p.WriteString(ctx, v.String())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return p.WriteBinary(ctx, v.Bytes())
		}
		et, err := thriftType(v.Type().Elem())
		if err != nil {
			return err
		}
		if err := p.WriteListBegin(ctx, et, v.Len()); err != nil {
			return err
		}
		for i := range v.Len() {
			if err := writeValue(ctx, p, v.Index(i)); err != nil {
				return err
			}
		}
		return p.WriteListEnd(ctx)
	case reflect.Map:
		kt, err := thriftType(v.Type().Key())
		if err != nil {
			return err
		}
		vt, err := thriftType(v.Type().Elem())
		if err != nil {
			return err
		}
		if err := p.WriteMapBegin(ctx, kt, vt, v.Len()); err != nil {
			return err
		}
		for _, k := range sortedMapKeys(v) {
			if err := writeValue(ctx, p, k); err != nil {
				return err
			}
			if err := writeValue(ctx, p, v.MapIndex(k)); err != nil {
				return err
			}
		}
		return p.WriteMapEnd(ctx)
	case reflect.Struct:
		return writeStruct(ctx, p, v.Type().Name(), v)
	default:
		return fmt.Errorf("thttp: unsupported Go type: %v", v.Type())
	}
}

func readStruct(ctx context.Context, p thrift.TProtocol, v reflect.Value) error {
	info, err := inspectStruct(v.Type())
	if err != nil {
		return err
	}
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, ft, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if ft == thrift.STOP {
			break
		}
		f := info.fieldByID(id)
		if f == nil || !compatible(f.TType, ft) {
			if err := p.Skip(ctx, ft); err != nil {
				return err
			}
		} else if err := readValue(ctx, p, ft, v.FieldByIndex(f.Index)); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}

// compatible reports whether a value sent as wire type got can be decoded
// into a field declared as want. Sets decode into slices.
func compatible(want, got thrift.TType) bool {
	return want == got || (want == thrift.LIST && got == thrift.SET)
}

func readValue(ctx context.Context, p thrift.TProtocol, tt thrift.TType, v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return readValue(ctx, p, tt, v.Elem())
	}
	switch v.Kind() {
	case reflect.Bool:
		b, err := p.ReadBool(ctx)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int8:
		n, err := p.ReadByte(ctx)
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Int16:
		n, err := p.ReadI16(ctx)
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Int32:
		n, err := p.ReadI32(ctx)
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Int64, reflect.Int:
		n, err := p.ReadI64(ctx)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := p.ReadDouble(ctx)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.String:
		s, err := p.ReadString(ctx)
		if err != nil {
			return err
		}
		v.SetString(s)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := p.ReadBinary(ctx)
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		return readList(ctx, p, tt, v)
	case reflect.Map:
		kt, vt, n, err := p.ReadMapBegin(ctx)
		if err != nil {
			return err
		}
		if n > 0 && (!elemCompatible(v.Type().Key(), kt) || !elemCompatible(v.Type().Elem(), vt)) {
			return skipMap(ctx, p, kt, vt, n)
		}
		m := reflect.MakeMapWithSize(v.Type(), min(n, maxPrealloc))
		for range n {
			k := reflect.New(v.Type().Key()).Elem()
			if err := readValue(ctx, p, kt, k); err != nil {
				return err
			}
			val := reflect.New(v.Type().Elem()).Elem()
			if err := readValue(ctx, p, vt, val); err != nil {
				return err
			}
			m.SetMapIndex(k, val)
		}
		if err := p.ReadMapEnd(ctx); err != nil {
			return err
		}
		v.Set(m)
	case reflect.Struct:
		return readStruct(ctx, p, v)
	default:
		return fmt.Errorf("thttp: unsupported Go type: %v", v.Type())
	}
	return nil
}

// maxPrealloc caps the capacity reserved from a container size read off the
// wire. Larger containers grow as their elements arrive.
const maxPrealloc = 1024

func readList(ctx context.Context, p thrift.TProtocol, tt thrift.TType, v reflect.Value) error {
	var (
		et  thrift.TType
		n   int
		err error
	)
	if tt == thrift.SET {
		et, n, err = p.ReadSetBegin(ctx)
	} else {
		et, n, err = p.ReadListBegin(ctx)
	}
	if err != nil {
		return err
	}
	if n > 0 && !elemCompatible(v.Type().Elem(), et) {
		for range n {
			if err := p.Skip(ctx, et); err != nil {
				return err
			}
		}
		return readListEnd(ctx, p, tt)
	}
	s := reflect.MakeSlice(v.Type(), 0, min(n, maxPrealloc))
	for range n {
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := readValue(ctx, p, et, elem); err != nil {
			return err
		}
		s = reflect.Append(s, elem)
	}
	if err := readListEnd(ctx, p, tt); err != nil {
		return err
	}
	v.Set(s)
	return nil
}

func readListEnd(ctx context.Context, p thrift.TProtocol, tt thrift.TType) error {
	if tt == thrift.SET {
		return p.ReadSetEnd(ctx)
	}
	return p.ReadListEnd(ctx)
}

// skipMap consumes the entries of a map whose key or value type does not
// fit the destination, leaving the destination unset.
func skipMap(ctx context.Context, p thrift.TProtocol, kt, vt thrift.TType, n int) error {
	for range n {
		if err := p.Skip(ctx, kt); err != nil {
			return err
		}
		if err := p.Skip(ctx, vt); err != nil {
			return err
		}
	}
	return p.ReadMapEnd(ctx)
}

// elemCompatible reports whether container elements sent as wire type got
// can be decoded into Go type t.
func elemCompatible(t reflect.Type, got thrift.TType) bool {
	want, err := thriftType(t)
	return err == nil && compatible(want, got)
}
