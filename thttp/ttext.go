// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/apache/thrift/lib/go/thrift"
	json "github.com/goccy/go-json"
)

// textMessage is the TText envelope:
//
//	{"method": "hello", "type": "CALL", "seqid": 1, "args": {"name": "trustin"}}
//
// Fields are keyed by their Thrift names. A REPLY carries {"success": ...}
// in args and an EXCEPTION carries {"message": ..., "type": ...}.
type textMessage struct {
	Method string          `json:"method"`
	Type   string          `json:"type"`
	SeqID  int32           `json:"seqid,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

type textException struct {
	Message string `json:"message"`
	Type    int32  `json:"type"`
}

// TextCodec returns the codec of the TText format, a human-readable JSON
// rendering of Thrift messages.
func TextCodec() Codec { return textCodec{} }

type textCodec struct{}

func messageTypeName(t thrift.TMessageType) string {
	switch t {
	case thrift.CALL:
		return "CALL"
	case thrift.REPLY:
		return "REPLY"
	case thrift.EXCEPTION:
		return "EXCEPTION"
	case thrift.ONEWAY:
		return "ONEWAY"
	default:
		return strconv.Itoa(int(t))
	}
}

func parseMessageType(s string) (thrift.TMessageType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL":
		return thrift.CALL, nil
	case "REPLY":
		return thrift.REPLY, nil
	case "EXCEPTION":
		return thrift.EXCEPTION, nil
	case "ONEWAY":
		return thrift.ONEWAY, nil
	default:
		return thrift.INVALID_TMESSAGE_TYPE, fmt.Errorf("thttp: unknown message type %q", s)
	}
}

func (textCodec) Encode(_ context.Context, hdr MessageHeader, body any) ([]byte, error) {
	var args any
	switch hdr.Type {
	case thrift.EXCEPTION:
		exc, ok := body.(*ApplicationError)
		if !ok {
			return nil, fmt.Errorf("thttp: exception body must be *ApplicationError, got %T", body)
		}
		args = textException{Message: exc.Message, Type: exc.Type}
	case thrift.REPLY:
		res, ok := body.(*Result)
		if !ok {
			return nil, fmt.Errorf("thttp: reply body must be *Result, got %T", body)
		}
		out := map[string]any{}
		if res.Success != nil {
			v := reflect.ValueOf(res.Success)
			if !isUnset(v, false) {
				tv, err := toTextValue(v)
				if err != nil {
					return nil, err
				}
				out["success"] = tv
			}
		}
		args = out
	default:
		tv, err := toTextValue(reflect.ValueOf(body))
		if err != nil {
			return nil, err
		}
		args = tv
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(textMessage{
		Method: hdr.Name,
		Type:   messageTypeName(hdr.Type),
		SeqID:  hdr.SeqID,
		Args:   raw,
	})
}

func (textCodec) Decode(_ context.Context, data []byte) (MessageHeader, BodyDecoder, error) {
	var msg textMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return MessageHeader{}, nil, fmt.Errorf("thttp: read message header: %w", err)
	}
	if msg.Method == "" {
		return MessageHeader{}, nil, fmt.Errorf("thttp: read message header: missing method")
	}
	typ, err := parseMessageType(msg.Type)
	if err != nil {
		return MessageHeader{}, nil, err
	}
	args := msg.Args
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	return MessageHeader{Name: msg.Method, Type: typ, SeqID: msg.SeqID}, textBody{args: args}, nil
}

type textBody struct {
	args json.RawMessage
}

func (b textBody) DecodeBody(_ context.Context, target any) error {
	switch t := target.(type) {
	case *ApplicationError:
		var exc textException
		if err := json.Unmarshal(b.args, &exc); err != nil {
			return err
		}
		t.Type, t.Message = exc.Type, exc.Message
		return nil
	case *Result:
		if t.Success == nil {
			return nil
		}
		dst := reflect.ValueOf(t.Success)
		if dst.Kind() != reflect.Ptr || dst.IsNil() {
			return fmt.Errorf("thttp: result target must be a non-nil pointer, got %T", t.Success)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(b.args, &fields); err != nil {
			return err
		}
		raw, ok := fields["success"]
		if !ok || string(raw) == "null" {
			return errMissingResult
		}
		return fromTextValue(raw, dst.Elem())
	default:
		rv := reflect.ValueOf(target)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return fmt.Errorf("thttp: decode target must be a non-nil pointer, got %T", target)
		}
		return fromTextValue(b.args, rv.Elem())
	}
}

// toTextValue converts v into a value goccy/go-json renders with Thrift
// field names.
func toTextValue(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return toTextValue(v.Elem())
	case reflect.Struct:
		info, err := inspectStruct(v.Type())
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(info.Fields))
		for _, f := range info.Fields {
			fv := v.FieldByIndex(f.Index)
			if isUnset(fv, f.Optional) {
				continue
			}
			tv, err := toTextValue(fv)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			out[f.Name] = tv
		}
		return out, nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), nil
		}
		out := make([]any, v.Len())
		for i := range out {
			tv, err := toTextValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = tv
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, v.Len())
		for _, k := range sortedMapKeys(v) {
			tv, err := toTextValue(v.MapIndex(k))
			if err != nil {
				return nil, err
			}
			ks, err := formatMapKey(k)
			if err != nil {
				return nil, err
			}
			out[ks] = tv
		}
		return out, nil
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Float32, reflect.Float64:
		return v.Interface(), nil
	default:
		return nil, fmt.Errorf("thttp: unsupported Go type: %v", v.Type())
	}
}

// fromTextValue decodes raw into v, resolving struct fields by Thrift name.
// Unknown fields are ignored.
func fromTextValue(raw json.RawMessage, v reflect.Value) error {
	if string(raw) == "null" {
		return nil
	}
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return fromTextValue(raw, v.Elem())
	case reflect.Struct:
		info, err := inspectStruct(v.Type())
		if err != nil {
			return err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return err
		}
		for name, fraw := range fields {
			f := info.fieldByName(name)
			if f == nil {
				continue
			}
			if err := fromTextValue(fraw, v.FieldByIndex(f.Index)); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}
		return nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return json.Unmarshal(raw, v.Addr().Interface())
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		s := reflect.MakeSlice(v.Type(), len(items), len(items))
		for i, item := range items {
			if err := fromTextValue(item, s.Index(i)); err != nil {
				return err
			}
		}
		v.Set(s)
		return nil
	case reflect.Map:
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return err
		}
		m := reflect.MakeMapWithSize(v.Type(), len(entries))
		for ks, vraw := range entries {
			k := reflect.New(v.Type().Key()).Elem()
			if err := parseMapKey(ks, k); err != nil {
				return err
			}
			val := reflect.New(v.Type().Elem()).Elem()
			if err := fromTextValue(vraw, val); err != nil {
				return err
			}
			m.SetMapIndex(k, val)
		}
		v.Set(m)
		return nil
	default:
		return json.Unmarshal(raw, v.Addr().Interface())
	}
}

// formatMapKey renders a scalar map key as a JSON object key. Named types
// are rendered by kind so that a Stringer does not change the wire form.
func formatMapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(k.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(k.Float(), 'g', -1, k.Type().Bits()), nil
	default:
		return "", fmt.Errorf("thttp: unsupported map key type: %v", k.Type())
	}
}

// parseMapKey parses a JSON object key into a scalar map key.
func parseMapKey(s string, k reflect.Value) error {
	switch k.Kind() {
	case reflect.String:
		k.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		k.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, k.Type().Bits())
		if err != nil {
			return err
		}
		k.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, k.Type().Bits())
		if err != nil {
			return err
		}
		k.SetFloat(f)
	default:
		return fmt.Errorf("thttp: unsupported map key type: %v", k.Type())
	}
	return nil
}
