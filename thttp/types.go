// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
)

// fieldInfo describes one struct field mapped to a Thrift field through a
// `thrift:"name,id[,optional]"` struct tag.
type fieldInfo struct {
	Name     string
	ID       int16
	Index    []int
	Type     reflect.Type
	TType    thrift.TType
	Optional bool
}

type structInfo struct {
	Fields []fieldInfo
	byID   map[int16]int
	byName map[string]int
}

func (s *structInfo) fieldByID(id int16) *fieldInfo {
	if i, ok := s.byID[id]; ok {
		return &s.Fields[i]
	}
	return nil
}

func (s *structInfo) fieldByName(name string) *fieldInfo {
	if i, ok := s.byName[name]; ok {
		return &s.Fields[i]
	}
	return nil
}

var structCache sync.Map // reflect.Type -> *structInfo

// parseTag parses a thrift struct tag like "name,1" or "name,2,optional".
func parseTag(tag string) (name string, id int16, optional bool, err error) {
	parts := strings.Split(tag, ",")
	if len(parts) < 2 {
		return "", 0, false, fmt.Errorf("tag %q: want \"name,id\"", tag)
	}
	name = strings.TrimSpace(parts[0])
	if name == "" {
		return "", 0, false, fmt.Errorf("tag %q: empty field name", tag)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil || n <= 0 {
		return "", 0, false, fmt.Errorf("tag %q: field id must be a positive int16", tag)
	}
	for _, opt := range parts[2:] {
		switch strings.TrimSpace(opt) {
		case "optional":
			optional = true
		case "required", "":
		default:
			return "", 0, false, fmt.Errorf("tag %q: unknown option %q", tag, opt)
		}
	}
	return name, int16(n), optional, nil
}

// inspectStruct returns the Thrift mapping of a struct type.
func inspectStruct(t reflect.Type) (*structInfo, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := structCache.Load(t); ok {
		return cached.(*structInfo), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v is not a struct", t)
	}

	info := &structInfo{byID: make(map[int16]int), byName: make(map[string]int)}
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("thrift")
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		name, id, optional, err := parseTag(tag)
		if err != nil {
			return nil, fmt.Errorf("%v.%s: %w", t, f.Name, err)
		}
		if _, dup := info.byID[id]; dup {
			return nil, fmt.Errorf("%v.%s: duplicate field id %d", t, f.Name, id)
		}
		if _, dup := info.byName[name]; dup {
			return nil, fmt.Errorf("%v.%s: duplicate field name %q", t, f.Name, name)
		}
		tt, err := thriftType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%v.%s: %w", t, f.Name, err)
		}
		info.byID[id] = len(info.Fields)
		info.byName[name] = len(info.Fields)
		info.Fields = append(info.Fields, fieldInfo{
			Name:     name,
			ID:       id,
			Index:    f.Index,
			Type:     f.Type,
			TType:    tt,
			Optional: optional || f.Type.Kind() == reflect.Ptr,
		})
	}
	structCache.Store(t, info)
	return info, nil
}

// thriftType maps a Go type to its Thrift wire type.
func thriftType(t reflect.Type) (thrift.TType, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return thrift.BOOL, nil
	case reflect.Int8:
		return thrift.BYTE, nil
	case reflect.Int16:
		return thrift.I16, nil
	case reflect.Int32:
		return thrift.I32, nil
	case reflect.Int64, reflect.Int:
		return thrift.I64, nil
	case reflect.Float32, reflect.Float64:
		return thrift.DOUBLE, nil
	case reflect.String:
		return thrift.STRING, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return thrift.STRING, nil
		}
		if _, err := thriftType(t.Elem()); err != nil {
			return thrift.STOP, fmt.Errorf("list element: %w", err)
		}
		return thrift.LIST, nil
	case reflect.Map:
		if _, err := thriftType(t.Key()); err != nil {
			return thrift.STOP, fmt.Errorf("map key: %w", err)
		}
		if _, err := thriftType(t.Elem()); err != nil {
			return thrift.STOP, fmt.Errorf("map value: %w", err)
		}
		return thrift.MAP, nil
	case reflect.Struct:
		// Nested structs are inspected when first encoded or decoded, which
		// keeps self-referencing types from recursing here.
		return thrift.STRUCT, nil
	default:
		return thrift.STOP, fmt.Errorf("unsupported Go type: %v (kind: %v)", t, t.Kind())
	}
}

// isUnset reports whether a field value is left off the wire.
func isUnset(v reflect.Value, optional bool) bool {
	switch v.Kind() {
	case reflect.Ptr:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return optional && v.IsNil()
	default:
		return false
	}
}

// sortedMapKeys returns the keys of a map value in a stable order so that
// encoded output is deterministic.
func sortedMapKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sortValues(keys)
	return keys
}

func sortValues(keys []reflect.Value) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch a.Kind() {
		case reflect.String:
			return a.String() < b.String()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Float32, reflect.Float64:
			return a.Float() < b.Float()
		case reflect.Bool:
			return !a.Bool() && b.Bool()
		default:
			return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
		}
	})
}
