// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Query-farm/thttp/thttp"
)

// Parameter structs

type NoopParams struct{}

type AddParams struct {
	A float64 `thrift:"a,1"`
	B float64 `thrift:"b,2"`
}

type GreetParams struct {
	Name string `thrift:"name,1"`
}

type RoundtripTypesParams struct {
	Color   string           `thrift:"color,1"`
	Mapping map[string]int64 `thrift:"mapping,2"`
	Tags    []int64          `thrift:"tags,3"`
}

// RegisterMethods registers the benchmark fixture methods on the service.
func RegisterMethods(svc *thttp.Service) {
	thttp.UnaryVoid(svc, "noop", noop)
	thttp.Unary(svc, "add", add)
	thttp.Unary(svc, "greet", greet)
	thttp.Unary(svc, "roundtrip_types", roundtripTypes)
}

// Handler implementations

func noop(_ context.Context, _ *thttp.CallContext, _ NoopParams) error {
	return nil
}

func add(_ context.Context, _ *thttp.CallContext, p AddParams) (float64, error) {
	return p.A + p.B, nil
}

func greet(_ context.Context, _ *thttp.CallContext, p GreetParams) (string, error) {
	return "Hello, " + p.Name + "!", nil
}

func roundtripTypes(_ context.Context, _ *thttp.CallContext, p RoundtripTypesParams) (string, error) {
	keys := make([]string, 0, len(p.Mapping))
	for k := range p.Mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mappingParts []string
	for _, k := range keys {
		mappingParts = append(mappingParts, fmt.Sprintf("'%s': %d", k, p.Mapping[k]))
	}
	mappingStr := "{" + strings.Join(mappingParts, ", ") + "}"

	sortedTags := make([]int64, len(p.Tags))
	copy(sortedTags, p.Tags)
	sort.Slice(sortedTags, func(i, j int) bool { return sortedTags[i] < sortedTags[j] })

	var tagParts []string
	for _, t := range sortedTags {
		tagParts = append(tagParts, fmt.Sprintf("%d", t))
	}
	tagsStr := "[" + strings.Join(tagParts, ", ") + "]"

	return fmt.Sprintf("%s:%s:%s", p.Color, mappingStr, tagsStr), nil
}

// Header values exercised by the negotiation benchmarks.
var (
	ContentTypes = []string{
		"application/x-thrift; protocol=TBINARY",
		"application/x-thrift;protocol=tcompact",
		`application/x-thrift ; protocol="TjSoN"`,
		"application/vnd.apache.thrift.text",
		"application/x-thrift",
		"text/plain; charset=utf-8",
	}
	Accepts = []string{
		"",
		"application/x-thrift; protocol=TBINARY",
		"application/x-thrift; protocol=TTEXT; q=0.5, application/x-thrift; protocol=TBINARY",
		"*/*",
	}
)
