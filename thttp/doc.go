// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package thttp serves and calls Thrift RPC services over HTTP in several
// wire encodings, and decides from the request headers which encoding a
// call uses.
//
// # Serialization formats
//
// A [SerializationFormat] pairs a short identifier with the media types that
// announce it in Content-Type and Accept headers. The built-in formats are:
//
//	tbinary   application/x-thrift; protocol=TBINARY   (default)
//	tcompact  application/x-thrift; protocol=TCOMPACT
//	tjson     application/x-thrift; protocol=TJSON
//	ttext     application/x-thrift; protocol=TTEXT
//
// Each format also recognizes an application/vnd.apache.thrift.* synonym.
// The protocol parameter is compared case-insensitively. Any other parameter
// prevents a match, so "application/x-thrift; version=3; protocol=ttext"
// resolves to no format.
//
// Formats live in an immutable [Registry] built once at startup with
// [NewRegistry] or [NewThriftRegistry]. There is no global registry; pass the
// one you built to [NewHttpServer] and [NewClient].
//
// # Negotiation
//
// Every HTTP endpoint has an [EndpointPolicy]: the formats it allows and the
// one it falls back to. [Registry.Negotiate] resolves the format of a call
// from the Content-Type and Accept headers:
//
//   - A Content-Type naming a known format selects it, or fails with 415
//     Unsupported Media Type if the endpoint does not allow it.
//   - A bare application/x-thrift Content-Type selects the endpoint default.
//   - Any other Content-Type (text/plain from a browser, for example) is
//     treated as if it were absent.
//   - Accept entries naming known formats must include the selected format,
//     otherwise the call fails with 406 Not Acceptable.
//
// The same format decodes the request and encodes the response.
//
// # Services
//
// Methods are registered on a [Service] with [Unary], [UnaryVoid] or
// [Oneway].
// Arguments are Go structs whose fields carry `thrift` struct tags:
//
//	type HelloArgs struct {
//		Name string `thrift:"name,1"`
//	}
//
//	svc := thttp.NewService()
//	thttp.Unary(svc, "hello", func(_ context.Context, _ *thttp.CallContext, a HelloArgs) (string, error) {
//		return "Hello, " + a.Name + "!", nil
//	})
//
//	reg := thttp.MustThriftRegistry()
//	h := thttp.NewHttpServer(reg)
//	h.HandleAllFormats("/hello", svc)
//
// # Clients
//
// [NewClient] takes an address with an optional format prefix, such as
// "ttext+http://127.0.0.1:8080/hello". Without a prefix the registry default
// is used.
package thttp
