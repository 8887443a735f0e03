// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides test fixtures for serving Thrift over HTTP
// in every serialization format. It registers the HelloService used by the
// negotiation tests together with echo methods that exercise scalar types,
// collections, optional fields, nested structs, void and oneway calls, and
// exception propagation.
//
// The entry points are [RegisterHello], [RegisterMethods] and [Mount],
// which builds the standard endpoint layout (/hello, /hellobinaryonly,
// /hellotextonly) on a [thttp.HttpServer].
package conformance
