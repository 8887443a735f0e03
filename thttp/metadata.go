package thttp

import "net/http"

// HTTP header names read or written by the server and client.
const (
	HeaderRequestID       = "X-Request-Id"
	HeaderServerID        = "X-Server-Id"
	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"
	HeaderContentEncoding = "Content-Encoding"
	HeaderAcceptEncoding  = "Accept-Encoding"

	encodingZstd = "zstd"
)

// Keys of DispatchInfo.TransportMetadata besides trace context headers.
const (
	MetaRemoteAddr  = "remote_addr"
	MetaUserAgent   = "user_agent"
	MetaContentType = "content_type"
	MetaAccept      = "accept"
)

// traceHeaders are copied into the metadata under their lowercase names so
// that a text map propagator can extract the parent span.
var traceHeaders = []string{"traceparent", "tracestate", "baggage"}

// transportMetadata returns the request attributes passed to dispatch hooks.
func transportMetadata(r *http.Request) map[string]string {
	md := make(map[string]string, 4)
	set := func(k, v string) {
		if v != "" {
			md[k] = v
		}
	}
	set(MetaRemoteAddr, r.RemoteAddr)
	set(MetaUserAgent, r.UserAgent())
	set(MetaContentType, r.Header.Get(HeaderContentType))
	set(MetaAccept, r.Header.Get(HeaderAccept))
	for _, name := range traceHeaders {
		set(name, r.Header.Get(name))
	}
	return md
}
