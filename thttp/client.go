// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/Query-farm/thttp/mediatype"
	"github.com/apache/thrift/lib/go/thrift"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const maxResponseBytes = 64 << 20

// ParseClientAddress splits a client address of the form
// <format>+<scheme>://host/path into its format and the plain address. An
// address without a format prefix uses the registry default and is returned
// unchanged. An unknown prefix fails with a *NegotiationError matching
// [ErrUnknownSerializationFormat].
func (r *Registry) ParseClientAddress(addr string) (*SerializationFormat, string, error) {
	schemeEnd := strings.Index(addr, "://")
	if schemeEnd < 0 {
		return r.defaultFormat, addr, nil
	}
	plus := strings.IndexByte(addr[:schemeEnd], '+')
	if plus < 0 {
		return r.defaultFormat, addr, nil
	}
	id := addr[:plus]
	f, ok := r.Lookup(id)
	if !ok {
		return nil, "", &NegotiationError{Kind: KindUnknownFormat, Value: id}
	}
	return f, addr[plus+1:], nil
}

// BuildOutgoingHeaders returns the headers of a request sent with format f.
// Every override is copied. Content-Type is the canonical media type of f
// unless overrides set one. Accept is never added.
func BuildOutgoingHeaders(f *SerializationFormat, overrides http.Header) http.Header {
	h := make(http.Header, len(overrides)+1)
	for k, vs := range overrides {
		ck := http.CanonicalHeaderKey(k)
		h[ck] = append(h[ck], vs...)
	}
	if _, ok := h[HeaderContentType]; !ok {
		h.Set(HeaderContentType, f.MediaType().String())
	}
	return h
}

// Client calls a Thrift service over HTTP with the format selected by its
// address. It is safe for concurrent use.
type Client struct {
	registry   *Registry
	format     *SerializationFormat
	url        string
	httpClient *http.Client
	headers    http.Header
	logger     *zap.Logger
	encoder    *zstd.Encoder // nil sends uncompressed bodies
	decoder    *zstd.Decoder
	seqID      atomic.Int32
	optErr     error
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for calls.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeaders adds headers to every request. A Content-Type here replaces
// the one derived from the format; the body is still encoded with the
// format.
func WithHeaders(h http.Header) ClientOption {
	return func(c *Client) {
		for k, vs := range h {
			for _, v := range vs {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = orNop(l) }
}

// WithCompression sends zstd request bodies and accepts zstd responses.
func WithCompression() ClientOption {
	return WithCompressionLevel(zstd.SpeedFastest)
}

// WithCompressionLevel is WithCompression with an explicit encoder level.
// An unknown level makes NewClient fail.
func WithCompressionLevel(level zstd.EncoderLevel) ClientOption {
	return func(c *Client) {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			c.optErr = fmt.Errorf("thttp: zstd encoder: %w", err)
			return
		}
		if c.encoder != nil {
			_ = c.encoder.Close()
		}
		c.encoder = enc
	}
}

// NewClient creates a client for addr, which may carry a format prefix such
// as ttext+http://host/path. Format errors are returned here, before any
// network I/O.
func NewClient(reg *Registry, addr string, opts ...ClientOption) (*Client, error) {
	f, url, err := reg.ParseClientAddress(addr)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		registry:   reg,
		format:     f,
		url:        url,
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
		logger:     zap.NewNop(),
		decoder:    dec,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.optErr != nil {
		_ = c.Close()
		return nil, c.optErr
	}
	return c, nil
}

// Close releases the zstd encoder and decoder. The client must not be used
// afterwards.
func (c *Client) Close() error {
	var err error
	if c.encoder != nil {
		err = c.encoder.Close()
		c.encoder = nil
	}
	if c.decoder != nil {
		c.decoder.Close()
		c.decoder = nil
	}
	return err
}

// Format returns the format requests are encoded with.
func (c *Client) Format() *SerializationFormat { return c.format }

// URL returns the address without its format prefix.
func (c *Client) URL() string { return c.url }

// Call invokes method with args and decodes the return value into result,
// which must be a pointer, or nil for void methods. A Thrift exception is
// returned as *ApplicationError; a non-2xx HTTP status as
// *InvalidResponseError.
func (c *Client) Call(ctx context.Context, method string, args any, result any) error {
	seq := c.seqID.Add(1)
	data, err := c.roundTrip(ctx, MessageHeader{Name: method, Type: thrift.CALL, SeqID: seq}, args)
	if err != nil {
		return err
	}

	codec := c.format.codec
	hdr, body, err := codec.Decode(ctx, data)
	if err != nil {
		return fmt.Errorf("thttp: %s: decode response: %w", method, err)
	}
	if hdr.Name != method {
		return &ApplicationError{Type: thrift.WRONG_METHOD_NAME,
			Message: fmt.Sprintf("%s: wrong method name in reply: %q", method, hdr.Name)}
	}
	if hdr.SeqID != seq {
		return &ApplicationError{Type: thrift.BAD_SEQUENCE_ID,
			Message: fmt.Sprintf("%s: out of order sequence response: got %d, want %d", method, hdr.SeqID, seq)}
	}

	switch hdr.Type {
	case thrift.EXCEPTION:
		exc := &ApplicationError{}
		if err := body.DecodeBody(ctx, exc); err != nil {
			return fmt.Errorf("thttp: %s: decode exception: %w", method, err)
		}
		c.logger.Debug("call raised exception", zap.String(LogKeyMethod, method), exceptionField(exc))
		return exc
	case thrift.REPLY:
		err := body.DecodeBody(ctx, &Result{Success: result})
		if errors.Is(err, errMissingResult) {
			return &ApplicationError{Type: thrift.MISSING_RESULT,
				Message: fmt.Sprintf("%s failed: unknown result", method)}
		}
		if err != nil {
			return fmt.Errorf("thttp: %s: decode result: %w", method, err)
		}
		return nil
	default:
		return &ApplicationError{Type: thrift.INVALID_MESSAGE_TYPE_EXCEPTION,
			Message: fmt.Sprintf("%s: unexpected message type %s", method, messageTypeName(hdr.Type))}
	}
}

// Oneway sends a ONEWAY message and waits only for the HTTP status.
func (c *Client) Oneway(ctx context.Context, method string, args any) error {
	seq := c.seqID.Add(1)
	_, err := c.roundTrip(ctx, MessageHeader{Name: method, Type: thrift.ONEWAY, SeqID: seq}, args)
	return err
}

// roundTrip encodes and posts one message and returns the decoded response
// body.
func (c *Client) roundTrip(ctx context.Context, hdr MessageHeader, args any) ([]byte, error) {
	payload, err := c.format.codec.Encode(ctx, hdr, args)
	if err != nil {
		return nil, fmt.Errorf("thttp: %s: encode request: %w", hdr.Name, err)
	}

	headers := BuildOutgoingHeaders(c.format, c.headers)
	if c.encoder != nil {
		payload = c.encoder.EncodeAll(payload, nil)
		headers.Set(HeaderContentEncoding, encodingZstd)
		headers.Set(HeaderAcceptEncoding, encodingZstd)
	}
	if headers.Get(HeaderRequestID) == "" {
		headers.Set(HeaderRequestID, uuid.NewString())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header = headers

	logger := c.logger.With(zap.String(LogKeyMethod, hdr.Name), formatField(c.format),
		zap.String(LogKeyRequestID, headers.Get(HeaderRequestID)))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("invalid response", zap.Int(LogKeyStatus, resp.StatusCode))
		return nil, &InvalidResponseError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if strings.EqualFold(resp.Header.Get(HeaderContentEncoding), encodingZstd) {
		if data, err = c.decoder.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("thttp: zstd response body: %w", err)
		}
	}
	if hdr.Type == thrift.ONEWAY {
		return nil, nil
	}
	if err := c.checkResponseType(resp.Header.Get(HeaderContentType)); err != nil {
		return nil, err
	}
	return data, nil
}

// checkResponseType rejects a response whose Content-Type names a format
// other than the one the request was encoded with.
func (c *Client) checkResponseType(contentType string) error {
	if contentType == "" {
		return nil
	}
	mt, err := mediatype.Parse(contentType)
	if err != nil {
		return &InvalidResponseError{StatusCode: http.StatusOK, Status: "200 OK",
			Body: fmt.Sprintf("malformed response content type %q", contentType)}
	}
	if f, ok := c.registry.Find(mt); ok && f != c.format {
		return &InvalidResponseError{StatusCode: http.StatusOK, Status: "200 OK",
			Body: fmt.Sprintf("response format %q does not match request format %q", f.id, c.format.id)}
	}
	return nil
}
