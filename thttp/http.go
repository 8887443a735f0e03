// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const defaultMaxRequestBytes = 16 << 20

// HttpServer serves Thrift services over HTTP, one service per path. Each
// path carries an EndpointPolicy naming the formats it accepts.
type HttpServer struct {
	registry        *Registry
	mux             *http.ServeMux
	endpoints       []*endpoint
	logger          *zap.Logger
	maxRequestBytes int64
	encoder         *zstd.Encoder // nil disables response compression
	decoder         *zstd.Decoder
}

type endpoint struct {
	path    string
	service *Service
	policy  EndpointPolicy
}

// NewHttpServer creates an HTTP server resolving formats through reg.
func NewHttpServer(reg *Registry) *HttpServer {
	if reg == nil {
		panic("thttp: registry must not be nil")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("thttp: zstd decoder: %v", err))
	}
	h := &HttpServer{
		registry:        reg,
		mux:             http.NewServeMux(),
		logger:          zap.NewNop(),
		maxRequestBytes: defaultMaxRequestBytes,
		decoder:         dec,
	}
	h.mux.HandleFunc("/", h.handleNotFound)
	return h
}

// SetLogger sets the logger for transport events. Nil restores the no-op logger.
func (h *HttpServer) SetLogger(l *zap.Logger) {
	h.logger = orNop(l)
}

// SetMaxRequestBytes limits the size of request bodies as received.
func (h *HttpServer) SetMaxRequestBytes(n int64) {
	h.maxRequestBytes = n
}

// SetCompressionLevel enables zstd response bodies for clients sending
// Accept-Encoding: zstd. Level follows the zstd command line scale; zero or
// less disables compression.
func (h *HttpServer) SetCompressionLevel(level int) {
	if h.encoder != nil {
		_ = h.encoder.Close()
		h.encoder = nil
	}
	if level <= 0 {
		return
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		panic(fmt.Sprintf("thttp: zstd encoder: %v", err))
	}
	h.encoder = enc
}

// Handle serves svc at path with the given policy. A zero policy allows
// every registered format. Registration panics on an invalid path or a
// policy naming formats foreign to the server's registry.
func (h *HttpServer) Handle(path string, svc *Service, policy EndpointPolicy) {
	if !strings.HasPrefix(path, "/") {
		panic(fmt.Sprintf("thttp: path %q must start with /", path))
	}
	if svc == nil {
		panic(fmt.Sprintf("thttp: service for %q must not be nil", path))
	}
	if policy.IsZero() {
		policy = h.registry.AllFormatsPolicy()
	}
	for _, f := range policy.allowed {
		if known, ok := h.registry.Lookup(f.id); !ok || known != f {
			panic(fmt.Sprintf("thttp: path %q allows format %q which is not in the registry", path, f.id))
		}
	}

	ep := &endpoint{path: path, service: svc, policy: policy}
	h.endpoints = append(h.endpoints, ep)
	h.mux.HandleFunc("POST "+path, func(w http.ResponseWriter, r *http.Request) { h.handleCall(w, r, ep) })
	h.mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) { h.handleLanding(w, r, ep) })
}

// HandleAllFormats serves svc at path accepting every registered format.
func (h *HttpServer) HandleAllFormats(path string, svc *Service) {
	h.Handle(path, svc, h.registry.AllFormatsPolicy())
}

// ServeHTTP implements http.Handler.
func (h *HttpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleCall negotiates the format, dispatches one message and writes the
// response in the same format.
func (h *HttpServer) handleCall(w http.ResponseWriter, r *http.Request, ep *endpoint) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, requestID)
	if ep.service.serverID != "" {
		w.Header().Set(HeaderServerID, ep.service.serverID)
	}

	contentType := r.Header.Get(HeaderContentType)
	accept := strings.Join(r.Header.Values(HeaderAccept), ", ")
	logger := h.logger.With(zap.String(LogKeyPath, ep.path), zap.String(LogKeyRequestID, requestID))

	format, err := h.registry.Negotiate(contentType, accept, ep.policy)
	if err != nil {
		var nerr *NegotiationError
		status := http.StatusBadRequest
		if errors.As(err, &nerr) {
			status = nerr.StatusCode()
		}
		if ce := logger.Check(negotiationLevel, "negotiation failed"); ce != nil {
			ce.Write(zap.String(LogKeyContentType, contentType), zap.String(LogKeyAccept, accept),
				zap.Int(LogKeyStatus, status), zap.Error(err))
		}
		h.writeHttpError(w, status, err)
		return
	}
	logger = logger.With(formatField(format))

	payload, status, err := h.readBody(w, r)
	if err != nil {
		logger.Debug("request body rejected", zap.Int(LogKeyStatus, status), zap.Error(err))
		h.writeHttpError(w, status, err)
		return
	}

	resp, err := ep.service.serve(r.Context(), inbound{
		format:    format,
		payload:   payload,
		path:      ep.path,
		requestID: requestID,
		header:    r.Header,
		metadata:  transportMetadata(r),
		logger:    logger,
	})
	if err != nil {
		if errors.Is(err, errBadMessage) {
			logger.Debug("malformed message", zap.Error(err))
			h.writeHttpError(w, http.StatusBadRequest, err)
			return
		}
		logger.Error("dispatch failed", zap.Error(err))
		h.writeHttpError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeMessage(w, r, format, resp, logger)
}

// readBody reads the request body, undoing a zstd Content-Encoding.
func (h *HttpServer) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	body := io.Reader(r.Body)
	if h.maxRequestBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, err
	}

	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderContentEncoding))); enc {
	case "", "identity":
		return data, 0, nil
	case encodingZstd:
		out, err := h.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("zstd request body: %w", err)
		}
		return out, 0, nil
	default:
		return nil, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported content encoding %q", enc)
	}
}

// writeMessage writes an encoded message with the canonical media type of
// its format. An empty message answers a oneway call.
func (h *HttpServer) writeMessage(w http.ResponseWriter, r *http.Request, f *SerializationFormat, data []byte, logger *zap.Logger) {
	w.Header().Set(HeaderContentType, f.MediaType().String())
	if h.encoder != nil && len(data) > 0 {
		w.Header().Add("Vary", HeaderAcceptEncoding)
		if acceptsEncoding(r.Header.Values(HeaderAcceptEncoding), encodingZstd) {
			data = h.encoder.EncodeAll(data, nil)
			w.Header().Set(HeaderContentEncoding, encodingZstd)
		}
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Error("response write failed", zap.Error(err))
	}
}

func (h *HttpServer) writeHttpError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set(HeaderContentType, "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = fmt.Fprintf(w, "%d %s\n%s\n", statusCode, http.StatusText(statusCode), err.Error())
}

// acceptsEncoding reports whether an Accept-Encoding header lists coding
// with a non-zero weight.
func acceptsEncoding(values []string, coding string) bool {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
			if !strings.EqualFold(strings.TrimSpace(name), coding) {
				continue
			}
			q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
			if q == "q=0" || q == "q=0.0" || q == "q=0.00" || q == "q=0.000" {
				return false
			}
			return true
		}
	}
	return false
}
