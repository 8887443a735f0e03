// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thttp

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/apache/thrift/lib/go/thrift"
	"go.uber.org/zap"
)

// errBadMessage marks a request body that does not decode as a message in
// the negotiated format. The transport answers it with 400.
var errBadMessage = errors.New("thttp: malformed message")

// methodInfo stores the registration details for one Thrift method.
type methodInfo struct {
	Name       string
	ParamsType reflect.Type // Go struct type for the argument struct
	ResultType reflect.Type // Go type for the result (nil for void)
	Oneway     bool
	decode     func(context.Context, BodyDecoder) (any, error)
	invoke     func(context.Context, *CallContext, any) (any, error)
}

// Service dispatches Thrift messages to registered methods. A service is
// format-agnostic: the transport negotiates the format and hands the
// service the matching codec.
type Service struct {
	methods      map[string]*methodInfo
	serverID     string
	serviceName  string
	dispatchHook DispatchHook
	debugErrors  bool
}

// NewService creates a service with no methods.
func NewService() *Service {
	return &Service{
		methods: make(map[string]*methodInfo),
	}
}

// SetServerID sets a server identifier returned in the X-Server-Id header.
func (s *Service) SetServerID(id string) {
	s.serverID = id
}

// SetServiceName sets a logical service name used by observability hooks.
func (s *Service) SetServiceName(name string) {
	s.serviceName = name
}

// ServiceName returns the logical service name, or empty string if not set.
func (s *Service) ServiceName() string {
	return s.serviceName
}

// SetDispatchHook registers a hook that is called around each RPC dispatch.
func (s *Service) SetDispatchHook(hook DispatchHook) {
	s.dispatchHook = hook
}

// SetDebugErrors controls whether INTERNAL_ERROR exceptions include the Go
// error type and caller frames. Leave it off for public-facing deployments.
func (s *Service) SetDebugErrors(enabled bool) {
	s.debugErrors = enabled
}

// Methods returns the registered method names in sorted order.
func (s *Service) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unary registers a method with a typed argument struct and return value.
// P must be a struct with `thrift` tags. R is the return type.
func Unary[P any, R any](s *Service, name string, handler func(context.Context, *CallContext, P) (R, error)) {
	var r R
	paramsType := checkParams[P](name)
	resultType := reflect.TypeOf(r)
	if resultType == nil {
		panic(fmt.Sprintf("thttp: registering %q: result type must be concrete", name))
	}
	if _, err := thriftType(resultType); err != nil {
		panic(fmt.Sprintf("thttp: registering %q: invalid result type %v: %v", name, resultType, err))
	}

	s.register(&methodInfo{
		Name:       name,
		ParamsType: paramsType,
		ResultType: resultType,
		decode:     decodeParams[P],
		invoke: func(ctx context.Context, call *CallContext, params any) (any, error) {
			return handler(ctx, call, params.(P))
		},
	})
}

// UnaryVoid registers a method that returns no value.
func UnaryVoid[P any](s *Service, name string, handler func(context.Context, *CallContext, P) error) {
	paramsType := checkParams[P](name)
	s.register(&methodInfo{
		Name:       name,
		ParamsType: paramsType,
		decode:     decodeParams[P],
		invoke: func(ctx context.Context, call *CallContext, params any) (any, error) {
			return nil, handler(ctx, call, params.(P))
		},
	})
}

// Oneway registers a method whose caller expects no reply. The transport
// answers with an empty body and handler errors are only logged.
func Oneway[P any](s *Service, name string, handler func(context.Context, *CallContext, P) error) {
	paramsType := checkParams[P](name)
	s.register(&methodInfo{
		Name:       name,
		ParamsType: paramsType,
		Oneway:     true,
		decode:     decodeParams[P],
		invoke: func(ctx context.Context, call *CallContext, params any) (any, error) {
			return nil, handler(ctx, call, params.(P))
		},
	})
}

func (s *Service) register(info *methodInfo) {
	if info.Name == "" {
		panic("thttp: method name must not be empty")
	}
	if _, dup := s.methods[info.Name]; dup {
		panic(fmt.Sprintf("thttp: method %q registered twice", info.Name))
	}
	s.methods[info.Name] = info
}

func checkParams[P any](name string) reflect.Type {
	var p P
	paramsType := reflect.TypeOf(p)
	if paramsType == nil || paramsType.Kind() != reflect.Struct {
		panic(fmt.Sprintf("thttp: registering %q: params type %T must be a struct", name, p))
	}
	if _, err := inspectStruct(paramsType); err != nil {
		panic(fmt.Sprintf("thttp: registering %q: invalid params type %T: %v", name, p, err))
	}
	return paramsType
}

func decodeParams[P any](ctx context.Context, body BodyDecoder) (any, error) {
	var p P
	if err := body.DecodeBody(ctx, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// inbound is one request handed from a transport to the service.
type inbound struct {
	format    *SerializationFormat
	payload   []byte
	path      string
	requestID string
	header    map[string][]string
	metadata  map[string]string
	logger    *zap.Logger
}

// serve decodes one message, runs its handler and encodes the response with
// the same format. It returns a nil response for oneway calls. Errors
// wrapping errBadMessage mean the payload could not be decoded at all.
func (s *Service) serve(ctx context.Context, in inbound) ([]byte, error) {
	codec := in.format.Codec()
	logger := orNop(in.logger)

	hdr, body, err := codec.Decode(ctx, in.payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadMessage, err)
	}
	logger = logger.With(zap.String(LogKeyMethod, hdr.Name))

	if hdr.Type != thrift.CALL && hdr.Type != thrift.ONEWAY {
		return s.exception(ctx, codec, hdr, &ApplicationError{
			Type:    thrift.INVALID_MESSAGE_TYPE_EXCEPTION,
			Message: fmt.Sprintf("unexpected message type %s", messageTypeName(hdr.Type)),
		})
	}

	info, ok := s.methods[hdr.Name]
	if !ok {
		logger.Debug("unknown method")
		return s.exception(ctx, codec, hdr, &ApplicationError{
			Type:    thrift.UNKNOWN_METHOD,
			Message: fmt.Sprintf("unknown method: %q; available methods: %v", hdr.Name, s.Methods()),
		})
	}

	params, err := info.decode(ctx, body)
	if err != nil {
		logger.Debug("argument decoding failed", zap.Error(err))
		if hdr.Type == thrift.ONEWAY {
			return nil, nil
		}
		return s.exception(ctx, codec, hdr, &ApplicationError{
			Type:    thrift.PROTOCOL_ERROR,
			Message: fmt.Sprintf("%s: argument decoding: %v", hdr.Name, err),
		})
	}

	dispatchInfo := DispatchInfo{
		Method:            hdr.Name,
		MessageType:       messageTypeString(hdr.Type),
		Format:            in.format.id,
		Path:              in.path,
		ServiceName:       s.serviceName,
		ServerID:          s.serverID,
		RequestID:         in.requestID,
		TransportMetadata: in.metadata,
	}
	stats := &CallStatistics{}
	stats.RecordInput(len(in.payload))

	var hookToken HookToken
	var hookActive bool
	if s.dispatchHook != nil {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					logger.Error("dispatch hook start panic", zap.Any("panic", rv))
				}
			}()
			var hookCtx context.Context
			hookCtx, hookToken = s.dispatchHook.OnDispatchStart(ctx, dispatchInfo)
			if hookCtx != nil {
				ctx = hookCtx
			}
			hookActive = true
		}()
	}

	out, handlerErr := s.invoke(ctx, info, hdr, in, params, logger)

	var resp []byte
	if hdr.Type != thrift.ONEWAY {
		resp, err = s.reply(ctx, codec, hdr, info, out, handlerErr, logger)
		if err != nil {
			handlerErr = err
		}
		stats.RecordOutput(len(resp))
	}

	if hookActive {
		func() {
			defer func() {
				if rv := recover(); rv != nil {
					logger.Error("dispatch hook end panic", zap.Any("panic", rv))
				}
			}()
			s.dispatchHook.OnDispatchEnd(ctx, hookToken, dispatchInfo, stats, handlerErr)
		}()
	}
	return resp, err
}

// invoke runs the handler, turning a panic into an INTERNAL_ERROR.
func (s *Service) invoke(ctx context.Context, info *methodInfo, hdr MessageHeader, in inbound, params any, logger *zap.Logger) (out any, err error) {
	call := &CallContext{
		Ctx:       ctx,
		RequestID: in.requestID,
		ServerID:  s.serverID,
		Method:    hdr.Name,
		SeqID:     hdr.SeqID,
		Format:    in.format,
		Header:    in.header,
		logger:    logger,
	}
	defer func() {
		if rv := recover(); rv != nil {
			logger.Error("handler panic", zap.Any("panic", rv))
			err = &ApplicationError{Type: thrift.INTERNAL_ERROR, Message: fmt.Sprintf("panic: %v", rv)}
		}
	}()
	out, err = info.invoke(ctx, call, params)
	if err != nil {
		logger.Warn("handler failed", zap.Error(err))
	}
	return out, err
}

// reply encodes the REPLY or EXCEPTION for a finished call.
func (s *Service) reply(ctx context.Context, codec Codec, hdr MessageHeader, info *methodInfo, out any, handlerErr error, logger *zap.Logger) ([]byte, error) {
	if handlerErr != nil {
		return s.exception(ctx, codec, hdr, toApplicationError(handlerErr, s.debugErrors))
	}
	res := &Result{}
	if info.ResultType != nil {
		res.Success = out
	}
	data, err := codec.Encode(ctx, MessageHeader{Name: hdr.Name, Type: thrift.REPLY, SeqID: hdr.SeqID}, res)
	if err != nil {
		logger.Error("result encoding failed", zap.Error(err))
		return s.exception(ctx, codec, hdr, &ApplicationError{
			Type:    thrift.INTERNAL_ERROR,
			Message: fmt.Sprintf("%s: result encoding: %v", hdr.Name, err),
		})
	}
	return data, nil
}

func (s *Service) exception(ctx context.Context, codec Codec, hdr MessageHeader, exc *ApplicationError) ([]byte, error) {
	if hdr.Type == thrift.ONEWAY {
		return nil, nil
	}
	return codec.Encode(ctx, MessageHeader{Name: hdr.Name, Type: thrift.EXCEPTION, SeqID: hdr.SeqID}, exc)
}
