// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
	"go.uber.org/zap"

	"github.com/Query-farm/thttp/thttp"
)

// --- HelloService ---

// HelloArgs is the argument struct of HelloService.hello.
type HelloArgs struct {
	Name string `thrift:"name,1"`
}

// Hello returns the greeting of HelloService.hello.
func Hello(name string) string {
	return "Hello, " + name + "!"
}

// RegisterHello registers HelloService.hello on svc.
func RegisterHello(svc *thttp.Service) {
	thttp.Unary(svc, "hello", hello)
}

func hello(_ context.Context, _ *thttp.CallContext, p HelloArgs) (string, error) {
	return Hello(p.Name), nil
}

// EndpointConfig describes one endpoint mounted by [Mount].
type EndpointConfig struct {
	Path    string
	Formats []string // empty allows every registered format
	Default string   // empty picks the registry default when allowed
}

// DefaultEndpoints is the endpoint layout of the negotiation tests.
var DefaultEndpoints = []EndpointConfig{
	{Path: "/hello"},
	{Path: "/hellobinaryonly", Formats: []string{thttp.FormatBinary}},
	{Path: "/hellotextonly", Formats: []string{thttp.FormatText}, Default: thttp.FormatText},
}

// Mount serves svc at every endpoint, resolving format identifiers through
// the server's registry.
func Mount(h *thttp.HttpServer, reg *thttp.Registry, svc *thttp.Service, endpoints []EndpointConfig) error {
	for _, ep := range endpoints {
		policy, err := reg.NewPolicy(ep.Default, ep.Formats...)
		if err != nil {
			return fmt.Errorf("endpoint %s: %w", ep.Path, err)
		}
		h.Handle(ep.Path, svc, policy)
	}
	return nil
}

// --- Parameter structs for each method ---

type EchoStringParams struct {
	Value string `thrift:"value,1"`
}
type EchoBytesParams struct {
	Data []byte `thrift:"data,1"`
}
type EchoIntParams struct {
	Value int64 `thrift:"value,1"`
}
type EchoInt32Params struct {
	Value int32 `thrift:"value,1"`
}
type EchoFloatParams struct {
	Value float64 `thrift:"value,1"`
}
type EchoBoolParams struct {
	Value bool `thrift:"value,1"`
}
type VoidNoopParams struct{}
type VoidWithParamParams struct {
	Value int64 `thrift:"value,1"`
}
type EchoEnumParams struct {
	Status Status `thrift:"status,1"`
}
type EchoListParams struct {
	Values []string `thrift:"values,1"`
}
type EchoDictParams struct {
	Mapping map[string]int64 `thrift:"mapping,1"`
}
type EchoNestedListParams struct {
	Matrix [][]int64 `thrift:"matrix,1"`
}
type EchoPointParams struct {
	Point Point `thrift:"point,1"`
}
type EchoAllTypesParams struct {
	Data AllTypes `thrift:"data,1"`
}
type EchoBoundingBoxParams struct {
	Box BoundingBox `thrift:"box,1"`
}
type InspectPointParams struct {
	Point Point `thrift:"point,1"`
}
type AddFloatsParams struct {
	A float64 `thrift:"a,1"`
	B float64 `thrift:"b,2"`
}
type ConcatenateParams struct {
	Prefix    string  `thrift:"prefix,1"`
	Suffix    string  `thrift:"suffix,2"`
	Separator *string `thrift:"separator,3,optional"`
}
type RaiseErrorParams struct {
	Message string `thrift:"message,1"`
}
type RecordParams struct {
	Value string `thrift:"value,1"`
}
type CallInfoParams struct{}

// CallInfo reports what the server saw of a call.
type CallInfo struct {
	Method    string `thrift:"method,1"`
	Format    string `thrift:"format,2"`
	RequestID string `thrift:"request_id,3"`
	SeqID     int32  `thrift:"seqid,4"`
}

// Recorder collects the values sent to the oneway record method.
type Recorder struct {
	mu     sync.Mutex
	values []string
}

// Values returns the recorded values in arrival order.
func (r *Recorder) Values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

// RegisterMethods registers HelloService.hello and all conformance methods
// on svc. Oneway record calls are collected in rec, which may be nil.
func RegisterMethods(svc *thttp.Service, rec *Recorder) {
	RegisterHello(svc)

	// Scalar echo methods
	thttp.Unary(svc, "echo_string", echoString)
	thttp.Unary(svc, "echo_bytes", echoBytes)
	thttp.Unary(svc, "echo_int", echoInt)
	thttp.Unary(svc, "echo_int32", echoInt32)
	thttp.Unary(svc, "echo_float", echoFloat)
	thttp.Unary(svc, "echo_bool", echoBool)

	// Void returns
	thttp.UnaryVoid(svc, "void_noop", voidNoop)
	thttp.UnaryVoid(svc, "void_with_param", voidWithParam)

	// Complex type echo
	thttp.Unary(svc, "echo_enum", echoEnum)
	thttp.Unary(svc, "echo_list", echoList)
	thttp.Unary(svc, "echo_dict", echoDict)
	thttp.Unary(svc, "echo_nested_list", echoNestedList)

	// Struct round-trip
	thttp.Unary(svc, "echo_point", echoPoint)
	thttp.Unary(svc, "echo_all_types", echoAllTypes)
	thttp.Unary(svc, "echo_bounding_box", echoBoundingBox)
	thttp.Unary(svc, "inspect_point", inspectPoint)

	// Multi-param & optional
	thttp.Unary(svc, "add_floats", addFloats)
	thttp.Unary(svc, "concatenate", concatenate)

	// Exception propagation
	thttp.Unary(svc, "raise_internal_error", raiseInternalError)
	thttp.Unary(svc, "raise_application_error", raiseApplicationError)
	thttp.Unary(svc, "raise_panic", raisePanic)

	// Call metadata
	thttp.Unary(svc, "call_info", callInfo)

	// Oneway
	if rec == nil {
		rec = &Recorder{}
	}
	thttp.Oneway(svc, "record", rec.record)
}

// --- Scalar echo ---

func echoString(_ context.Context, _ *thttp.CallContext, p EchoStringParams) (string, error) {
	return p.Value, nil
}
func echoBytes(_ context.Context, _ *thttp.CallContext, p EchoBytesParams) ([]byte, error) {
	return p.Data, nil
}
func echoInt(_ context.Context, _ *thttp.CallContext, p EchoIntParams) (int64, error) {
	return p.Value, nil
}
func echoInt32(_ context.Context, _ *thttp.CallContext, p EchoInt32Params) (int32, error) {
	return p.Value, nil
}
func echoFloat(_ context.Context, _ *thttp.CallContext, p EchoFloatParams) (float64, error) {
	return p.Value, nil
}
func echoBool(_ context.Context, _ *thttp.CallContext, p EchoBoolParams) (bool, error) {
	return p.Value, nil
}

// --- Void ---

func voidNoop(_ context.Context, _ *thttp.CallContext, _ VoidNoopParams) error {
	return nil
}
func voidWithParam(_ context.Context, _ *thttp.CallContext, _ VoidWithParamParams) error {
	return nil
}

// --- Complex type echo ---

func echoEnum(_ context.Context, _ *thttp.CallContext, p EchoEnumParams) (Status, error) {
	return p.Status, nil
}
func echoList(_ context.Context, _ *thttp.CallContext, p EchoListParams) ([]string, error) {
	return p.Values, nil
}
func echoDict(_ context.Context, _ *thttp.CallContext, p EchoDictParams) (map[string]int64, error) {
	return p.Mapping, nil
}
func echoNestedList(_ context.Context, _ *thttp.CallContext, p EchoNestedListParams) ([][]int64, error) {
	return p.Matrix, nil
}

// --- Struct round-trip ---

func echoPoint(_ context.Context, _ *thttp.CallContext, p EchoPointParams) (Point, error) {
	return p.Point, nil
}
func echoAllTypes(_ context.Context, _ *thttp.CallContext, p EchoAllTypesParams) (AllTypes, error) {
	return p.Data, nil
}
func echoBoundingBox(_ context.Context, _ *thttp.CallContext, p EchoBoundingBoxParams) (BoundingBox, error) {
	return p.Box, nil
}
func inspectPoint(_ context.Context, _ *thttp.CallContext, p InspectPointParams) (string, error) {
	return fmt.Sprintf("Point(%g, %g)", p.Point.X, p.Point.Y), nil
}

// --- Multi-param & optional ---

func addFloats(_ context.Context, _ *thttp.CallContext, p AddFloatsParams) (float64, error) {
	return p.A + p.B, nil
}
func concatenate(_ context.Context, _ *thttp.CallContext, p ConcatenateParams) (string, error) {
	sep := "-"
	if p.Separator != nil {
		sep = *p.Separator
	}
	return p.Prefix + sep + p.Suffix, nil
}

// --- Exception propagation ---

func raiseInternalError(_ context.Context, _ *thttp.CallContext, p RaiseErrorParams) (string, error) {
	return "", errors.New(p.Message)
}
func raiseApplicationError(_ context.Context, _ *thttp.CallContext, p RaiseErrorParams) (string, error) {
	return "", &thttp.ApplicationError{Type: thrift.PROTOCOL_ERROR, Message: p.Message}
}
func raisePanic(_ context.Context, _ *thttp.CallContext, p RaiseErrorParams) (string, error) {
	panic(p.Message)
}

// --- Call metadata ---

func callInfo(_ context.Context, call *thttp.CallContext, _ CallInfoParams) (CallInfo, error) {
	return CallInfo{
		Method:    call.Method,
		Format:    call.Format.ID(),
		RequestID: call.RequestID,
		SeqID:     call.SeqID,
	}, nil
}

// --- Oneway ---

func (r *Recorder) record(_ context.Context, call *thttp.CallContext, p RecordParams) error {
	r.mu.Lock()
	r.values = append(r.values, p.Value)
	r.mu.Unlock()
	call.Logger().Debug("recorded", zap.String("value", p.Value))
	return nil
}
