package thttp

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/apache/thrift/lib/go/thrift"
)

// ErrorKind classifies a negotiation failure.
type ErrorKind int

const (
	kindAny ErrorKind = iota
	// KindBadRequestMediaType reports a Content-Type header that is not a
	// valid media type.
	KindBadRequestMediaType
	// KindUnsupportedMediaType reports a Content-Type naming a known format
	// the endpoint does not allow.
	KindUnsupportedMediaType
	// KindNotAcceptable reports an Accept header that excludes the format the
	// response must use.
	KindNotAcceptable
	// KindUnknownFormat reports a format identifier absent from the registry.
	KindUnknownFormat
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequestMediaType:
		return "BadRequestMediaType"
	case KindUnsupportedMediaType:
		return "UnsupportedMediaType"
	case KindNotAcceptable:
		return "NotAcceptable"
	case KindUnknownFormat:
		return "UnknownSerializationFormat"
	default:
		return "Negotiation"
	}
}

// Sentinels for use with errors.Is.
var (
	// ErrNegotiation matches any *NegotiationError.
	ErrNegotiation                = &NegotiationError{}
	ErrBadRequestMediaType        = &NegotiationError{Kind: KindBadRequestMediaType}
	ErrUnsupportedMediaType       = &NegotiationError{Kind: KindUnsupportedMediaType}
	ErrNotAcceptable              = &NegotiationError{Kind: KindNotAcceptable}
	ErrUnknownSerializationFormat = &NegotiationError{Kind: KindUnknownFormat}
)

// NegotiationError reports why no serialization format could be used.
type NegotiationError struct {
	Kind   ErrorKind
	Header string // "Content-Type" or "Accept"; empty for format identifiers
	Value  string // offending header value or identifier
	Format string // format the failure is about, if known
	Err    error
}

func (e *NegotiationError) Error() string {
	switch e.Kind {
	case KindBadRequestMediaType:
		return fmt.Sprintf("thttp: malformed %s: %v", e.Header, e.Err)
	case KindUnsupportedMediaType:
		return fmt.Sprintf("thttp: unsupported media type %q: format %q is not allowed", e.Value, e.Format)
	case KindNotAcceptable:
		return fmt.Sprintf("thttp: not acceptable %q: response must use format %q", e.Value, e.Format)
	case KindUnknownFormat:
		return fmt.Sprintf("thttp: unknown serialization format %q", e.Value)
	default:
		return "thttp: negotiation failed"
	}
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// Is matches *NegotiationError targets of the same kind. A target without a
// kind matches every negotiation error.
func (e *NegotiationError) Is(target error) bool {
	t, ok := target.(*NegotiationError)
	return ok && (t.Kind == kindAny || t.Kind == e.Kind)
}

// StatusCode maps the failure to an HTTP status.
func (e *NegotiationError) StatusCode() int {
	switch e.Kind {
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindNotAcceptable:
		return http.StatusNotAcceptable
	default:
		return http.StatusBadRequest
	}
}

// ErrFormatCollision is a sentinel matching any *RegistryError.
var ErrFormatCollision = &RegistryError{}

// RegistryError reports an invalid format or registry definition. It only
// occurs while building a registry at startup.
type RegistryError struct {
	ID        string
	MediaType string
	Reason    string
}

func (e *RegistryError) Error() string {
	var b strings.Builder
	b.WriteString("thttp: registry")
	if e.ID != "" {
		fmt.Fprintf(&b, ": format %q", e.ID)
	}
	if e.MediaType != "" {
		fmt.Fprintf(&b, ": media type %q", e.MediaType)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Is supports errors.Is by matching any *RegistryError target.
func (e *RegistryError) Is(target error) bool {
	_, ok := target.(*RegistryError)
	return ok
}

// ApplicationError is a Thrift application exception: the error a server
// returns in an EXCEPTION message. Handlers may return one to choose the
// exception type; any other error becomes INTERNAL_ERROR.
type ApplicationError struct {
	Type    int32
	Message string
}

// ErrApplication is a sentinel matching any *ApplicationError.
var ErrApplication = &ApplicationError{}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("thrift application exception (%s): %s", ApplicationErrorName(e.Type), e.Message)
}

// Is supports errors.Is by matching any *ApplicationError target.
func (e *ApplicationError) Is(target error) bool {
	_, ok := target.(*ApplicationError)
	return ok
}

// ApplicationErrorName returns the Thrift name of an exception type, such as
// UNKNOWN_METHOD.
func ApplicationErrorName(t int32) string {
	switch t {
	case thrift.UNKNOWN_METHOD:
		return "UNKNOWN_METHOD"
	case thrift.INVALID_MESSAGE_TYPE_EXCEPTION:
		return "INVALID_MESSAGE_TYPE"
	case thrift.WRONG_METHOD_NAME:
		return "WRONG_METHOD_NAME"
	case thrift.BAD_SEQUENCE_ID:
		return "BAD_SEQUENCE_ID"
	case thrift.MISSING_RESULT:
		return "MISSING_RESULT"
	case thrift.INTERNAL_ERROR:
		return "INTERNAL_ERROR"
	case thrift.PROTOCOL_ERROR:
		return "PROTOCOL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// InvalidResponseError reports an HTTP response a client cannot decode,
// typically a non-2xx status from negotiation.
type InvalidResponseError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *InvalidResponseError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("thttp: invalid response: %s", e.Status)
	}
	return fmt.Sprintf("thttp: invalid response: %s: %s", e.Status, e.Body)
}

// toApplicationError converts a handler error into the exception sent to
// the client. With debug enabled the message carries the Go error type and
// the top stack frames.
func toApplicationError(err error, debug bool) *ApplicationError {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr
	}
	if !debug {
		return &ApplicationError{Type: thrift.INTERNAL_ERROR, Message: err.Error()}
	}
	return &ApplicationError{Type: thrift.INTERNAL_ERROR, Message: debugMessage(err)}
}

// debugMessage renders err with its Go type and up to five caller frames.
func debugMessage(err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%T: %s", err, err.Error())

	pcs := make([]uintptr, 10)
	n := runtime.Callers(3, pcs)
	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for count := 0; count < 5; count++ {
			frame, more := frames.Next()
			fmt.Fprintf(&b, "\n  at %s (%s:%d)", frame.Function, frame.File, frame.Line)
			if !more {
				break
			}
		}
	}
	return b.String()
}
