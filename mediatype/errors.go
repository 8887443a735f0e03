// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package mediatype

import (
	"errors"
	"fmt"
)

// ErrMalformedMediaType is a sentinel for use with errors.Is to check whether
// any error in a chain is a *ParseError.
var ErrMalformedMediaType = &ParseError{}

// ErrNotString reports a JSON value that is not a string.
var ErrNotString = errors.New("mediatype: JSON value is not a string")

// ParseError reports a header value that violates the media type grammar.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mediatype: malformed media type %q: %s at offset %d", e.Input, e.Reason, e.Offset)
}

// Is supports errors.Is by matching any *ParseError target.
func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

// DecodeError reports a JSON value that could not be decoded into a
// MediaType. Err is a *ParseError for malformed strings and ErrNotString
// for values of any other JSON type.
type DecodeError struct {
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("mediatype: cannot decode %s: %v", e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
